package domain

import "sort"

// AnnualMaxima reduces a station's observations to one maximum discharge per
// calendar year, considering approved-quality records only. Years with no
// approved observations are absent from the result. The series is ordered by
// year. Pure function; ties for a year's maximum resolve to the shared value.
func AnnualMaxima(observations []Observation) []AnnualMaximum {
	byYear := make(map[int]float64)
	for _, o := range observations {
		if !o.Approved() {
			continue
		}
		year := o.Date.Year()
		if current, ok := byYear[year]; !ok || o.Discharge > current {
			byYear[year] = o.Discharge
		}
	}

	maxima := make([]AnnualMaximum, 0, len(byYear))
	for year, discharge := range byYear {
		maxima = append(maxima, AnnualMaximum{Year: year, Discharge: discharge})
	}
	sort.Slice(maxima, func(i, j int) bool { return maxima[i].Year < maxima[j].Year })
	return maxima
}

// Discharges extracts the discharge values from an annual-maxima series,
// preserving order. This is the shape the distribution fitter consumes.
func Discharges(maxima []AnnualMaximum) []float64 {
	values := make([]float64, len(maxima))
	for i, m := range maxima {
		values[i] = m.Discharge
	}
	return values
}
