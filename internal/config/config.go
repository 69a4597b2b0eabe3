package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mbjoseph/floodfreq/internal/domain"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RefreshInterval time.Duration

	// USGS NWIS configuration.
	USGSBaseURL   string
	USGSTimeout   time.Duration
	USGSCacheSize int

	// Analysis period. A zero PeriodEnd means "up to now" at fetch time.
	PeriodStart time.Time
	PeriodEnd   time.Time

	// Station catalog. Loaded from STATION_CATALOG when set, otherwise the
	// built-in Boulder Creek entry.
	StationCatalogPath string
	Stations           []domain.Station

	// External GEV fitter configuration.
	FitterURL     string
	FitterEnabled bool
	FitterTimeout time.Duration

	// Kafka sink for derived annual maxima.
	KafkaBrokers     []string
	KafkaMaximaTopic string
	KafkaEnabled     bool
}

// defaultStations is used when no catalog file is configured. Site 06730200
// is Boulder Creek at North 75th St; the threshold is the approximate daily
// mean discharge of the September 2013 flood peak.
var defaultStations = []domain.Station{
	{SiteNo: "06730200", Name: "Boulder Creek at North 75th St near Boulder, CO", Threshold: 5000},
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	usgsTimeout, err := parseDuration("USGS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	fitterTimeout, err := parseDuration("FITTER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	periodStart, err := parseDate("PERIOD_START", "1986-10-01")
	if err != nil {
		return nil, err
	}
	periodEnd, err := parseDate("PERIOD_END", "")
	if err != nil {
		return nil, err
	}
	if !periodEnd.IsZero() && !periodEnd.After(periodStart) {
		return nil, errors.New("PERIOD_END must be after PERIOD_START")
	}

	fitterURL := os.Getenv("FITTER_URL")
	fitterEnabled := fitterURL != ""
	if v := os.Getenv("FITTER_ENABLED"); v != "" {
		fitterEnabled = v == "true"
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RefreshInterval: refreshInterval,

		USGSBaseURL:   envOrDefault("USGS_BASE_URL", "https://waterservices.usgs.gov/nwis/dv"),
		USGSTimeout:   usgsTimeout,
		USGSCacheSize: parseCacheSize(),

		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,

		StationCatalogPath: os.Getenv("STATION_CATALOG"),

		FitterURL:     fitterURL,
		FitterEnabled: fitterEnabled,
		FitterTimeout: fitterTimeout,

		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaMaximaTopic: envOrDefault("KAFKA_MAXIMA_TOPIC", "annual-maxima"),
		KafkaEnabled:     kafkaEnabled,
	}

	cfg.Stations, err = loadCatalog(cfg.StationCatalogPath)
	if err != nil {
		return nil, err
	}

	if cfg.RefreshInterval <= 0 {
		return nil, errors.New("REFRESH_INTERVAL must be positive")
	}
	if cfg.FitterEnabled && cfg.FitterURL == "" {
		return nil, errors.New("FITTER_ENABLED is true but FITTER_URL is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaMaximaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_MAXIMA_TOPIC is empty")
	}

	return cfg, nil
}

// catalogFile is the YAML shape of a station catalog.
type catalogFile struct {
	Stations []domain.Station `yaml:"stations"`
}

// loadCatalog reads a station catalog YAML file, falling back to the built-in
// Boulder Creek entry when path is empty.
func loadCatalog(path string) ([]domain.Station, error) {
	if path == "" {
		return defaultStations, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse station catalog: %w", err)
	}
	if len(file.Stations) == 0 {
		return nil, errors.New("station catalog lists no stations")
	}
	for i, s := range file.Stations {
		if s.SiteNo == "" {
			return nil, fmt.Errorf("station catalog entry %d has no site_no", i)
		}
	}
	return file.Stations, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseDate(key, fallback string) (time.Time, error) {
	s := envOrDefault(key, fallback)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseCacheSize() int {
	if s := os.Getenv("USGS_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 100
}
