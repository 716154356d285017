package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	CatalogAPIURL     string
	CatalogRetries    int
	CatalogRevalidate time.Duration
	CatalogLimit      int
	ExpiringHours     int

	GeocoderURL       string
	GeocoderUserAgent string
	GeocodeDelay      time.Duration
	GazetteerPath     string
	JunkRulesPath     string

	CacheBackend string
	CachePath    string
	RedisURL     string
	ProjectID    string

	PageSize    int
	SessionIdle time.Duration
	LogLevel    slog.Level
}

// LoadDotEnv loads variables from path into the environment without overriding
// ones that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Info("Loaded environment file", "path", path)
	return nil
}

func Load() (*Config, error) {
	catalogAPIURL := strings.TrimSpace(os.Getenv("CATALOG_API_URL"))
	if catalogAPIURL == "" {
		return nil, fmt.Errorf("CATALOG_API_URL environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	catalogRetries, err := intEnv("CATALOG_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if catalogRetries < 0 {
		return nil, fmt.Errorf("invalid CATALOG_RETRIES %d: must not be negative", catalogRetries)
	}
	catalogRevalidate, err := durationEnv("CATALOG_REVALIDATE", 60*time.Second)
	if err != nil {
		return nil, err
	}
	catalogLimit, err := positiveIntEnv("CATALOG_LIMIT", 500)
	if err != nil {
		return nil, err
	}
	expiringHours, err := positiveIntEnv("EXPIRING_HOURS", 48)
	if err != nil {
		return nil, err
	}
	geocodeDelay, err := durationEnv("GEOCODE_DELAY", 1100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	pageSize, err := positiveIntEnv("PAGE_SIZE", 30)
	if err != nil {
		return nil, err
	}
	sessionIdle, err := durationEnv("SESSION_IDLE", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	geocoderURL := os.Getenv("GEOCODER_URL")
	if geocoderURL == "" {
		geocoderURL = "https://nominatim.openstreetmap.org"
	}
	userAgent := os.Getenv("GEOCODER_USER_AGENT")
	if userAgent == "" {
		userAgent = "cph-deal-finder-web/1.0"
	}

	cacheBackend := strings.ToLower(os.Getenv("CACHE_BACKEND"))
	if cacheBackend == "" {
		cacheBackend = "sqlite"
	}
	cachePath := os.Getenv("CACHE_PATH")
	if cachePath == "" {
		cachePath = "cph-geocode-cache.db"
	}
	redisURL := os.Getenv("REDIS_URL")
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")

	switch cacheBackend {
	case "memory", "sqlite":
	case "redis":
		if redisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	case "firestore":
		if projectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when CACHE_BACKEND=firestore")
		}
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory, sqlite, redis or firestore", cacheBackend)
	}

	logLevel := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	return &Config{
		Port:              port,
		CatalogAPIURL:     catalogAPIURL,
		CatalogRetries:    catalogRetries,
		CatalogRevalidate: catalogRevalidate,
		CatalogLimit:      catalogLimit,
		ExpiringHours:     expiringHours,
		GeocoderURL:       geocoderURL,
		GeocoderUserAgent: userAgent,
		GeocodeDelay:      geocodeDelay,
		GazetteerPath:     os.Getenv("GAZETTEER_PATH"),
		JunkRulesPath:     os.Getenv("JUNK_RULES_PATH"),
		CacheBackend:      cacheBackend,
		CachePath:         cachePath,
		RedisURL:          redisURL,
		ProjectID:         projectID,
		PageSize:          pageSize,
		SessionIdle:       sessionIdle,
		LogLevel:          logLevel,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	n, err := intEnv(key, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %d: must be positive", key, n)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}
