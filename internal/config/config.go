package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Source kinds selectable via SOURCE_KIND.
const (
	SourceGoogleSheet = "gsheet"
	SourceLocalXLSX   = "xlsx"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Spreadsheet source.
	SourceKind      string
	SheetURL        string
	CredentialsFile string
	SourceXLSX      string

	// ArcGIS feature sink.
	ArcGISURL      string
	ArcGISUsername string
	ArcGISPassword string
	ArcGISItemID   string
	ArcGISEnabled  bool
	ArcGISTimeout  time.Duration
	UploadChunk    int

	// Transform and presentation.
	CoordScale   float64
	MapMaxPoints int

	// Service.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present, matching how the service is run in development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	arcgisTimeout, err := parseDuration("ARCGIS_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	uploadChunk, err := parsePositiveInt("UPLOAD_CHUNK_SIZE", 200)
	if err != nil {
		return nil, err
	}
	mapMaxPoints, err := parsePositiveInt("MAP_MAX_POINTS", 1000)
	if err != nil {
		return nil, err
	}
	coordScale, err := parseCoordScale()
	if err != nil {
		return nil, err
	}

	arcgisURL := os.Getenv("ARCGIS_URL")
	arcgisEnabled := arcgisURL != ""
	if v := os.Getenv("ARCGIS_ENABLED"); v != "" {
		arcgisEnabled = v == "true"
	}

	cfg := &Config{
		SourceKind:      envOrDefault("SOURCE_KIND", SourceGoogleSheet),
		SheetURL:        os.Getenv("SHEET_URL"),
		CredentialsFile: os.Getenv("CREDENTIALS_FILE"),
		SourceXLSX:      os.Getenv("SOURCE_XLSX"),

		ArcGISURL:      arcgisURL,
		ArcGISUsername: os.Getenv("ARCGIS_USERNAME"),
		ArcGISPassword: os.Getenv("ARCGIS_PASSWORD"),
		ArcGISItemID:   os.Getenv("ITEM_ID"),
		ArcGISEnabled:  arcgisEnabled,
		ArcGISTimeout:  arcgisTimeout,
		UploadChunk:    uploadChunk,

		CoordScale:   coordScale,
		MapMaxPoints: mapMaxPoints,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SourceKind {
	case SourceGoogleSheet:
		if c.SheetURL == "" {
			return errors.New("SHEET_URL is required")
		}
		if c.CredentialsFile == "" {
			return errors.New("CREDENTIALS_FILE is required")
		}
	case SourceLocalXLSX:
		if c.SourceXLSX == "" {
			return errors.New("SOURCE_XLSX is required when SOURCE_KIND=xlsx")
		}
	default:
		return fmt.Errorf("unknown SOURCE_KIND %q", c.SourceKind)
	}

	if c.ArcGISEnabled {
		if c.ArcGISURL == "" {
			return errors.New("ARCGIS_ENABLED is true but ARCGIS_URL is not set")
		}
		if c.ArcGISUsername == "" || c.ArcGISPassword == "" {
			return errors.New("ARCGIS_USERNAME and ARCGIS_PASSWORD are required when uploads are enabled")
		}
		if c.ArcGISItemID == "" {
			return errors.New("ITEM_ID is required when uploads are enabled")
		}
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

// parseCoordScale reads COORD_SCALE, the fixed-point divisor for coordinates
// exported as scaled integers. Zero means "use the domain default".
func parseCoordScale() (float64, error) {
	s := os.Getenv("COORD_SCALE")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid COORD_SCALE: %q", s)
	}
	return v, nil
}
