package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageLocal = "local"
	StorageGCS   = "gcs"
	StorageMinio = "minio"

	ExtractorHeuristic = "heuristic"
	ExtractorGenAI     = "genai"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DBDriver      string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	JWTSecret string
	TokenTTL  time.Duration

	AllowedOrigins     []string
	ExposeErrorDetails bool

	StorageBackend string
	UploadDir      string
	MaxUploadBytes int64
	GCSBucketName  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	FeatureExtractor string
	GenAIAPIKey      string
	GenAIModel       string

	ShutdownTimeout time.Duration
	WSPingInterval  time.Duration
}

// Load reads the configuration from the environment, applying defaults for
// anything unset. Empty variables count as unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", DriverMongo)
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/research-app")
	v.SetDefault("MONGODB_DATABASE", "")
	v.SetDefault("DATABASE_URL", "")

	v.SetDefault("JWT_SECRET", "fallback-secret")
	v.SetDefault("TOKEN_TTL", 7*24*time.Hour)

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("EXPOSE_ERROR_DETAILS", true)

	v.SetDefault("STORAGE_BACKEND", StorageLocal)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", int64(16<<20))
	v.SetDefault("GCS_BUCKET_NAME", "")
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "research-papers")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("FEATURE_EXTRACTOR", ExtractorHeuristic)
	v.SetDefault("GOOGLE_AI_STUDIO_API_KEY", "")
	v.SetDefault("GENAI_MODEL", "gemini-1.5-flash")

	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("WS_PING_INTERVAL", 30*time.Second)

	v.AutomaticEnv()

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		DBDriver:      strings.ToLower(v.GetString("DB_DRIVER")),
		MongoURI:      v.GetString("MONGODB_URI"),
		MongoDatabase: v.GetString("MONGODB_DATABASE"),
		DatabaseURL:   v.GetString("DATABASE_URL"),

		JWTSecret: v.GetString("JWT_SECRET"),

		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		GCSBucketName:  v.GetString("GCS_BUCKET_NAME"),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),

		FeatureExtractor: strings.ToLower(v.GetString("FEATURE_EXTRACTOR")),
		GenAIAPIKey:      v.GetString("GOOGLE_AI_STUDIO_API_KEY"),
		GenAIModel:       v.GetString("GENAI_MODEL"),
	}

	// viper's typed getters swallow parse errors, so malformed values are
	// converted strictly here.
	var err error
	if cfg.TokenTTL, err = cast.ToDurationE(v.Get("TOKEN_TTL")); err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	if cfg.ShutdownTimeout, err = cast.ToDurationE(v.Get("SHUTDOWN_TIMEOUT")); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.WSPingInterval, err = cast.ToDurationE(v.Get("WS_PING_INTERVAL")); err != nil {
		return nil, fmt.Errorf("invalid WS_PING_INTERVAL: %w", err)
	}
	if cfg.MaxUploadBytes, err = cast.ToInt64E(v.Get("MAX_UPLOAD_BYTES")); err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.ExposeErrorDetails, err = cast.ToBoolE(v.Get("EXPOSE_ERROR_DETAILS")); err != nil {
		return nil, fmt.Errorf("invalid EXPOSE_ERROR_DETAILS: %w", err)
	}
	if cfg.MinioUseSSL, err = cast.ToBoolE(v.Get("MINIO_USE_SSL")); err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverMongo:
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", c.DBDriver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageGCS:
		if c.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME environment variable is not set")
		}
	case StorageMinio:
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT environment variable is not set")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.FeatureExtractor {
	case ExtractorHeuristic, ExtractorGenAI:
	default:
		return fmt.Errorf("unsupported FEATURE_EXTRACTOR %q", c.FeatureExtractor)
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// IsDevelopment reports whether human-readable console logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "dev" || c.Environment == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
