package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// Remote menu platform API that owns the addon assignment records.
	MenuAPIBaseURL string
	MenuAPIToken   string
	MenuAPITimeout time.Duration

	// Branch scope applied when a request carries no explicit branch id.
	// Empty is legal; the remote service then infers scope from session.
	DefaultBranchID string

	RedisAddr       string
	RedisPassword   string
	CatalogCacheTTL time.Duration

	AuditDBPath string

	OTLPEndpoint string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:         getenv("APP_SERVICE", "mesa"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MenuAPIBaseURL:  strings.TrimRight(getenv("MENU_API_BASE_URL", "http://localhost:9090"), "/"),
		MenuAPIToken:    strings.TrimSpace(getenv("MENU_API_TOKEN", "")),
		MenuAPITimeout:  getenvDuration("MENU_API_TIMEOUT", 12*time.Second),
		DefaultBranchID: strings.TrimSpace(getenv("DEFAULT_BRANCH_ID", "")),
		RedisAddr:       strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		CatalogCacheTTL: getenvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		AuditDBPath:     getenv("AUDIT_DB_PATH", "mesa_audit.db"),
		OTLPEndpoint:    getenv("OTLP_ENDPOINT", "localhost:4317"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewAddonDefaultsHolder,
	),
)
