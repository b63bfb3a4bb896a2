package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// BudgetsCollection is the store collection holding budget records.
const BudgetsCollection = "budgets"

type Config struct {
	// HTTP Server
	Port string

	// Document store
	DataBackend    string
	SQLiteDBPath   string
	PostgresDSN    string
	StoreProjectID string
	StoreAPIKey    string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger mirror
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string

	// Receipts
	ReceiptsDriver      string
	ReceiptsDir         string
	ReceiptsS3Bucket    string
	ReceiptsS3Region    string
	ReceiptsS3Endpoint  string
	ReceiptsS3PathStyle bool
	// ReceiptsPublicURL prefixes links to receipts kept on the filesystem.
	ReceiptsPublicURL string

	// Identity fallback when no proxy headers are present
	DefaultUserName string
	DefaultUserRole string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string

	// ConfigFile is the TOML file the values were layered over, if any.
	ConfigFile string
	fileErr    error
}

// fileConfig mirrors the optional TOML configuration block.
type fileConfig struct {
	Store struct {
		Backend     string `toml:"backend"`
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
		ProjectID   string `toml:"project_id"`
		APIKey      string `toml:"api_key"`
	} `toml:"store"`
	Identity struct {
		DefaultName string `toml:"default_name"`
		DefaultRole string `toml:"default_role"`
	} `toml:"identity"`
	Receipts struct {
		Driver      string `toml:"driver"`
		Dir         string `toml:"dir"`
		S3Bucket    string `toml:"s3_bucket"`
		S3Region    string `toml:"s3_region"`
		S3Endpoint  string `toml:"s3_endpoint"`
		S3PathStyle bool   `toml:"s3_path_style"`
		PublicURL   string `toml:"public_url"`
	} `toml:"receipts"`
	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`
}

// Load reads configuration from the optional TOML file named by
// TREASURY_CONFIG_FILE and then from the environment, which wins.
func Load() *Config {
	var fc fileConfig
	path := os.Getenv("TREASURY_CONFIG_FILE")
	var fileErr error
	if path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			fileErr = fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:    getEnv("DATA_BACKEND", or(fc.Store.Backend, "sqlite")),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", or(fc.Store.SQLitePath, "./data/treasury.db")),
		PostgresDSN:    getEnv("POSTGRES_DSN", fc.Store.PostgresDSN),
		StoreProjectID: getEnv("STORE_PROJECT_ID", fc.Store.ProjectID),
		StoreAPIKey:    getEnv("STORE_API_KEY", fc.Store.APIKey),

		AMQPURL:      getEnv("AMQP_URL", fc.AMQP.URL),
		AMQPExchange: getEnv("AMQP_EXCHANGE", or(fc.AMQP.Exchange, "treasury")),
		AMQPQueue:    getEnv("AMQP_QUEUE", or(fc.AMQP.Queue, "mirror_budgets")),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Budgets"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		ReceiptsDriver:      getEnv("RECEIPTS_DRIVER", or(fc.Receipts.Driver, "fs")),
		ReceiptsDir:         getEnv("RECEIPTS_DIR", or(fc.Receipts.Dir, "./data/receipts")),
		ReceiptsS3Bucket:    getEnv("RECEIPTS_S3_BUCKET", fc.Receipts.S3Bucket),
		ReceiptsS3Region:    getEnv("RECEIPTS_S3_REGION", or(fc.Receipts.S3Region, "us-east-1")),
		ReceiptsS3Endpoint:  getEnv("RECEIPTS_S3_ENDPOINT", fc.Receipts.S3Endpoint),
		ReceiptsS3PathStyle: getEnvBool("RECEIPTS_S3_PATH_STYLE", fc.Receipts.S3PathStyle),
		ReceiptsPublicURL:   getEnv("RECEIPTS_PUBLIC_URL", fc.Receipts.PublicURL),

		DefaultUserName: getEnv("DEFAULT_USER_NAME", or(fc.Identity.DefaultName, "Treasurer")),
		DefaultUserRole: getEnv("DEFAULT_USER_ROLE", or(fc.Identity.DefaultRole, "officer")),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		ConfigFile: path,
		fileErr:    fileErr,
	}

	return cfg
}

// ReceiptsBaseURL returns the public prefix for filesystem receipts,
// defaulting to the console's own address.
func (c *Config) ReceiptsBaseURL() string {
	if c.ReceiptsPublicURL != "" {
		return strings.TrimRight(c.ReceiptsPublicURL, "/")
	}
	return "http://localhost:" + c.Port
}

// Collection returns the budgets collection name, namespaced by project.
func (c *Config) Collection() string {
	if c.StoreProjectID == "" {
		return BudgetsCollection
	}
	return c.StoreProjectID + "." + BudgetsCollection
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.fileErr != nil {
		errors = append(errors, c.fileErr.Error())
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "postgres", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresDSN); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid POSTGRES_DSN: must be a postgres:// URL")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.ReceiptsDriver {
	case "fs":
		if c.ReceiptsDir == "" {
			errors = append(errors, "RECEIPTS_DIR cannot be empty when using fs receipts driver")
		}
		if c.ReceiptsPublicURL != "" {
			if u, err := url.Parse(c.ReceiptsPublicURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid RECEIPTS_PUBLIC_URL '%s': must be an absolute http(s) URL", c.ReceiptsPublicURL))
			}
		}
	case "s3":
		if c.ReceiptsS3Bucket == "" {
			errors = append(errors, "RECEIPTS_S3_BUCKET is required when using s3 receipts driver")
		}
		if c.ReceiptsS3Endpoint != "" {
			if _, err := url.ParseRequestURI(c.ReceiptsS3Endpoint); err != nil {
				errors = append(errors, fmt.Sprintf("invalid RECEIPTS_S3_ENDPOINT '%s': %v", c.ReceiptsS3Endpoint, err))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid receipts driver '%s': must be one of [fs s3]", c.ReceiptsDriver))
	}

	if strings.TrimSpace(c.DefaultUserName) == "" {
		errors = append(errors, "DEFAULT_USER_NAME cannot be empty")
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateMirror checks the settings the ledger worker needs on top of Validate.
func (c *Config) ValidateMirror() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the mirror worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the mirror worker")
	}

	hasClientFile := c.GoogleOAuthClientFile != ""
	hasClientJSON := c.GoogleOAuthClientJSON != ""
	if !hasClientFile && !hasClientJSON {
		errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for the mirror worker")
	}

	hasTokenFile := c.GoogleOAuthTokenFile != ""
	hasTokenJSON := c.GoogleOAuthTokenJSON != ""
	if !hasTokenFile && !hasTokenJSON {
		errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for the mirror worker")
	}

	if hasClientFile {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}
	if hasTokenFile {
		if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
