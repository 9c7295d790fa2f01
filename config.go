package pdfquiz

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	defaultMaxUploadBytes = 5 << 20
	defaultSessionSecret  = "dev-session-secret-change-me"
)

// Config holds application configuration
type Config struct {
	Port           string
	DBDriver       string
	DBDSN          string
	SessionSecret  string
	OpenAIKey      string
	Model          string
	NumQuestions   int
	MaxUploadBytes int64
	LLMLogDir      string
	RequireAnswer  bool
	Verbose        bool
	Development    bool
}

// LoadConfig reads configuration from the environment, after loading a .env
// file when one is present
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		VerboseLog("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8180"),
		DBDriver:       getEnv("DB_DRIVER", DriverSQLite),
		DBDSN:          getEnv("DB_DSN", "./quiz.db"),
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		Model:          getEnv("OPENAI_MODEL", "gpt-4o"),
		NumQuestions:   getEnvInt("QUIZ_NUM_QUESTIONS", DefaultNumQuestions),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		LLMLogDir:      getEnv("LLM_LOG_DIR", "log"),
		RequireAnswer:  getEnvBool("REQUIRE_ANSWER", true),
		Verbose:        getEnvBool("VERBOSE", false),
		Development:    getEnvBool("DEVELOPMENT", false),
	}

	if cfg.SessionSecret == "" && cfg.Development {
		cfg.SessionSecret = defaultSessionSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN cannot be empty")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required unless DEVELOPMENT is set")
	}
	if c.NumQuestions <= 0 {
		return fmt.Errorf("QUIZ_NUM_QUESTIONS must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}
