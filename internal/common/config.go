package common

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Drive    DriveConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds persistence-store configuration.
type DatabaseConfig struct {
	Driver           string // "pgx" or "sqlite"
	DSN              string
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	MaxRecords       int // FIFO retention cap for document rows
}

// DriveConfig holds the remote file store folder identifiers.
type DriveConfig struct {
	CredentialsFile string
	IncomingID      string
	ProcessingID    string
	VerifiedID      string
	NeedsReviewID   string
}

// LLMConfig holds document-intelligence configuration.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string // classification + analysis
	VisionModel string // OCR
	Temperature float32
	Timeout     time.Duration
}

// PipelineConfig holds orchestrator behavior.
type PipelineConfig struct {
	PollInterval time.Duration
	WorkDir      string // scratch space for downloads and rendered pages
	Pdftoppm     string // binary name or absolute path; if empty -> "pdftoppm"
	OCRDPI       int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:data/visadocs.db"),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			MaxRecords:       getEnvAsInt("DB_MAX_RECORDS", 1000),
		},
		Drive: DriveConfig{
			CredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", "service_account.json"),
			IncomingID:      getEnv("GOOGLE_DRIVE_INCOMING_FOLDER_ID", ""),
			ProcessingID:    getEnv("GOOGLE_DRIVE_PROCESSING_FOLDER_ID", ""),
			VerifiedID:      getEnv("GOOGLE_DRIVE_VERIFIED_FOLDER_ID", ""),
			NeedsReviewID:   getEnv("GOOGLE_DRIVE_NEEDS_REVIEW_FOLDER_ID", ""),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			VisionModel: getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
			WorkDir:      getEnv("WORK_DIR", "./tmp"),
			Pdftoppm:     getEnv("PDFTOPPM_BIN", "pdftoppm"),
			OCRDPI:       getEnvAsInt("OCR_DPI", 200),
		},
	}
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("pgx", "sqlite")),
		validation.Field(&c.Database.DSN, validation.Required),
	); err != nil {
		return NewAppError("CONFIG_ERROR", "database configuration invalid", err)
	}
	if err := validation.ValidateStruct(&c.Drive,
		validation.Field(&c.Drive.IncomingID, validation.Required),
		validation.Field(&c.Drive.ProcessingID, validation.Required),
		validation.Field(&c.Drive.VerifiedID, validation.Required),
		validation.Field(&c.Drive.NeedsReviewID, validation.Required),
	); err != nil {
		return NewAppError("CONFIG_ERROR", "drive folder configuration invalid", err)
	}
	if err := validation.ValidateStruct(&c.LLM,
		validation.Field(&c.LLM.APIKey, validation.Required),
		validation.Field(&c.LLM.Model, validation.Required),
		validation.Field(&c.LLM.VisionModel, validation.Required),
	); err != nil {
		return NewAppError("CONFIG_ERROR", "llm configuration invalid", err)
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
