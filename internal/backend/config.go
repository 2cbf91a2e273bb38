package backend

import (
	"fmt"
	"time"

	"orcamento/internal/config"
)

// Config holds what the factory needs to assemble the application.
type Config struct {
	SQLiteDBPath string

	// AMQP is optional; without a URL changes only reach this process.
	AMQPURL         string
	AMQPExchange    string
	AMQPQueuePrefix string

	// Google Sheets import source, optional.
	GoogleSpreadsheetID      string
	GoogleImportRange        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	ReportCacheTTL time.Duration
	// JanitorInterval is how often expired cache entries are swept.
	JanitorInterval time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	return Config{
		SQLiteDBPath:             appConfig.SQLiteDBPath,
		AMQPURL:                  appConfig.AMQPURL,
		AMQPExchange:             appConfig.AMQPExchange,
		AMQPQueuePrefix:          appConfig.AMQPQueuePrefix,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleImportRange:        appConfig.GoogleImportRange,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		ReportCacheTTL:           appConfig.ReportCacheTTL,
		JanitorInterval:          10 * time.Minute,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueuePrefix == "") {
		return fmt.Errorf("AMQP exchange and queue prefix are required when AMQP URL is set")
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleImportRange == "" {
		return fmt.Errorf("Google import range is required when a spreadsheet is configured")
	}
	if c.ReportCacheTTL < 0 {
		return fmt.Errorf("report cache TTL cannot be negative")
	}
	return nil
}
