// Package backend assembles the application from configuration: storage,
// the change-event bus, services and the optional spreadsheet source.
package backend

import (
	"context"

	"orcamento/internal/amqp"
	"orcamento/internal/cache"
	"orcamento/internal/events"
	apphttp "orcamento/internal/http"
	"orcamento/internal/sheets"
	"orcamento/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// App is a fully wired application. Run starts its background work; Close
// releases the broker connection and the database.
type App struct {
	Repo     *storage.SQLiteRepository
	Hub      *events.Hub
	Services apphttp.Services
	// Sheet is nil unless a spreadsheet is configured.
	Sheet sheets.RowReader

	broker  *amqp.Client
	janitor *cache.Janitor
	config  Config
	cleanup []CleanupFunc
}

// Factory creates applications based on configuration
type Factory interface {
	Build(ctx context.Context, config Config) (*App, error)
}
