package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"orcamento/internal/amqp"
	"orcamento/internal/cache"
	"orcamento/internal/events"
	apphttp "orcamento/internal/http"
	"orcamento/internal/services"
	gsheet "orcamento/internal/sheets/google"
	"orcamento/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new application factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Build opens the database, connects the change-event bus and creates every
// service. A broker or spreadsheet that cannot be reached is logged and
// skipped; the application keeps working locally.
func (f *DefaultFactory) Build(ctx context.Context, config Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	app := &App{
		Repo:    repo,
		Hub:     events.NewHub(),
		janitor: cache.NewJanitor(),
		config:  config,
	}
	app.cleanup = append(app.cleanup, repo.Close)

	var broker events.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueuePrefix)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, changes stay in this process", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue_prefix", config.AMQPQueuePrefix)
			app.broker = client
			broker = client
			app.cleanup = append([]CleanupFunc{client.Close}, app.cleanup...)
		}
	}
	publisher := changePublisher(app.Hub, broker)

	reports := services.NewReportService(repo, config.ReportCacheTTL)
	if c := reports.Cache(); c != nil {
		app.janitor.Register(c)
	}
	app.Services = apphttp.Services{
		Planned:    services.NewPlannedService(repo, publisher),
		Expenses:   services.NewExpenseService(repo, publisher),
		Taxonomy:   services.NewTaxonomyService(repo, publisher),
		Reports:    reports,
		Imports:    services.NewImportService(repo, publisher),
		Activities: services.NewActivityService(repo),
	}

	if config.GoogleSpreadsheetID != "" {
		sheet, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			Range:              config.GoogleImportRange,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			OAuthClientJSON:    config.GoogleOAuthClientJSON,
			OAuthClientFile:    config.GoogleOAuthClientFile,
			OAuthTokenFile:     config.GoogleOAuthTokenFile,
		})
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets client, spreadsheet import disabled", "error", err)
		} else {
			f.logger.Info("Initialized Google Sheets import source", "range", sheet.Range())
			app.Sheet = sheet
		}
	}

	f.logger.Info("Initialized application",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", app.broker != nil,
		"sheets_enabled", app.Sheet != nil)
	return app, nil
}

// changePublisher delivers every change to the local hub first, so this
// instance's listeners and report cache never depend on the broker. With a
// broker the change also goes to the exchange for the other instances; the
// relay drops it when it comes back.
func changePublisher(hub *events.Hub, broker events.Publisher) events.Publisher {
	if broker == nil {
		return hub
	}
	return events.Multi{hub, broker}
}

// Run keeps the report cache in sync with changes, sweeps expired cache
// entries and, with a broker, relays changes from other instances into the
// hub. It returns when ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Services.Reports.Watch(gctx, a.Hub)
		return nil
	})
	if a.config.JanitorInterval > 0 {
		g.Go(func() error {
			a.janitor.Run(gctx, a.config.JanitorInterval)
			return nil
		})
	}
	if a.broker != nil {
		g.Go(func() error {
			err := a.broker.Relay(gctx, a.Hub)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for _, fn := range a.cleanup {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
