package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/relihub/internal/core/config"
	"github.com/vietddude/relihub/internal/core/domain"
	"github.com/vietddude/relihub/internal/infra/storage"
	"github.com/vietddude/relihub/internal/infra/storage/memory"
	"github.com/vietddude/relihub/internal/infra/storage/postgres"
	"github.com/vietddude/relihub/internal/infra/storage/sqlite"
	"github.com/vietddude/relihub/internal/infra/storage/sqlstore"
)

// WorkItemStore is the work item repository plus seeding.
type WorkItemStore interface {
	storage.WorkItemRepository
	Save(ctx context.Context, item *domain.WorkItem) error
}

type repositories struct {
	events storage.EventRepository
	items  WorkItemStore
	ping   func(ctx context.Context) error
	sql    *sqlstore.Store
}

// openStorage initializes the configured backend and applies migrations.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*repositories, error) {
	var (
		store *sqlstore.Store
		err   error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = postgres.NewDB(ctx, cfg.Config)
	case config.DriverSQLite:
		store, err = sqlite.Open(ctx, cfg.URL)
	case config.DriverMemory, "":
		mem := memory.NewMemoryStorage()
		log.Info("Using Memory storage")
		return &repositories{
			events: memory.NewEventRepo(mem),
			items:  memory.NewWorkItemRepo(mem),
			ping:   mem.Ping,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("Using SQL storage", "driver", cfg.Driver)

	return &repositories{
		events: sqlstore.NewEventRepo(store),
		items:  sqlstore.NewWorkItemRepo(store),
		ping:   store.Ping,
		sql:    store,
	}, nil
}
