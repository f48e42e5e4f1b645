package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mbolis/quick-apply/config"
	"github.com/mbolis/quick-apply/database"
	"github.com/mbolis/quick-apply/model"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// Store is an append-only log of applications. Implementations are safe for
// concurrent use and List returns records in the order they were appended.
type Store interface {
	// Append assigns ID (and CreatedAt when zero) and persists a.
	Append(ctx context.Context, a *model.Application) error
	List(ctx context.Context) ([]model.Application, error)
	Close() error
}

// Open selects the backend named by cfg.Store. The sqlite backend shares the
// control DB and does not close it.
func Open(cfg config.Config, control *sql.DB) (Store, error) {
	switch cfg.Store {
	case "sqlite":
		return NewSQL(control, SQLite, false), nil
	case "postgres":
		db, err := database.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewSQL(db, Postgres, true), nil
	case "csv":
		return OpenCSV(cfg.StorePath)
	case "xlsx":
		return OpenExcel(cfg.StorePath)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store)
}

func stamp(a *model.Application, id int64) {
	a.ID = id
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Second)
}
