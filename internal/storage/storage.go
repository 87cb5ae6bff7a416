package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	apperrors "github.com/johann/primevista/internal/errors"
	"github.com/johann/primevista/internal/model"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// contentTables lists every table the landing page and admin panel rely on.
var contentTables = []string{"services", "projects", "clients", "subscribers", "contacts"}

// Storage owns the SQLite connection pool and the content collections.
type Storage struct {
	db       *sqlx.DB
	writeMu  sync.Mutex // Serialize write operations
	validate *model.Validator
	logger   zerolog.Logger

	Services    *Collection[model.Service]
	Projects    *Collection[model.Project]
	Clients     *Collection[model.Client]
	Subscribers *Collection[model.Subscriber]
	Contacts    *Collection[model.ContactRequest]
}

// Open connects to the SQLite file at path. It does not create tables;
// call Initialize for that. Any failure to open or write the location is
// returned as a storage error.
func Open(path string, logger zerolog.Logger) (*Storage, error) {
	if path == "" {
		return nil, apperrors.Storage(fmt.Errorf("empty path"), "open database")
	}
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, apperrors.Storage(err, "open database")
		}
	}

	// Add busy_timeout and WAL mode via connection string
	dsn := path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Storage(err, "open database")
	}

	// Journal mode is only switched once the file is writable, so this also
	// rejects read-only locations before we ever try to serve.
	var mode string
	if err := db.Get(&mode, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperrors.Storage(err, "enable WAL mode")
	}

	s := &Storage{
		db:       db,
		validate: model.NewValidator(),
		logger:   logger.With().Str("component", "storage").Logger(),
	}

	s.Services = newCollection[model.Service](s, collectionSpec{
		table:   "services",
		noun:    "service",
		columns: []string{"title", "description", "icon"},
	})
	s.Projects = newCollection[model.Project](s, collectionSpec{
		table:   "projects",
		noun:    "project",
		columns: []string{"title", "description", "image", "link"},
	})
	s.Clients = newCollection[model.Client](s, collectionSpec{
		table:   "clients",
		noun:    "client",
		columns: []string{"name", "designation", "quote", "photo"},
	})
	s.Subscribers = newCollection[model.Subscriber](s, collectionSpec{
		table:     "subscribers",
		noun:      "subscriber",
		columns:   []string{"email"},
		unique:    "email",
		immutable: true,
	})
	s.Contacts = newCollection[model.ContactRequest](s, collectionSpec{
		table:     "contacts",
		noun:      "contact request",
		columns:   []string{"full_name", "email", "mobile", "city"},
		immutable: true,
	})

	return s, nil
}

// Close closes the storage
func (s *Storage) Close() error {
	return s.db.Close()
}

// Initialize creates every content table that does not exist yet. It is
// safe to call on an initialised database: nothing is re-applied and no
// rows are touched.
func (s *Storage) Initialize(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return apperrors.Storage(err, "load migrations")
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db.DB, migrations)
	if err != nil {
		return apperrors.Storage(err, "prepare migrations")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return apperrors.Storage(err, "apply migrations")
	}

	for _, r := range results {
		s.logger.Info().
			Str("migration", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("applied migration")
	}
	if len(results) == 0 {
		s.logger.Debug().Msg("schema already up to date")
	}

	return s.Ready(ctx)
}

// Ready reports a storage error unless every content table exists.
func (s *Storage) Ready(ctx context.Context) error {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN (?)`, contentTables)
	if err != nil {
		return apperrors.Storage(err, "check schema")
	}

	var found int
	if err := s.db.GetContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return apperrors.Storage(err, "check schema")
	}
	if found != len(contentTables) {
		return apperrors.Storage(
			fmt.Errorf("found %d of %d content tables", found, len(contentTables)),
			"database is not initialised (run with --init-db)",
		)
	}
	return nil
}

// Counts returns the number of rows in each content table.
func (s *Storage) Counts(ctx context.Context) (model.Counts, error) {
	var c model.Counts
	var err error

	if c.Services, err = s.Services.Count(ctx); err != nil {
		return c, err
	}
	if c.Projects, err = s.Projects.Count(ctx); err != nil {
		return c, err
	}
	if c.Clients, err = s.Clients.Count(ctx); err != nil {
		return c, err
	}
	if c.Subscribers, err = s.Subscribers.Count(ctx); err != nil {
		return c, err
	}
	if c.Contacts, err = s.Contacts.Count(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// write runs fn inside a transaction while holding the write lock. The
// transaction is committed before write returns, so a following read sees
// the change.
func (s *Storage) write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
