// Package sqlstore persists records in a relational database through sqlx.
// Postgres and sqlite are supported; the schema is applied with embedded
// migrations at startup.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ulugbekdev/cargobot/core/logger"
	"github.com/ulugbekdev/cargobot/store"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Supported sqlx driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Store runs plain parameterized SQL through an sqlx pool.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Connect opens the pool, verifies connectivity and returns the store.
func Connect(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, store.WrapErr("connect", "", fmt.Errorf("unsupported driver %q", driver))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	took := time.Since(start)
	if err != nil {
		logger.STORE.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", driver),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, store.WrapErr("connect", "", err)
	}

	logger.STORE.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", driver),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return &Store{db: db, driver: driver}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Init applies all pending up migrations from the embedded set.
func (s *Store) Init(ctx context.Context) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return store.WrapErr("init", "", err)
	}

	var target database.Driver
	switch s.driver {
	case DriverPostgres:
		target, err = migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	}
	if err != nil {
		return store.WrapErr("init", "", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, target)
	if err != nil {
		return store.WrapErr("init", "", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return store.WrapErr("init", "", err)
	}

	logger.STORE.Info("migrations applied",
		slog.String("event", "db.migrate"),
		slog.String("driver", s.driver),
	)
	return nil
}

func (s *Store) ListParties(ctx context.Context) ([]store.Party, error) {
	var parties []store.Party
	err := s.db.SelectContext(ctx, &parties,
		s.db.Rebind(`SELECT code, status FROM parties ORDER BY code`))
	if err != nil {
		return nil, store.WrapErr("list", store.TableParties, err)
	}
	return parties, nil
}

func (s *Store) AppendParty(ctx context.Context, p store.Party) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO parties (code, status) VALUES (?, ?)`),
		p.Code, p.Status)
	return store.WrapErr("append", store.TableParties, err)
}

func (s *Store) UpdatePartyStatus(ctx context.Context, code, status string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE parties SET status = ? WHERE code = ?`),
		status, code)
	if err != nil {
		return store.WrapErr("update", store.TableParties, err)
	}
	return s.checkAffected(res, "update", store.TableParties)
}

func (s *Store) DeleteParty(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM parties WHERE code = ?`), code)
	if err != nil {
		return store.WrapErr("delete", store.TableParties, err)
	}
	return s.checkAffected(res, "delete", store.TableParties)
}

func (s *Store) ListClients(ctx context.Context) ([]store.Client, error) {
	var clients []store.Client
	err := s.db.SelectContext(ctx, &clients, s.db.Rebind(
		`SELECT id, party, mesta, kub, kg, destination, date, image
		   FROM clients ORDER BY id`))
	if err != nil {
		return nil, store.WrapErr("list", store.TableClients, err)
	}
	return clients, nil
}

func (s *Store) AppendClient(ctx context.Context, c store.Client) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO clients (id, party, mesta, kub, kg, destination, date, image)
		 VALUES (:id, :party, :mesta, :kub, :kg, :destination, :date, :image)`, c)
	return store.WrapErr("append", store.TableClients, err)
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM clients WHERE id = ?`), id)
	if err != nil {
		return store.WrapErr("delete", store.TableClients, err)
	}
	return s.checkAffected(res, "delete", store.TableClients)
}

func (s *Store) checkAffected(res sql.Result, op, table string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return store.WrapErr(op, table, err)
	}
	if n == 0 {
		return store.WrapErr(op, table, store.ErrNotFound)
	}
	return nil
}
