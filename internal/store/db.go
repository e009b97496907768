package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/gamenight/scheduler/internal/telemetry"
)

// DB wraps *sql.DB the way the teacher's internal/database.DB does,
// adding the RLS guild-context helper (WithGuildContext) this system
// needs on top of the plain connection.
type DB struct {
	*sql.DB
}

// Config holds the connection parameters. The non-superuser
// application role (see spec §4.6(a) / §6) must be used here — a
// separate privileged role is used only by the init container's
// migration runner.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c Config) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewConnection opens a plain, uninstrumented connection pool.
func NewConnection(config Config) (*DB, error) {
	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"host": config.Host, "port": config.Port, "database": config.DBName,
		"operation": "database_connection",
	})
	logger.Info("establishing database connection")

	db, err := sql.Open("postgres", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	configurePool(db)

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("failed to ping database")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("database connection established")
	return &DB{db}, nil
}

// NewInstrumentedConnection opens a connection pool wrapped with
// OpenTelemetry SQL instrumentation (grounded on
// internal/database.NewInstrumentedConnection) — used by every
// long-running component (C4, C5, C7, C8) so query latency and error
// rate show up in traces.
func NewInstrumentedConnection(config Config) (*DB, error) {
	ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"host": config.Host, "port": config.Port, "database": config.DBName,
		"operation": "instrumented_database_connection",
	})
	logger.Info("establishing instrumented database connection")

	port, _ := strconv.Atoi(config.Port)
	db, err := otelsql.Open("postgres", config.dsn(),
		otelsql.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBName(config.DBName),
			semconv.NetPeerName(config.Host),
			semconv.NetPeerPort(port),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open instrumented database: %w", err)
	}

	configurePool(db)

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("failed to ping instrumented database")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL, semconv.DBName(config.DBName)),
	); err != nil {
		logger.WithError(err).Warn("failed to register database stats metrics")
	}

	logger.Info("instrumented database connection established")
	return &DB{db}, nil
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) Health() error {
	return db.Ping()
}

// guildContextKey is the app.current_guild session binding used by RLS
// policies on game/template/participant (spec §4.6(a), DESIGN NOTES §9).
const guildContextKey = "app.current_guild"

// WithGuildContext runs fn inside a transaction with
// `SET LOCAL app.current_guild = <guildID>` applied first, so every
// statement fn issues is constrained by the table's row-level-security
// policy to that tenant. This is the single place the RLS binding
// happens — handlers never issue SET LOCAL themselves.
func (db *DB) WithGuildContext(ctx context.Context, guildID string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	// set_config's third argument (is_local=true) scopes the setting to
	// this transaction only, mirroring SET LOCAL without string-building
	// the guild id into the SQL text.
	if _, err = tx.ExecContext(ctx, `SELECT set_config($1, $2, true)`, guildContextKey, guildID); err != nil {
		return fmt.Errorf("failed to bind guild context: %w", err)
	}

	return fn(tx)
}

// WithTransaction runs fn inside a plain transaction with no guild
// binding — used only by components that are inherently cross-tenant
// (the schedule daemons, the retry daemon) and therefore connect with a
// role that bypasses RLS entirely (see spec §4.6(a) "non-superuser...
// so RLS is enforced" — the daemons use a distinct row-scoped role that
// reads by explicit game_id/guild_id join, never a broad SELECT).
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return fn(tx)
}
