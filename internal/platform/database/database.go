package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"library_lending/internal/platform/config"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu dialect
	_ "github.com/jackc/pgx/v5/stdlib"                  // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the shared handle every repository is built from.
type Store struct {
	DB      *sqlx.DB
	Dialect goqu.DialectWrapper
	Driver  string
}

// Connect opens and pings the configured database.
func Connect(ctx context.Context, driver, dsn string, log *zap.Logger) (*Store, error) {
	sqlDriver, dialect, dsn, err := resolve(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if driver == config.DriverSQLite {
		// A single connection serialises writers; SQLite has one writer anyway.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	log.Info("Database connected", zap.String("driver", driver))
	return &Store{DB: db, Dialect: goqu.Dialect(dialect), Driver: driver}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// resolve maps a configured driver to the database/sql driver name, the goqu
// dialect, and the DSN that driver expects.
func resolve(driver, dsn string) (sqlDriver, dialect, resolvedDSN string, err error) {
	switch driver {
	case config.DriverPostgres:
		return "pgx", "postgres", dsn, nil
	case config.DriverSQLite:
		return "sqlite", "sqlite3", sqliteDSN(dsn), nil
	default:
		return "", "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

var sqliteParams = []struct{ marker, param string }{
	{"busy_timeout", "_pragma=busy_timeout(5000)"},
	{"foreign_keys", "_pragma=foreign_keys(1)"},
	{"_txlock", "_txlock=immediate"},
	{"_time_format", "_time_format=sqlite"},
}

// sqliteDSN appends the connection parameters the store relies on unless the
// operator already set them.
func sqliteDSN(dsn string) string {
	var missing []string
	for _, p := range sqliteParams {
		if !strings.Contains(dsn, p.marker) {
			missing = append(missing, p.param)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}
