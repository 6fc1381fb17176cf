package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
)

// Dialect selects SQL placeholder and type syntax
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Database is an open *sql.DB together with its dialect
type Database struct {
	DB      *sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
}

// OpenDatabase connects to the configured database and creates the schema if needed
func OpenDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*Database, error) {
	var (
		db  *Database
		err error
	)
	switch Dialect(cfg.Driver) {
	case DialectPostgres:
		db, err = openPostgres(ctx, cfg)
	case DialectSQLite:
		db, err = openSQLite(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("database ready", "driver", cfg.Driver)
	return db, nil
}

func openPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*Database, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "property-management"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{
		DB:      stdlib.OpenDBFromPool(pool),
		Dialect: DialectPostgres,
		pool:    pool,
	}, nil
}

func openSQLite(ctx context.Context, path string) (*Database, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one connection: writes are serialized anyway and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Database{DB: db, Dialect: DialectSQLite}, nil
}

func sqliteDSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
}

func (d *Database) Close() error {
	err := d.DB.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for postgres
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Database) migrate(ctx context.Context) error {
	timestamp, number := "DATETIME", "REAL"
	if d.Dialect == DialectPostgres {
		timestamp, number = "TIMESTAMPTZ", "DOUBLE PRECISION"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL,
			name TEXT NOT NULL,
			property_number TEXT NOT NULL,
			management_type TEXT NOT NULL,
			property_manager TEXT NOT NULL,
			accountant TEXT NOT NULL,
			source_document TEXT,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL,
			UNIQUE (tenant, property_number)
		)`, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS buildings (
			id TEXT PRIMARY KEY,
			property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			street TEXT NOT NULL,
			house_number TEXT NOT NULL,
			zip_code TEXT NOT NULL,
			city TEXT NOT NULL,
			created_at %s NOT NULL
		)`, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			building_id TEXT NOT NULL REFERENCES buildings(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			unit_number TEXT NOT NULL,
			unit_type TEXT NOT NULL,
			floor TEXT NOT NULL,
			entrance TEXT,
			size_m2 %[1]s NOT NULL,
			co_ownership_share TEXT NOT NULL,
			construction_year INTEGER,
			room_count %[1]s NOT NULL,
			created_at %[2]s NOT NULL
		)`, number, timestamp),
		`CREATE INDEX IF NOT EXISTS idx_properties_tenant_created ON properties(tenant, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_source_document ON properties(source_document)`,
		`CREATE INDEX IF NOT EXISTS idx_buildings_property ON buildings(property_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_units_building ON units(building_id, position)`,
	}

	for _, stmt := range statements {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
