package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// MaxBatchStatements is the hard ceiling on statements sent in one physical batch.
const MaxBatchStatements = 100

// Options configures the store connection and its write contract.
type Options struct {
	Driver string // "sqlite" or "postgres"
	Path   string // sqlite file path
	DSN    string // postgres connection string

	ChunkSize      int
	ChunkDelay     time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	Logger *zap.Logger
}

// DB wraps a sqlx connection with the retry and chunking contract the workflow relies on.
type DB struct {
	conn   *sqlx.DB
	driver string
	path   string
	opts   Options
	logger *zap.Logger
}

// Open creates or opens the store described by opts and brings its schema up to date.
func Open(opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = "sqlite"
	}

	var (
		conn *sqlx.DB
		err  error
	)
	switch opts.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn := "file:" + opts.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		conn, err = sqlx.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		// single connection prevents SQLITE_BUSY between writers
		conn.SetMaxOpenConns(1)
	case "postgres":
		conn, err = sqlx.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		conn.SetMaxOpenConns(10)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := newDB(conn, opts)
	if err := migrate(db.conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return db, nil
}

func newDB(conn *sqlx.DB, opts Options) *DB {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50
	}
	if opts.ChunkSize > MaxBatchStatements {
		opts.ChunkSize = MaxBatchStatements
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		conn:   conn,
		driver: opts.Driver,
		path:   opts.Path,
		opts:   opts,
		logger: logger.Named("store"),
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path (empty for postgres).
func (db *DB) Path() string {
	return db.path
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}
