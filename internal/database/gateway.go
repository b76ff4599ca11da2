package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/metrics"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// Statement is one parameterized write. Queries use ? placeholders and are
// rebound for the active driver at execution time.
type Statement struct {
	Query string
	Args  []any
}

// Stmt builds a Statement.
func Stmt(query string, args ...any) Statement {
	return Statement{Query: query, Args: args}
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"reset by peer",
	"broken pipe",
	"database is locked",
	"database is busy",
	"sqlite_busy",
}

var startupMarkers = []string{
	"starting up",
	"internal error",
	"the database system is starting up",
}

// IsTransient reports whether err belongs to a retryable error class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return isStartupError(msg)
}

func isStartupError(msg string) bool {
	for _, m := range startupMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-transient error, or the
// attempts run out. Delay is base × 2^attempt, tripled for startup errors.
func (db *DB) Retry(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < db.opts.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == db.opts.MaxRetries-1 {
			break
		}

		delay := db.opts.RetryBaseDelay * time.Duration(1<<attempt)
		if isStartupError(strings.ToLower(err.Error())) {
			delay *= 3
		}
		metrics.StoreRetries.WithLabelValues(label).Inc()
		db.logger.Warn("transient store error, retrying",
			zap.String("label", label),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", label, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", label, err)
}

// chunkStatements splits stmts into consecutive groups of at most size.
func chunkStatements(stmts []Statement, size int) [][]Statement {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]Statement, 0, (len(stmts)+size-1)/size)
	for start := 0; start < len(stmts); start += size {
		end := min(start+size, len(stmts))
		chunks = append(chunks, stmts[start:end])
	}
	return chunks
}

// ErrGroupTooLarge is returned when a statement group cannot fit in one
// physical batch.
var ErrGroupTooLarge = errors.New("statement group exceeds batch ceiling")

// packGroups fills chunks of at most size statements with whole groups. A
// group larger than size gets a chunk of its own.
func packGroups(groups [][]Statement, size int) ([][]Statement, error) {
	if size <= 0 {
		size = 1
	}
	var (
		chunks  [][]Statement
		current []Statement
	)
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		if len(g) > MaxBatchStatements {
			return nil, fmt.Errorf("group %d has %d statements: %w", i, len(g), ErrGroupTooLarge)
		}
		if len(current) > 0 && len(current)+len(g) > size {
			chunks = append(chunks, current)
			current = nil
		}
		current = append(current, g...)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

// BatchInChunks executes stmts in sequential transactions of at most
// chunkSize statements (never more than MaxBatchStatements). Each chunk is
// retried on its own, so a transient failure never replays committed chunks.
func (db *DB) BatchInChunks(ctx context.Context, stmts []Statement, chunkSize int, label string) error {
	if len(stmts) == 0 {
		return nil
	}
	return db.runChunks(ctx, chunkStatements(stmts, db.chunkSize(chunkSize)), len(stmts), label)
}

// BatchGroupsInChunks is BatchInChunks for statements that must commit
// together: a group is never split across two transactions.
func (db *DB) BatchGroupsInChunks(ctx context.Context, groups [][]Statement, chunkSize int, label string) error {
	chunks, err := packGroups(groups, db.chunkSize(chunkSize))
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	return db.runChunks(ctx, chunks, total, label)
}

func (db *DB) chunkSize(requested int) int {
	if requested <= 0 {
		requested = db.opts.ChunkSize
	}
	return min(requested, MaxBatchStatements)
}

func (db *DB) runChunks(ctx context.Context, chunks [][]Statement, total int, label string) error {
	for i, chunk := range chunks {
		err := db.Retry(ctx, label, func(ctx context.Context) error {
			return db.execChunk(ctx, chunk)
		})
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		metrics.StoreChunks.WithLabelValues(label).Inc()

		if i < len(chunks)-1 && db.opts.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(db.opts.ChunkDelay):
			}
		}
	}

	db.logger.Debug("batch written",
		zap.String("label", label),
		zap.Int("statements", total),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func (db *DB) execChunk(ctx context.Context, chunk []Statement) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, s := range chunk {
		if _, err := tx.ExecContext(ctx, db.conn.Rebind(s.Query), s.Args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// exec runs a single statement under the retry wrapper.
func (db *DB) exec(ctx context.Context, label, query string, args ...any) error {
	return db.Retry(ctx, label, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx, db.conn.Rebind(query), args...)
		return err
	})
}

// selectAll runs a read query under the retry wrapper. Zero rows is not an error.
func (db *DB) selectAll(ctx context.Context, label string, dest any, query string, args ...any) error {
	return db.Retry(ctx, label, func(ctx context.Context) error {
		return db.conn.SelectContext(ctx, dest, db.conn.Rebind(query), args...)
	})
}
