package database

import (
	"context"
	"database/sql"
)

type categoryRow struct {
	ID          string         `db:"id"`
	RunID       string         `db:"run_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Confidence  float64        `db:"confidence"`
	SourceURLs  sql.NullString `db:"source_urls"`
	CreatedAt   string         `db:"created_at"`
}

func (r categoryRow) toCategory() Category {
	c := Category{
		ID:          r.ID,
		RunID:       r.RunID,
		Name:        r.Name,
		Description: r.Description,
		Confidence:  r.Confidence,
		CreatedAt:   parseTime(r.CreatedAt),
	}
	fromJSON(r.SourceURLs, &c.SourceURLs)
	if c.SourceURLs == nil {
		c.SourceURLs = []string{}
	}
	return c
}

// upsertCategory replaces a category by id within its run. created_at is
// excluded from the update so re-saving keeps the original creation
// timestamp; a row owned by another run is left untouched.
func upsertCategory(c Category) Statement {
	created := c.CreatedAt
	if created.IsZero() {
		created = now()
	}
	urls := c.SourceURLs
	if urls == nil {
		urls = []string{}
	}
	return Stmt(`INSERT INTO categories (id, run_id, name, description, confidence, source_urls, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    confidence = excluded.confidence,
    source_urls = excluded.source_urls
WHERE categories.run_id = excluded.run_id`,
		c.ID, c.RunID, c.Name, c.Description, c.Confidence, toJSON(urls), formatTime(created),
	)
}

// SaveCategories upserts categories in chunked batches.
func (db *DB) SaveCategories(ctx context.Context, categories []Category) error {
	stmts := make([]Statement, 0, len(categories))
	for _, c := range categories {
		stmts = append(stmts, upsertCategory(c))
	}
	return db.BatchInChunks(ctx, stmts, 0, "save categories")
}

// GetCategories returns a run's categories in creation order.
func (db *DB) GetCategories(ctx context.Context, runID string) ([]Category, error) {
	var rows []categoryRow
	err := db.selectAll(ctx, "get categories", &rows,
		`SELECT id, run_id, name, description, confidence, source_urls, created_at
FROM categories WHERE run_id = ? ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, err
	}
	categories := make([]Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, r.toCategory())
	}
	return categories, nil
}
