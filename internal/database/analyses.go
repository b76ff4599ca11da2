package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SaveAnalyses overwrites the analysis row of every prompt in analyses.
func (db *DB) SaveAnalyses(ctx context.Context, analyses []PromptAnalysis) error {
	stmts := make([]Statement, 0, len(analyses))
	for _, a := range analyses {
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now()
		}
		stmts = append(stmts, Stmt(`INSERT INTO prompt_analyses (prompt_id, run_id, exact_mentions, fuzzy_mentions, citation_count, sentiment, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (prompt_id) DO UPDATE SET
    exact_mentions = excluded.exact_mentions,
    fuzzy_mentions = excluded.fuzzy_mentions,
    citation_count = excluded.citation_count,
    sentiment = excluded.sentiment,
    payload = excluded.payload,
    updated_at = excluded.updated_at`,
			a.PromptID, a.RunID, a.ExactMentions, a.FuzzyMentions, a.CitationCount,
			a.Sentiment.Tone, toJSON(a).String, formatTime(a.UpdatedAt),
		))
	}
	return db.BatchInChunks(ctx, stmts, 0, "save analyses")
}

type categoryAnalysisRow struct {
	CategoryID   string `db:"category_id"`
	CategoryName string `db:"category_name"`
	Payload      string `db:"payload"`
}

// GetCategoryAnalyses returns every analysis of a run joined to the category
// of its prompt.
func (db *DB) GetCategoryAnalyses(ctx context.Context, runID string) ([]CategoryAnalysis, error) {
	var rows []categoryAnalysisRow
	err := db.selectAll(ctx, "category analyses", &rows,
		`SELECT c.id AS category_id, c.name AS category_name, a.payload
FROM prompt_analyses a
JOIN prompts p ON p.id = a.prompt_id
JOIN categories c ON c.id = p.category_id
WHERE a.run_id = ?
ORDER BY c.created_at, c.id, p.created_at, p.id`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryAnalysis, 0, len(rows))
	for _, r := range rows {
		ca := CategoryAnalysis{CategoryID: r.CategoryID, CategoryName: r.CategoryName}
		fromJSON(sql.NullString{String: r.Payload, Valid: true}, &ca.Analysis)
		out = append(out, ca)
	}
	return out, nil
}

// GetAnalyses returns the analyses of a run keyed by prompt id.
func (db *DB) GetAnalyses(ctx context.Context, runID string) (map[string]PromptAnalysis, error) {
	var payloads []string
	err := db.selectAll(ctx, "get analyses", &payloads,
		"SELECT payload FROM prompt_analyses WHERE run_id = ?", runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]PromptAnalysis, len(payloads))
	for _, p := range payloads {
		var a PromptAnalysis
		fromJSON(sql.NullString{String: p, Valid: true}, &a)
		out[a.PromptID] = a
	}
	return out, nil
}

// ReplaceCategoryMetrics deletes a run's category metrics and inserts metrics.
func (db *DB) ReplaceCategoryMetrics(ctx context.Context, runID string, metrics []CategoryMetric) error {
	stmts := []Statement{Stmt("DELETE FROM category_metrics WHERE run_id = ?", runID)}
	for _, m := range metrics {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := m.CreatedAt
		if created.IsZero() {
			created = now()
		}
		stmts = append(stmts, Stmt(`INSERT INTO category_metrics (id, run_id, category_id, visibility_score, citation_rate, mention_rate, competitor_rate, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, runID, m.CategoryID, m.VisibilityScore, m.CitationRate, m.MentionRate, m.CompetitorRate, formatTime(created),
		))
	}
	return db.BatchInChunks(ctx, stmts, 0, "category metrics")
}

type categoryMetricRow struct {
	ID              string  `db:"id"`
	RunID           string  `db:"run_id"`
	CategoryID      string  `db:"category_id"`
	CategoryName    string  `db:"category_name"`
	VisibilityScore float64 `db:"visibility_score"`
	CitationRate    float64 `db:"citation_rate"`
	MentionRate     float64 `db:"mention_rate"`
	CompetitorRate  float64 `db:"competitor_rate"`
	CreatedAt       string  `db:"created_at"`
}

// GetCategoryMetrics returns a run's category metrics, best visibility first.
func (db *DB) GetCategoryMetrics(ctx context.Context, runID string) ([]CategoryMetric, error) {
	var rows []categoryMetricRow
	err := db.selectAll(ctx, "get category metrics", &rows,
		`SELECT m.id, m.run_id, m.category_id, c.name AS category_name, m.visibility_score,
       m.citation_rate, m.mention_rate, m.competitor_rate, m.created_at
FROM category_metrics m JOIN categories c ON c.id = m.category_id
WHERE m.run_id = ?
ORDER BY m.visibility_score DESC, c.name`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryMetric, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryMetric{
			ID:              r.ID,
			RunID:           r.RunID,
			CategoryID:      r.CategoryID,
			CategoryName:    r.CategoryName,
			VisibilityScore: r.VisibilityScore,
			CitationRate:    r.CitationRate,
			MentionRate:     r.MentionRate,
			CompetitorRate:  r.CompetitorRate,
			CreatedAt:       parseTime(r.CreatedAt),
		})
	}
	return out, nil
}

// ReplaceTimeSeries deletes a run's time series and inserts points.
func (db *DB) ReplaceTimeSeries(ctx context.Context, runID string, points []TimeSeriesPoint) error {
	stmts := []Statement{Stmt("DELETE FROM time_series WHERE run_id = ?", runID)}
	for _, p := range points {
		stmts = append(stmts, Stmt(
			"INSERT INTO time_series (run_id, day, responses, mentions) VALUES (?, ?, ?, ?)",
			runID, p.Date, p.Responses, p.Mentions,
		))
	}
	return db.BatchInChunks(ctx, stmts, 0, "time series")
}

// GetTimeSeries returns a run's per-day points in date order.
func (db *DB) GetTimeSeries(ctx context.Context, runID string) ([]TimeSeriesPoint, error) {
	var points []TimeSeriesPoint
	err := db.selectAll(ctx, "get time series", &points,
		"SELECT day AS date, responses, mentions FROM time_series WHERE run_id = ? ORDER BY day", runID)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []TimeSeriesPoint{}
	}
	return points, nil
}

// ReplaceSummary deletes any existing summary for the run and inserts s in
// the same transaction, leaving exactly one summary row.
func (db *DB) ReplaceSummary(ctx context.Context, s *Summary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	stmts := []Statement{
		Stmt("DELETE FROM summaries WHERE run_id = ?", s.RunID),
		Stmt(`INSERT INTO summaries (id, run_id, total_mentions, total_citations, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, s.RunID, s.TotalMentions, s.TotalCitations, toJSON(s).String, formatTime(s.CreatedAt),
		),
	}
	return db.BatchInChunks(ctx, stmts, len(stmts), "summary")
}

// GetSummary returns the current summary for a run, or nil when none exists.
func (db *DB) GetSummary(ctx context.Context, runID string) (*Summary, error) {
	var payload string
	err := db.Retry(ctx, "get summary", func(ctx context.Context) error {
		return db.conn.GetContext(ctx, &payload,
			db.conn.Rebind("SELECT payload FROM summaries WHERE run_id = ? ORDER BY created_at DESC LIMIT 1"), runID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Summary
	fromJSON(sql.NullString{String: payload, Valid: true}, &s)
	return &s, nil
}

// CountSummaries returns the number of summary rows stored for a run.
func (db *DB) CountSummaries(ctx context.Context, runID string) (int, error) {
	var n int
	err := db.Retry(ctx, "count summaries", func(ctx context.Context) error {
		return db.conn.GetContext(ctx, &n, db.conn.Rebind("SELECT COUNT(*) FROM summaries WHERE run_id = ?"), runID)
	})
	if err != nil {
		return 0, fmt.Errorf("counting summaries: %w", err)
	}
	return n, nil
}
