package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type runRow struct {
	ID                 string         `db:"id"`
	WebsiteURL         string         `db:"website_url"`
	BrandName          string         `db:"brand_name"`
	Country            string         `db:"country"`
	Region             sql.NullString `db:"region"`
	Language           string         `db:"language"`
	Status             string         `db:"status"`
	CurrentStep        string         `db:"current_step"`
	Progress           sql.NullString `db:"progress"`
	URLs               sql.NullString `db:"urls"`
	FoundSitemap       int            `db:"found_sitemap"`
	SelectedCategories sql.NullString `db:"selected_categories"`
	CustomCategories   sql.NullString `db:"custom_categories"`
	PromptsGenerated   int            `db:"prompts_generated"`
	CreatedAt          string         `db:"created_at"`
	UpdatedAt          string         `db:"updated_at"`
}

const runColumns = `id, website_url, brand_name, country, region, language, status,
current_step, progress, urls, found_sitemap, selected_categories,
custom_categories, prompts_generated, created_at, updated_at`

func (r runRow) toRun() *AnalysisRun {
	run := &AnalysisRun{
		ID:               r.ID,
		WebsiteURL:       r.WebsiteURL,
		BrandName:        r.BrandName,
		Country:          r.Country,
		Language:         r.Language,
		Status:           RunStatus(r.Status),
		CurrentStep:      r.CurrentStep,
		FoundSitemap:     r.FoundSitemap != 0,
		PromptsGenerated: r.PromptsGenerated,
		CreatedAt:        parseTime(r.CreatedAt),
		UpdatedAt:        parseTime(r.UpdatedAt),
	}
	if r.Region.Valid {
		region := r.Region.String
		run.Region = &region
	}
	fromJSON(r.Progress, &run.Progress)
	fromJSON(r.URLs, &run.URLs)
	fromJSON(r.SelectedCategories, &run.SelectedCategories)
	fromJSON(r.CustomCategories, &run.CustomCategories)
	return run
}

// CreateRun inserts a new run row. CreatedAt/UpdatedAt are set when zero.
func (db *DB) CreateRun(ctx context.Context, run *AnalysisRun) error {
	ts := now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = ts
	}
	run.UpdatedAt = ts
	if run.Status == "" {
		run.Status = StatusPending
	}

	var region sql.NullString
	if run.Region != nil {
		region = sql.NullString{String: *run.Region, Valid: true}
	}

	return db.exec(ctx, "create run",
		`INSERT INTO analysis_runs (`+runColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WebsiteURL, run.BrandName, run.Country, region, run.Language,
		string(run.Status), run.CurrentStep, toJSON(run.Progress), toJSON(run.URLs),
		boolToInt(run.FoundSitemap), toJSON(run.SelectedCategories),
		toJSON(run.CustomCategories), run.PromptsGenerated,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
	)
}

// GetRun loads a run by id, returning ErrRunNotFound when absent.
func (db *DB) GetRun(ctx context.Context, id string) (*AnalysisRun, error) {
	var row runRow
	err := db.Retry(ctx, "get run", func(ctx context.Context) error {
		return db.conn.GetContext(ctx, &row,
			db.conn.Rebind("SELECT "+runColumns+" FROM analysis_runs WHERE id = ?"), id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.toRun(), nil
}

// SaveRun writes every mutable column of run. The persisted status only
// moves forward: the stored status is advanced, never reverted.
func (db *DB) SaveRun(ctx context.Context, run *AnalysisRun) error {
	current, err := db.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	run.Status = current.Status.Advance(run.Status)
	run.UpdatedAt = now()

	return db.exec(ctx, "save run",
		`UPDATE analysis_runs SET brand_name = ?, status = ?, current_step = ?,
progress = ?, urls = ?, found_sitemap = ?, selected_categories = ?,
custom_categories = ?, prompts_generated = ?, updated_at = ?
WHERE id = ?`,
		run.BrandName, string(run.Status), run.CurrentStep, toJSON(run.Progress),
		toJSON(run.URLs), boolToInt(run.FoundSitemap), toJSON(run.SelectedCategories),
		toJSON(run.CustomCategories), run.PromptsGenerated, formatTime(run.UpdatedAt),
		run.ID,
	)
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	err := db.selectAll(ctx, "list runs", &rows,
		"SELECT "+runColumns+" FROM analysis_runs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	runs := make([]*AnalysisRun, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, r.toRun())
	}
	return runs, nil
}

// DeleteRun removes a run and, by cascade, everything derived from it.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	if _, err := db.GetRun(ctx, id); err != nil {
		return err
	}
	return db.exec(ctx, "delete run", "DELETE FROM analysis_runs WHERE id = ?", id)
}

// GetStats returns aggregate counts across all runs.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	queries := []struct {
		dest  *int
		query string
	}{
		{&stats.Runs, "SELECT COUNT(*) FROM analysis_runs"},
		{&stats.CompletedRuns, "SELECT COUNT(*) FROM analysis_runs WHERE status = 'completed'"},
		{&stats.Prompts, "SELECT COUNT(*) FROM prompts"},
		{&stats.Responses, "SELECT COUNT(*) FROM llm_responses"},
		{&stats.Citations, "SELECT COUNT(*) FROM citations"},
	}
	for _, q := range queries {
		err := db.Retry(ctx, "stats", func(ctx context.Context) error {
			return db.conn.GetContext(ctx, q.dest, q.query)
		})
		if err != nil {
			return nil, err
		}
	}
	return &stats, nil
}
