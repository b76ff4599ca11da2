package database

import (
	"context"
	"database/sql"
)

type promptRow struct {
	ID         string `db:"id"`
	RunID      string `db:"run_id"`
	CategoryID string `db:"category_id"`
	Question   string `db:"question"`
	Language   string `db:"language"`
	Country    string `db:"country"`
	Region     string `db:"region"`
	Intent     string `db:"intent"`
	CreatedAt  string `db:"created_at"`
}

func (r promptRow) toPrompt() Prompt {
	return Prompt{
		ID:         r.ID,
		RunID:      r.RunID,
		CategoryID: r.CategoryID,
		Question:   r.Question,
		Language:   r.Language,
		Country:    r.Country,
		Region:     r.Region,
		Intent:     r.Intent,
		CreatedAt:  parseTime(r.CreatedAt),
	}
}

type responseRow struct {
	ID         string `db:"id"`
	PromptID   string `db:"prompt_id"`
	OutputText string `db:"output_text"`
	Model      string `db:"model"`
	CreatedAt  string `db:"created_at"`
}

type citationRow struct {
	ID         string         `db:"id"`
	ResponseID string         `db:"response_id"`
	URL        string         `db:"url"`
	Title      sql.NullString `db:"title"`
	Snippet    sql.NullString `db:"snippet"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveExecutions persists executed prompts with their responses and
// citations. Callers pass only prompts that produced a non-empty answer.
// Each prompt commits in the same transaction as its response and
// citations, so a failed chunk never leaves a prompt without an answer.
func (db *DB) SaveExecutions(ctx context.Context, executed []ExecutedPrompt) error {
	groups := make([][]Statement, 0, len(executed))
	for _, e := range executed {
		var stmts []Statement
		p := e.Prompt
		created := p.CreatedAt
		if created.IsZero() {
			created = now()
		}
		stmts = append(stmts, Stmt(`INSERT INTO prompts (id, run_id, category_id, question, language, country, region, intent, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    question = excluded.question,
    intent = excluded.intent`,
			p.ID, p.RunID, p.CategoryID, p.Question, p.Language, p.Country, p.Region, p.Intent, formatTime(created),
		))

		r := e.Response
		respCreated := r.CreatedAt
		if respCreated.IsZero() {
			respCreated = now()
		}
		stmts = append(stmts, Stmt(`INSERT INTO llm_responses (id, prompt_id, output_text, model, created_at)
VALUES (?, ?, ?, ?, ?)`,
			r.ID, p.ID, r.OutputText, r.Model, formatTime(respCreated),
		))

		for _, c := range e.Citations {
			stmts = append(stmts, Stmt(`INSERT INTO citations (id, response_id, url, title, snippet)
VALUES (?, ?, ?, ?, ?)`,
				c.ID, r.ID, c.URL, nullable(c.Title), nullable(c.Snippet),
			))
		}
		groups = append(groups, stmts)
	}
	return db.BatchGroupsInChunks(ctx, groups, 0, "save executions")
}

// GetPrompts returns the persisted prompts of a run.
func (db *DB) GetPrompts(ctx context.Context, runID string) ([]Prompt, error) {
	var rows []promptRow
	err := db.selectAll(ctx, "get prompts", &rows,
		`SELECT id, run_id, category_id, question, language, country, region, intent, created_at
FROM prompts WHERE run_id = ? ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, err
	}
	prompts := make([]Prompt, 0, len(rows))
	for _, r := range rows {
		prompts = append(prompts, r.toPrompt())
	}
	return prompts, nil
}

// LoadExecutions assembles every persisted prompt of a run with its most
// recent response and that response's citations. Prompts without a
// response are skipped.
func (db *DB) LoadExecutions(ctx context.Context, runID string) ([]ExecutedPrompt, error) {
	prompts, err := db.GetPrompts(ctx, runID)
	if err != nil {
		return nil, err
	}

	var responses []responseRow
	err = db.selectAll(ctx, "load responses", &responses,
		`SELECT r.id, r.prompt_id, r.output_text, r.model, r.created_at
FROM llm_responses r JOIN prompts p ON p.id = r.prompt_id
WHERE p.run_id = ? ORDER BY r.created_at, r.id`, runID)
	if err != nil {
		return nil, err
	}

	var citations []citationRow
	err = db.selectAll(ctx, "load citations", &citations,
		`SELECT c.id, c.response_id, c.url, c.title, c.snippet
FROM citations c
JOIN llm_responses r ON r.id = c.response_id
JOIN prompts p ON p.id = r.prompt_id
WHERE p.run_id = ? ORDER BY c.id`, runID)
	if err != nil {
		return nil, err
	}

	// later rows overwrite earlier ones, leaving the newest response per prompt
	latest := make(map[string]LLMResponse, len(responses))
	for _, r := range responses {
		latest[r.PromptID] = LLMResponse{
			ID:         r.ID,
			PromptID:   r.PromptID,
			OutputText: r.OutputText,
			Model:      r.Model,
			CreatedAt:  parseTime(r.CreatedAt),
		}
	}

	byResponse := make(map[string][]Citation)
	for _, c := range citations {
		byResponse[c.ResponseID] = append(byResponse[c.ResponseID], Citation{
			ID:         c.ID,
			ResponseID: c.ResponseID,
			URL:        c.URL,
			Title:      c.Title.String,
			Snippet:    c.Snippet.String,
		})
	}

	var executed []ExecutedPrompt
	for _, p := range prompts {
		resp, ok := latest[p.ID]
		if !ok {
			continue
		}
		executed = append(executed, ExecutedPrompt{
			Prompt:    p,
			Response:  resp,
			Citations: byResponse[resp.ID],
		})
	}
	return executed, nil
}
