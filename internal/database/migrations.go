package database

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
// DDL sticks to the subset sqlite and postgres both accept.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS analysis_runs (
    id TEXT PRIMARY KEY,
    website_url TEXT NOT NULL,
    brand_name TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    region TEXT,
    language TEXT NOT NULL DEFAULT 'en',
    status TEXT NOT NULL DEFAULT 'pending',
    current_step TEXT NOT NULL DEFAULT 'sitemap',
    progress TEXT,
    urls TEXT,
    found_sitemap INTEGER NOT NULL DEFAULT 0,
    selected_categories TEXT,
    custom_categories TEXT,
    prompts_generated INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    source_urls TEXT,
    created_at TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS prompts (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    question TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT 'en',
    country TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '',
    intent TEXT NOT NULL DEFAULT 'low',
    created_at TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS llm_responses (
    id TEXT PRIMARY KEY,
    prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
    output_text TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS citations (
    id TEXT PRIMARY KEY,
    response_id TEXT NOT NULL REFERENCES llm_responses(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    title TEXT,
    snippet TEXT
)`,
			`CREATE TABLE IF NOT EXISTS prompt_analyses (
    prompt_id TEXT PRIMARY KEY REFERENCES prompts(id) ON DELETE CASCADE,
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    exact_mentions INTEGER NOT NULL DEFAULT 0,
    fuzzy_mentions INTEGER NOT NULL DEFAULT 0,
    citation_count INTEGER NOT NULL DEFAULT 0,
    sentiment TEXT NOT NULL DEFAULT 'neutral',
    payload TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS category_metrics (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    visibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    citation_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    mention_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    competitor_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS time_series (
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    day TEXT NOT NULL,
    responses INTEGER NOT NULL DEFAULT 0,
    mentions INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, day)
)`,
			`CREATE TABLE IF NOT EXISTS summaries (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    total_mentions INTEGER NOT NULL DEFAULT 0,
    total_citations INTEGER NOT NULL DEFAULT 0,
    payload TEXT NOT NULL,
    created_at TEXT NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_categories_run ON categories(run_id)`,
			`CREATE INDEX IF NOT EXISTS idx_prompts_run ON prompts(run_id)`,
			`CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts(category_id)`,
			`CREATE INDEX IF NOT EXISTS idx_responses_prompt ON llm_responses(prompt_id)`,
			`CREATE INDEX IF NOT EXISTS idx_citations_response ON citations(response_id)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_run ON prompt_analyses(run_id)`,
			`CREATE INDEX IF NOT EXISTS idx_category_metrics_run ON category_metrics(run_id)`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_run ON summaries(run_id)`,
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
