package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the database schema.
const Schema = `
-- Cookie-backed upstream sessions
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    cookie_text TEXT NOT NULL,
    cookie_hash TEXT NOT NULL,
    provider TEXT NOT NULL,

    created_at TIMESTAMP NOT NULL,
    last_used_at TIMESTAMP,
    expires_at TIMESTAMP,
    last_health_check_at TIMESTAMP,

    usage_count INTEGER NOT NULL DEFAULT 0,
    success_count INTEGER NOT NULL DEFAULT 0,
    failure_count INTEGER NOT NULL DEFAULT 0,

    status TEXT NOT NULL DEFAULT 'healthy',
    metadata TEXT,

    UNIQUE (provider, cookie_hash)
);

CREATE INDEX IF NOT EXISTS idx_sessions_status
    ON sessions (provider, status, last_used_at);

-- One row per inbound request (terminal outcome, success or exhausted failure)
CREATE TABLE IF NOT EXISTS generations (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    session_id TEXT,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,

    -- Request snapshot
    prompt TEXT,
    temperature REAL,
    top_p REAL,
    max_output_tokens INTEGER,
    tool_choice TEXT,
    parallel_tool_calls BOOLEAN NOT NULL DEFAULT 1,

    -- Response snapshot
    response_text TEXT,
    response_raw TEXT,
    finish_reason TEXT,
    reasoning_content TEXT,
    response_id TEXT,
    previous_response_id TEXT,
    incomplete_details TEXT,
    annotations TEXT,

    -- Observability
    status INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,

    -- Token accounting (0 when unknown)
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    response_tokens INTEGER NOT NULL DEFAULT 0,
    reasoning_tokens INTEGER NOT NULL DEFAULT 0,
    audio_tokens INTEGER NOT NULL DEFAULT 0,
    image_tokens INTEGER NOT NULL DEFAULT 0,
    cached_tokens INTEGER NOT NULL DEFAULT 0,
    accepted_prediction_tokens INTEGER NOT NULL DEFAULT 0,
    rejected_prediction_tokens INTEGER NOT NULL DEFAULT 0,
    num_sources_used INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generations_request
    ON generations (request_id);
CREATE INDEX IF NOT EXISTS idx_generations_session
    ON generations (session_id, created_at);

-- Append-only accounting, one row per successful generation
CREATE TABLE IF NOT EXISTS token_usage (
    id TEXT PRIMARY KEY,
    generation_id TEXT NOT NULL,
    user_id TEXT,
    session_id TEXT,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,

    prompt_text_tokens INTEGER NOT NULL DEFAULT 0,
    prompt_audio_tokens INTEGER NOT NULL DEFAULT 0,
    prompt_image_tokens INTEGER NOT NULL DEFAULT 0,
    prompt_cached_tokens INTEGER NOT NULL DEFAULT 0,
    prompt_total_tokens INTEGER NOT NULL DEFAULT 0,

    completion_reasoning_tokens INTEGER NOT NULL DEFAULT 0,
    completion_audio_tokens INTEGER NOT NULL DEFAULT 0,
    completion_text_tokens INTEGER NOT NULL DEFAULT 0,
    completion_accepted_prediction_tokens INTEGER NOT NULL DEFAULT 0,
    completion_rejected_prediction_tokens INTEGER NOT NULL DEFAULT 0,
    completion_total_tokens INTEGER NOT NULL DEFAULT 0,

    total_tokens INTEGER NOT NULL DEFAULT 0,

    -- Costs in integer micro-USD
    prompt_cost_micro_usd INTEGER NOT NULL DEFAULT 0,
    completion_cost_micro_usd INTEGER NOT NULL DEFAULT 0,
    total_cost_micro_usd INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_token_usage_generation
    ON token_usage (generation_id);

-- Schema version bookkeeping
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
