package sqlite

const schema = `
-- Analysis snapshots: one row per observation cycle
CREATE TABLE IF NOT EXISTS analysis_snapshots (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    snapshot_type TEXT NOT NULL DEFAULT 'full',
    trigger_source TEXT,
    status TEXT NOT NULL DEFAULT 'running' CHECK(status IN ('running', 'completed', 'failed')),
    overall_score REAL NOT NULL DEFAULT 0,
    health_trend TEXT,
    files_analyzed INTEGER NOT NULL DEFAULT 0,
    concern_count INTEGER NOT NULL DEFAULT 0,
    prediction_count INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at DATETIME NOT NULL,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_snapshots_project ON analysis_snapshots(project_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_status ON analysis_snapshots(status);
CREATE INDEX IF NOT EXISTS idx_snapshots_started ON analysis_snapshots(started_at);

-- Debt predictions: long-lived prediction rows with a lifecycle
CREATE TABLE IF NOT EXISTS debt_predictions (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    file TEXT NOT NULL,
    type TEXT NOT NULL CHECK(type IN ('emerging', 'accelerating', 'imminent', 'exists')),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
    urgency REAL NOT NULL CHECK(urgency >= 0 AND urgency <= 1),
    severity TEXT NOT NULL CHECK(severity IN ('low', 'medium', 'high', 'critical')),
    suggested_action TEXT NOT NULL DEFAULT '',
    micro_refactoring TEXT NOT NULL DEFAULT '',
    effort TEXT NOT NULL DEFAULT 'small',
    signals TEXT NOT NULL DEFAULT '{}',
    flags TEXT NOT NULL DEFAULT '[]',
    pattern_id TEXT,
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'addressed', 'dismissed')),
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_project ON debt_predictions(project_id);
CREATE INDEX IF NOT EXISTS idx_predictions_status ON debt_predictions(status);
CREATE INDEX IF NOT EXISTS idx_predictions_file ON debt_predictions(file);

-- Learned patterns: reusable detection rules mined from outcomes.
-- Rows are deprecated or suspended, never deleted.
CREATE TABLE IF NOT EXISTS learned_patterns (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    name TEXT NOT NULL,
    pattern_type TEXT NOT NULL DEFAULT 'success',
    category TEXT NOT NULL,
    detection_rules TEXT NOT NULL DEFAULT '{}',
    file_patterns TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'learning' CHECK(status IN ('learning', 'active', 'suspended', 'deprecated')),
    precision_score REAL NOT NULL DEFAULT 0,
    confidence_score REAL NOT NULL DEFAULT 0,
    sample_count INTEGER NOT NULL DEFAULT 0,
    has_auto_fix INTEGER NOT NULL DEFAULT 0,
    auto_fix_template TEXT NOT NULL DEFAULT '',
    auto_fix_confidence REAL NOT NULL DEFAULT 0,
    auto_fix_risk TEXT NOT NULL DEFAULT '',
    true_positives INTEGER NOT NULL DEFAULT 0,
    false_positives INTEGER NOT NULL DEFAULT 0,
    user_overrides INTEGER NOT NULL DEFAULT 0,
    auto_fixes_attempted INTEGER NOT NULL DEFAULT 0,
    auto_fix_successes INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    UNIQUE(project_id, category, name)
);

CREATE INDEX IF NOT EXISTS idx_patterns_project ON learned_patterns(project_id);
CREATE INDEX IF NOT EXISTS idx_patterns_status ON learned_patterns(status);

-- Auto-fix items: the approval queue
CREATE TABLE IF NOT EXISTS auto_fix_items (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    prediction_id TEXT,
    pattern_id TEXT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    target_files TEXT NOT NULL DEFAULT '[]',
    generated_requirement TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 2,
    urgency_score REAL NOT NULL DEFAULT 0,
    confidence_score REAL NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL CHECK(risk_level IN ('low', 'medium', 'high')),
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'rejected', 'executing', 'completed', 'failed', 'expired')),
    created_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_autofix_project ON auto_fix_items(project_id);
CREATE INDEX IF NOT EXISTS idx_autofix_status ON auto_fix_items(status);
CREATE INDEX IF NOT EXISTS idx_autofix_expires ON auto_fix_items(expires_at);

-- Execution outcomes: append at execution start, update once on completion
CREATE TABLE IF NOT EXISTS execution_outcomes (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    execution_id TEXT NOT NULL UNIQUE,
    prediction_id TEXT,
    auto_fix_id TEXT,
    execution_type TEXT NOT NULL,
    requirement_content TEXT NOT NULL DEFAULT '',
    target_files TEXT NOT NULL DEFAULT '[]',
    success INTEGER,
    files_changed TEXT NOT NULL DEFAULT '[]',
    lines_added INTEGER NOT NULL DEFAULT 0,
    lines_removed INTEGER NOT NULL DEFAULT 0,
    tokens_used INTEGER NOT NULL DEFAULT 0,
    pre_health_score REAL,
    post_health_score REAL,
    health_improvement REAL,
    outcome_rating TEXT NOT NULL DEFAULT '',
    regression_detected INTEGER NOT NULL DEFAULT 0,
    new_issues INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_outcomes_project ON execution_outcomes(project_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_execution ON execution_outcomes(execution_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_completed ON execution_outcomes(completed_at);

-- Config key/value table
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
