package store

// Schema creates the risk_state table used by the SQLite backend. The GORM
// backend migrates an equivalent table from stateRow.
const Schema = `
CREATE TABLE IF NOT EXISTS risk_state (
	user_id TEXT NOT NULL,
	day TEXT NOT NULL,
	trades_count INTEGER NOT NULL DEFAULT 0,
	cumulative_loss REAL NOT NULL DEFAULT 0,
	positions TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, day)
);
`
