package journal

const Schema = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	signal_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	amount REAL NOT NULL,
	price REAL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	order_id TEXT NOT NULL,
	filled REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_user_time ON executions(user_id, time);
`
