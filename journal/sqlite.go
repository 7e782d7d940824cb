package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordExecution(r ExecutionRecord) error {
	var price sql.NullFloat64
	if r.Price != nil {
		price = sql.NullFloat64{Float64: *r.Price, Valid: true}
	}
	_, err := j.db.Exec(`
		INSERT INTO executions
		(id, signal_id, user_id, exchange, symbol, side, type, amount, price, status, reason, order_id, filled, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SignalID, r.UserID, r.Exchange, r.Symbol, string(r.Side), string(r.Type),
		r.Amount, price, string(r.Status), r.Reason, r.OrderID, r.Filled, r.Time.UTC(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
