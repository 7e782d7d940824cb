package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

const selectExecutions = `
	SELECT id, signal_id, user_id, exchange, symbol, side, type, amount, price, status, reason, order_id, filled, time
	FROM executions`

// Filter narrows ListExecutions. Zero fields match everything; the time
// range is [Since, Until).
type Filter struct {
	UserID string
	Status Status
	Since  time.Time
	Until  time.Time
	Limit  int
}

// GetExecution returns a single execution record by ID.
func (j *SQLite) GetExecution(id string) (ExecutionRecord, error) {
	row := j.db.QueryRow(selectExecutions+` WHERE id = ?`, id)

	rec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExecutionRecord{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return ExecutionRecord{}, err
	}
	return rec, nil
}

// ListExecutions returns matching records, oldest first.
func (j *SQLite) ListExecutions(f Filter) ([]ExecutionRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		where = append(where, "time >= ?")
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		where = append(where, "time < ?")
		args = append(args, f.Until.UTC())
	}

	q := selectExecutions
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY time ASC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (ExecutionRecord, error) {
	var (
		rec               ExecutionRecord
		side, typ, status string
		price             sql.NullFloat64
	)
	err := s.Scan(
		&rec.ID,
		&rec.SignalID,
		&rec.UserID,
		&rec.Exchange,
		&rec.Symbol,
		&side,
		&typ,
		&rec.Amount,
		&price,
		&status,
		&rec.Reason,
		&rec.OrderID,
		&rec.Filled,
		&rec.Time,
	)
	if err != nil {
		return ExecutionRecord{}, err
	}
	rec.Side = market.Side(side)
	rec.Type = market.OrderType(typ)
	rec.Status = Status(status)
	if price.Valid {
		p := price.Float64
		rec.Price = &p
	}
	return rec, nil
}
