package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/risk"
)

// SQLite is a risk.Store backed by a single SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ risk.Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create risk_state schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Get(ctx context.Context, k risk.Key) (risk.DailyRiskState, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trades_count, cumulative_loss, positions
		FROM risk_state
		WHERE user_id = ? AND day = ?`, k.UserID, k.Day)
	return scanState(row)
}

func (s *SQLite) Latest(ctx context.Context, userID, day string) (risk.DailyRiskState, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT trades_count, cumulative_loss, positions
		FROM risk_state
		WHERE user_id = ? AND day < ?
		ORDER BY day DESC
		LIMIT 1`, userID, day)
	return scanState(row)
}

func (s *SQLite) Save(ctx context.Context, k risk.Key, st risk.DailyRiskState) error {
	pos, err := encodePositions(st.Positions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_state
		(user_id, day, trades_count, cumulative_loss, positions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			trades_count = excluded.trades_count,
			cumulative_loss = excluded.cumulative_loss,
			positions = excluded.positions,
			updated_at = excluded.updated_at`,
		k.UserID, k.Day, st.TradesCount, st.CumulativeLoss, pos, s.now().UTC(),
	)
	return err
}

func (s *SQLite) List(ctx context.Context, userID string) ([]risk.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, trades_count, cumulative_loss, positions
		FROM risk_state
		WHERE user_id = ?
		ORDER BY day ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.Entry
	for rows.Next() {
		var (
			day string
			st  risk.DailyRiskState
			pos string
		)
		if err := rows.Scan(&day, &st.TradesCount, &st.CumulativeLoss, &pos); err != nil {
			return nil, err
		}
		if st.Positions, err = decodePositions(pos); err != nil {
			return nil, err
		}
		out = append(out, risk.Entry{Key: risk.Key{UserID: userID, Day: day}, State: st})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM risk_state WHERE user_id = ?`, userID)
	return err
}

func (s *SQLite) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM risk_state`)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanState(row *sql.Row) (risk.DailyRiskState, bool, error) {
	var (
		st  risk.DailyRiskState
		pos string
	)
	err := row.Scan(&st.TradesCount, &st.CumulativeLoss, &pos)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.DailyRiskState{}, false, nil
	}
	if err != nil {
		return risk.DailyRiskState{}, false, err
	}
	if st.Positions, err = decodePositions(pos); err != nil {
		return risk.DailyRiskState{}, false, err
	}
	return st, true, nil
}

func encodePositions(p market.Positions) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode positions: %w", err)
	}
	return string(b), nil
}

func decodePositions(s string) (market.Positions, error) {
	p := market.Positions{}
	if s == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return p, nil
}
