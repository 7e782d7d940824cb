package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/risk"
)

// stateRow is the GORM model for one (user, day) entry.
type stateRow struct {
	UserID         string           `gorm:"primaryKey;size:128"`
	Day            string           `gorm:"primaryKey;size:10"`
	TradesCount    int              `gorm:"not null;default:0"`
	CumulativeLoss float64          `gorm:"not null;default:0"`
	Positions      market.Positions `gorm:"serializer:json;type:text"`
	UpdatedAt      time.Time
}

func (stateRow) TableName() string {
	return "risk_state"
}

func (r stateRow) state() risk.DailyRiskState {
	st := risk.DailyRiskState{
		TradesCount:    r.TradesCount,
		CumulativeLoss: r.CumulativeLoss,
		Positions:      r.Positions,
	}
	if st.Positions == nil {
		st.Positions = market.Positions{}
	}
	return st
}

// Gorm is a risk.Store on any GORM dialect. Production runs it on
// postgres; tests run it on sqlite.
type Gorm struct {
	db *gorm.DB
}

var _ risk.Store = (*Gorm)(nil)

// NewGorm migrates the risk_state table on db and returns the store.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&stateRow{}); err != nil {
		return nil, fmt.Errorf("migrate risk_state: %w", err)
	}
	return &Gorm{db: db}, nil
}

// OpenPostgres connects to dsn with GORM logging routed through log.
func OpenPostgres(dsn string, log *slog.Logger) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("cannot open postgres store: %w", err)
	}
	s, err := NewGorm(db)
	if err != nil {
		_ = closeDB(db)
		return nil, err
	}
	log.Info("connected to risk store", "backend", "postgres")
	return s, nil
}

// GormConfig returns a gorm.Config whose logger writes to log.
func GormConfig(log *slog.Logger) *gorm.Config {
	if log == nil {
		log = slog.Default()
	}
	return &gorm.Config{
		Logger: slogGorm.New(slogGorm.WithHandler(log.Handler())),
	}
}

func (s *Gorm) Get(ctx context.Context, k risk.Key) (risk.DailyRiskState, bool, error) {
	var row stateRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", k.UserID, k.Day).
		Take(&row).Error
	return rowResult(row, err)
}

func (s *Gorm) Latest(ctx context.Context, userID, day string) (risk.DailyRiskState, bool, error) {
	var row stateRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day < ?", userID, day).
		Order("day DESC").
		Take(&row).Error
	return rowResult(row, err)
}

func (s *Gorm) Save(ctx context.Context, k risk.Key, st risk.DailyRiskState) error {
	row := stateRow{
		UserID:         k.UserID,
		Day:            k.Day,
		TradesCount:    st.TradesCount,
		CumulativeLoss: st.CumulativeLoss,
		Positions:      st.Positions.Clone(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *Gorm) List(ctx context.Context, userID string) ([]risk.Entry, error) {
	var rows []stateRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]risk.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, risk.Entry{Key: risk.Key{UserID: r.UserID, Day: r.Day}, State: r.state()})
	}
	return out, nil
}

func (s *Gorm) DeleteUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&stateRow{}).Error
}

func (s *Gorm) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&stateRow{}).Error
}

func (s *Gorm) Close() error {
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowResult(row stateRow, err error) (risk.DailyRiskState, bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return risk.DailyRiskState{}, false, nil
	}
	if err != nil {
		return risk.DailyRiskState{}, false, err
	}
	return row.state(), true, nil
}
