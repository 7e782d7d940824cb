package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

var ErrNotFound = errors.New("execution not found")

type Status string

const (
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// ExecutionRecord is one orchestrated signal and how it ended.
type ExecutionRecord struct {
	ID       string
	SignalID string
	UserID   string
	Exchange string
	Symbol   string
	Side     market.Side
	Type     market.OrderType
	Amount   float64
	Price    *float64
	Status   Status
	// Reason is the risk reason for rejections and the error text for
	// failures.
	Reason  string
	OrderID string
	Filled  float64
	Time    time.Time
}

type Journal interface {
	RecordExecution(ExecutionRecord) error
	Close() error
}

// Discard is a Journal that drops every record.
type Discard struct{}

func (Discard) RecordExecution(ExecutionRecord) error { return nil }
func (Discard) Close() error                          { return nil }
