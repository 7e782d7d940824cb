package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{
	"id", "signal_id", "user_id", "exchange", "symbol", "side", "type",
	"amount", "price", "status", "reason", "order_id", "filled", "time",
}

// CSV appends execution records to a file. It is safe for concurrent use.
type CSV struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

// NewCSV opens path for appending, writing the header when the file is
// new or empty.
func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return &CSV{w: w, f: f}, nil
}

func (j *CSV) RecordExecution(r ExecutionRecord) error {
	price := ""
	if r.Price != nil {
		price = fmtFloat(*r.Price)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.w.Write([]string{
		r.ID,
		r.SignalID,
		r.UserID,
		r.Exchange,
		r.Symbol,
		string(r.Side),
		string(r.Type),
		fmtFloat(r.Amount),
		price,
		string(r.Status),
		r.Reason,
		r.OrderID,
		fmtFloat(r.Filled),
		r.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		_ = j.f.Close()
		return err
	}
	return j.f.Close()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
