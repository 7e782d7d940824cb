package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradegate/config"
	"github.com/rustyeddy/tradegate/market"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executions.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, csvHeader, rows[0])
}

func TestCSVRecordExecution(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executions.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.RecordExecution(ExecutionRecord{
		ID:       "E1",
		SignalID: "S1",
		UserID:   "alice",
		Exchange: "binance",
		Symbol:   "BTC/USDT",
		Side:     market.Buy,
		Type:     market.Limit,
		Amount:   0.5,
		Price:    price(100.25),
		Status:   StatusExecuted,
		OrderID:  "paper-1",
		Time:     at,
	}))
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"E1", "S1", "alice", "binance", "BTC/USDT", "buy", "limit",
		"0.5", "100.25", "executed", "", "paper-1", "0", "2024-01-02T03:04:05Z",
	}, rows[1])
}

func TestCSVAppendsAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executions.csv")
	for i := 0; i < 2; i++ {
		j, err := NewCSV(path)
		require.NoError(t, err)
		require.NoError(t, j.RecordExecution(ExecutionRecord{ID: "E", Status: StatusRejected, Time: time.Now()}))
		require.NoError(t, j.Close())
	}

	rows := readCSV(t, path)
	assert.Len(t, rows, 3, "one header, two records")
}

func TestCSVConcurrentWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executions.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.RecordExecution(ExecutionRecord{ID: "E", Reason: "a,b \"quoted\"", Time: time.Now()}))
		}()
	}
	wg.Wait()
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	assert.Len(t, rows, 51)
	for _, r := range rows[1:] {
		assert.Equal(t, "a,b \"quoted\"", r[10])
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	j, err := Open(config.JournalConfig{Type: "none"})
	require.NoError(t, err)
	assert.IsType(t, Discard{}, j)

	j, err = Open(config.JournalConfig{Type: "csv", File: filepath.Join(dir, "e.csv")})
	require.NoError(t, err)
	assert.NoError(t, j.Close())

	j, err = Open(config.JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "e.db")})
	require.NoError(t, err)
	assert.NoError(t, j.Close())

	_, err = Open(config.JournalConfig{Type: "kafka"})
	assert.Error(t, err)
}
