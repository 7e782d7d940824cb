package risk

import (
	"context"
	"testing"

	"github.com/rustyeddy/tradegate/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()
	k := Key{UserID: "u1", Day: "2024-01-02"}

	_, ok, err := m.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	st := DailyRiskState{TradesCount: 2, CumulativeLoss: 3.5, Positions: market.Positions{"SYM": 4}}
	require.NoError(t, m.Save(ctx, k, st))

	// callers own their copies
	st.Positions["SYM"] = 100

	got, ok, err := m.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 4.0, got.Positions["SYM"], 1e-9)

	got.Positions["SYM"] = 200
	again, _, err := m.Get(ctx, k)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, again.Positions["SYM"], 1e-9)
}

func TestMemoryStoreLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()

	for _, day := range []string{"2024-01-01", "2024-01-03", "2024-01-05"} {
		require.NoError(t, m.Save(ctx, Key{UserID: "u1", Day: day}, DailyRiskState{TradesCount: len(day)}))
	}
	require.NoError(t, m.Save(ctx, Key{UserID: "u2", Day: "2024-01-04"}, NewDailyRiskState()))

	_, ok, err := m.Latest(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := m.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2024-01-01", entries[0].Key.Day)
	assert.Equal(t, "2024-01-05", entries[2].Key.Day)

	require.NoError(t, m.Save(ctx, Key{UserID: "u1", Day: "2024-01-03"}, DailyRiskState{TradesCount: 9}))
	st, ok, err := m.Latest(ctx, "u1", "2024-01-05")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, st.TradesCount)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore()
	k := Key{UserID: "u1", Day: "2024-01-02"}

	require.NoError(t, m.Save(ctx, k, NewDailyRiskState()))
	require.NoError(t, m.Reset(ctx))
	_, ok, err := m.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Close())
	_, _, err = m.Get(ctx, k)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, m.Save(ctx, k, NewDailyRiskState()), ErrStoreClosed)
}
