package relay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	store, err := OpenStore(filepath.Join(t.TempDir(), "relay_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLedgerAppendOnly(t *testing.T) {
	store := newTestStore(t)

	id := MessageID("create_escrow", "order-1")
	assert.Equal(t, "create_escrow_order-1", id)

	found, err := store.Contains(id)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Insert(id))
	found, err = store.Contains(id)
	require.NoError(t, err)
	assert.True(t, found)

	// double insert is a no-op, not an error
	require.NoError(t, store.Insert(id))
	found, err = store.Contains(id)
	require.NoError(t, err)
	assert.True(t, found)

	// different action on the same order is a distinct message
	found, err = store.Contains(MessageID("withdraw", "order-1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckpoints(t *testing.T) {
	store := newTestStore(t)

	height, err := store.GetCheckpoint(ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(0), height, "unseen chain starts at 0")

	require.NoError(t, store.SetCheckpoint(ChainEthereum, 100))
	require.NoError(t, store.SetCheckpoint(ChainNear, 555))
	require.NoError(t, store.SetCheckpoint(ChainEthereum, 120))

	height, err = store.GetCheckpoint(ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, int64(120), height)

	height, err = store.GetCheckpoint(ChainNear)
	require.NoError(t, err)
	assert.Equal(t, int64(555), height)
}

func TestCorruptDbResetsToEmpty(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	path := filepath.Join(t.TempDir(), "corrupt.db")

	// sqlite files start with a fixed 16-byte header; this is not it
	require.NoError(t, os.WriteFile(path, []byte("definitely not a sqlite database"), 0o644))

	store, err := OpenStore(path, &logger)
	require.NoError(t, err, "corrupt db must reset, not fail startup")
	defer store.Close()

	found, err := store.Contains("anything")
	require.NoError(t, err)
	assert.False(t, found, "reset db starts empty")
}

func TestOrderStatusUpsert(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOrderStatus("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.UpsertOrderStatus(DbOrderStatus{
		OrderID: "order-1",
		Status:  StatusCreated,
	}))
	require.NoError(t, store.UpsertOrderStatus(DbOrderStatus{
		OrderID:         "order-1",
		Status:          StatusPartiallyFilled,
		FilledAmount:    "300",
		RemainingAmount: "700",
		FillCount:       1,
	}))

	got, err := store.GetOrderStatus("order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyFilled, got.Status)
	assert.Equal(t, "300", got.FilledAmount)
	assert.Equal(t, "700", got.RemainingAmount)
	assert.Equal(t, int64(1), got.FillCount)
}

func TestListOrdersByStatus(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertOrderStatus(DbOrderStatus{OrderID: "a", Status: StatusFullyFilled}))
	require.NoError(t, store.UpsertOrderStatus(DbOrderStatus{OrderID: "b", Status: StatusError, LastError: "tx rejected"}))
	require.NoError(t, store.UpsertOrderStatus(DbOrderStatus{OrderID: "c", Status: StatusFullyFilled}))

	all, err := store.ListOrdersByStatus("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// error orders surface distinctly from settled ones
	failed, err := store.ListOrdersByStatus(StatusError)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].OrderID)
	assert.Equal(t, "tx rejected", failed[0].LastError)

	stats, err := store.GetSettlementStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, int64(2), stats.ByStatus[string(StatusFullyFilled)])
	assert.Equal(t, int64(1), stats.ByStatus[string(StatusError)])
}

func TestBalancesQueries(t *testing.T) {
	store := newTestStore(t)

	base := time.Unix(1_700_000_000, 0)
	for i, b := range []DbBalance{
		{Address: "relay.near", Balance: "100", Exponent: 24, Token: "NEAR", Network: NEAR_NETWORK},
		{Address: "relay.near", Balance: "90", Exponent: 24, Token: "NEAR", Network: NEAR_NETWORK},
		{Address: "0xabc", Balance: "5", Exponent: 18, Token: "ETH", Network: ETHEREUM_NETWORK},
	} {
		b.Timestamp = base.Add(time.Duration(i) * time.Hour).Unix()
		require.NoError(t, store.InsertBalance(b))
	}

	latest, err := store.GetLatestBalances(NEAR_NETWORK)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "90", latest[0].Balance, "latest snapshot wins")

	inRange, err := store.GetBalancesInTimeRange(NEAR_NETWORK, base, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, "100", inRange[0].Balance)
}
