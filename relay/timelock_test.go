package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTimelockConfig() TimelockConfig {
	return TimelockConfig{
		MinOffsetSeconds:    900,
		MaxOffsetSeconds:    86400,
		SafetyMarginSeconds: 600,
	}
}

func TestDeriveDestinationOffsetHalvesWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := testTimelockConfig()

	offset, err := DeriveDestinationOffset(now.Add(4*time.Hour), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, offset)
}

func TestDeriveDestinationOffsetClamps(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := testTimelockConfig()

	// huge source window clamps to max
	offset, err := DeriveDestinationOffset(now.Add(30*24*time.Hour), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, offset)

	// tight window: half would be below min, clamps up but stays inside the
	// margin
	offset, err = DeriveDestinationOffset(now.Add(1700*time.Second), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, 900*time.Second, offset)
	assert.LessOrEqual(t, offset, 1700*time.Second-600*time.Second)
}

func TestDeriveDestinationOffsetExpiresBeforeSource(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := testTimelockConfig()

	for _, remaining := range []time.Duration{
		26 * time.Minute,
		1 * time.Hour,
		12 * time.Hour,
		3 * 24 * time.Hour,
	} {
		offset, err := DeriveDestinationOffset(now.Add(remaining), now, cfg)
		require.NoError(t, err, "remaining=%s", remaining)
		assert.Less(t, offset, remaining, "destination must expire before the source")
		assert.GreaterOrEqual(t, offset, 900*time.Second)
	}
}

func TestDeriveDestinationOffsetRejectsTightWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := testTimelockConfig()

	// min + margin = 25 minutes: anything at or below that is unsafe
	_, err := DeriveDestinationOffset(now.Add(25*time.Minute), now, cfg)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DeriveDestinationOffset(now.Add(-time.Hour), now, cfg)
	assert.ErrorIs(t, err, ErrValidation, "already-expired source escrow")
}

func TestNanosToTime(t *testing.T) {
	ts := NanosToTime(1_700_000_000_000_000_000)
	assert.Equal(t, int64(1_700_000_000), ts.Unix())
}
