package relay

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *AmountCodec {
	return NewAmountCodec(1_000_000_000)
}

func TestToMinorUnitsRoundTrip(t *testing.T) {
	c := newTestCodec()

	for _, tc := range []struct {
		amount   string
		decimals int
	}{
		{"1", EthereumDecimals},
		{"0.000000000000000001", EthereumDecimals},
		{"1.5", NearDecimals},
		{"123456.789", NearDecimals},
		{"999999999", EthereumDecimals},
	} {
		d, err := decimal.NewFromString(tc.amount)
		require.NoError(t, err)

		minor, err := c.ToMinorUnits(d, tc.decimals)
		require.NoError(t, err, "amount %s", tc.amount)

		back, err := c.FromMinorUnits(minor, tc.decimals)
		require.NoError(t, err)
		assert.True(t, back.Equal(d), "round trip of %s: got %s", tc.amount, back)
	}
}

func TestToMinorUnitsRejects(t *testing.T) {
	c := newTestCodec()

	neg := decimal.NewFromInt(-1)
	_, err := c.ToMinorUnits(neg, EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	overCap := decimal.NewFromInt(1_000_000_001)
	_, err = c.ToMinorUnits(overCap, EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// more fractional digits than the chain can represent
	tooPrecise, err := decimal.NewFromString("0.0000000000000000001")
	require.NoError(t, err)
	_, err = c.ToMinorUnits(tooPrecise, EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestResolveTaggedAmounts(t *testing.T) {
	c := newTestCodec()

	minor, err := c.Resolve(Amount{Value: decimal.NewFromInt(1500), Unit: UnitMinor}, EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), minor.Int64())

	whole, err := c.Resolve(Amount{Value: decimal.NewFromFloat(1.5), Unit: UnitWhole}, EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", whole.String())

	_, err = c.Resolve(Amount{Value: decimal.NewFromFloat(1.5), Unit: UnitMinor}, EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount, "fractional minor units are invalid")

	_, err = c.Resolve(Amount{Value: decimal.NewFromInt(1), Unit: "wei"}, EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseAmountHeuristic(t *testing.T) {
	c := newTestCodec()

	// 18+ digit integer strings are already minor units
	v, err := c.ParseAmount("1000000000000000000", EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	// short integer strings are whole units
	v, err = c.ParseAmount("5", EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, "5000000000000000000", v.String())

	// anything with a decimal point is whole units regardless of length
	v, err = c.ParseAmount("1.000000000000000000", EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	_, err = c.ParseAmount("", EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.ParseAmount("-5", EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.ParseAmount("not-a-number", EthereumDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRescaleBetweenChains(t *testing.T) {
	c := newTestCodec()

	// 18 -> 24 multiplies by 10^6
	up, err := c.Rescale(big.NewInt(1_500_000), EthereumDecimals, NearDecimals)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000", up.String())

	// 24 -> 18 floors toward zero
	down, err := c.Rescale(big.NewInt(1_999_999), NearDecimals, EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, int64(1), down.Int64())

	same, err := c.Rescale(big.NewInt(42), EthereumDecimals, EthereumDecimals)
	require.NoError(t, err)
	assert.Equal(t, int64(42), same.Int64())

	_, err = c.Rescale(nil, EthereumDecimals, NearDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.Rescale(big.NewInt(-1), EthereumDecimals, NearDecimals)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
