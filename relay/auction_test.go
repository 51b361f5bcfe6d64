package relay

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPricer(cfg AuctionConfig) *Pricer {
	if cfg.DurationSeconds == 0 {
		cfg.DurationSeconds = 300
	}
	return NewPricer(cfg)
}

func testAuctionParams(amount int64) AuctionParams {
	return AuctionParams{
		FromChain:  ChainEthereum,
		ToChain:    ChainNear,
		FromAmount: big.NewInt(amount),
		BaseRate:   decimal.NewFromInt(1),
		StartTime:  time.Unix(1_700_000_000, 0),
		OrderID:    "order-1",
	}
}

func TestCalculateRateSumExact(t *testing.T) {
	p := newTestPricer(AuctionConfig{InitialBumpBps: 500, FeeBps: 30})
	params := testAuctionParams(1_000_000_000_000_000_000)

	for _, elapsed := range []int64{0, 1, 7, 150, 299, 300, 10_000} {
		now := params.StartTime.Add(time.Duration(elapsed) * time.Second)
		result, err := p.CalculateRate(params, now)
		require.NoError(t, err)

		sum := new(big.Int).Add(result.OutputAmount, result.FeeAmount)
		assert.Equal(t, 0, sum.Cmp(result.TotalCost), "output+fee must equal total at elapsed=%d", elapsed)
	}
}

func TestCalculateRateDecaysToBase(t *testing.T) {
	p := newTestPricer(AuctionConfig{InitialBumpBps: 500})
	params := testAuctionParams(10_000)

	// at start the rate carries the full bump
	atStart, err := p.CalculateRate(params, params.StartTime)
	require.NoError(t, err)
	assert.Equal(t, "1.05", atStart.CurrentRate.String())
	assert.Equal(t, int64(10_500), atStart.OutputAmount.Int64())

	// at and past the duration the rate is exactly the base
	atEnd, err := p.CalculateRate(params, params.StartTime.Add(300*time.Second))
	require.NoError(t, err)
	assert.True(t, atEnd.CurrentRate.Equal(params.BaseRate))
	assert.Equal(t, int64(10_000), atEnd.OutputAmount.Int64())
	assert.Equal(t, time.Duration(0), atEnd.TimeRemaining)

	late, err := p.CalculateRate(params, params.StartTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, late.CurrentRate.Equal(params.BaseRate))
}

func TestCalculateRateMonotonicDecay(t *testing.T) {
	p := newTestPricer(AuctionConfig{
		InitialBumpBps: 400,
		Points: []RatePoint{
			{DelaySeconds: 60, Coefficient: 300},
			{DelaySeconds: 180, Coefficient: 100},
		},
	})
	params := testAuctionParams(1_000_000)

	prev := decimal.NewFromInt(1 << 30)
	for elapsed := int64(0); elapsed <= 300; elapsed += 10 {
		result, err := p.CalculateRate(params, params.StartTime.Add(time.Duration(elapsed)*time.Second))
		require.NoError(t, err)
		assert.True(t, result.CurrentRate.LessThanOrEqual(prev),
			"rate must not increase, elapsed=%d rate=%s prev=%s", elapsed, result.CurrentRate, prev)
		prev = result.CurrentRate
	}
	assert.True(t, prev.Equal(params.BaseRate))
}

func TestCalculateRatePiecewiseKnots(t *testing.T) {
	p := newTestPricer(AuctionConfig{
		InitialBumpBps: 400,
		Points: []RatePoint{
			{DelaySeconds: 100, Coefficient: 200},
		},
	})
	params := testAuctionParams(10_000)

	// exactly on the configured knot
	atKnot, err := p.CalculateRate(params, params.StartTime.Add(100*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "1.02", atKnot.CurrentRate.String())

	// halfway between start and the knot: 400 -> 200 interpolates to 300
	mid, err := p.CalculateRate(params, params.StartTime.Add(50*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "1.03", mid.CurrentRate.String())
}

func TestCalculateRateSmallAmountFloors(t *testing.T) {
	// 1 minor unit at rate 1.05: output floors to 1, no free value minted
	p := newTestPricer(AuctionConfig{InitialBumpBps: 500, FeeBps: 30})
	params := testAuctionParams(1)

	result, err := p.CalculateRate(params, params.StartTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.OutputAmount.Int64())
	assert.Equal(t, int64(0), result.FeeAmount.Int64())
	assert.Equal(t, int64(1), result.TotalCost.Int64())
}

func TestCalculateRateValidation(t *testing.T) {
	params := testAuctionParams(1000)

	sameChain := params
	sameChain.ToChain = ChainEthereum
	_, err := newTestPricer(AuctionConfig{}).CalculateRate(sameChain, params.StartTime)
	assert.ErrorIs(t, err, ErrInvalidAuctionParams)

	zeroAmount := params
	zeroAmount.FromAmount = big.NewInt(0)
	_, err = newTestPricer(AuctionConfig{}).CalculateRate(zeroAmount, params.StartTime)
	assert.ErrorIs(t, err, ErrInvalidAuctionParams)

	negRate := params
	negRate.BaseRate = decimal.NewFromInt(-1)
	_, err = newTestPricer(AuctionConfig{}).CalculateRate(negRate, params.StartTime)
	assert.ErrorIs(t, err, ErrInvalidAuctionParams)

	unsorted := newTestPricer(AuctionConfig{
		InitialBumpBps: 500,
		Points: []RatePoint{
			{DelaySeconds: 200, Coefficient: 300},
			{DelaySeconds: 100, Coefficient: 200},
		},
	})
	_, err = unsorted.CalculateRate(params, params.StartTime)
	assert.ErrorIs(t, err, ErrInvalidAuctionParams)

	increasing := newTestPricer(AuctionConfig{
		InitialBumpBps: 100,
		Points: []RatePoint{
			{DelaySeconds: 100, Coefficient: 50},
			{DelaySeconds: 200, Coefficient: 80},
		},
	})
	_, err = increasing.CalculateRate(params, params.StartTime)
	assert.ErrorIs(t, err, ErrInvalidAuctionParams)
}

func TestCalculateRateBeforeStart(t *testing.T) {
	// clock skew: an event observed before its own start time prices at the
	// full initial bump
	p := newTestPricer(AuctionConfig{InitialBumpBps: 500})
	params := testAuctionParams(10_000)

	result, err := p.CalculateRate(params, params.StartTime.Add(-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(10_500), result.OutputAmount.Int64())
}
