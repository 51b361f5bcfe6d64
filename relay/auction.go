package relay

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const bpsDenominator = 10000

// AuctionParams derive from a SwapIntent at processing time. They are not
// persisted: the result depends on wall-clock "now" and is recomputed on
// every attempt.
type AuctionParams struct {
	FromChain  Chain           `json:"from_chain"`
	ToChain    Chain           `json:"to_chain"`
	FromAmount *big.Int        `json:"from_amount"`        // minor units, from-chain
	BaseRate   decimal.Decimal `json:"base_exchange_rate"` // to-per-from
	StartTime  time.Time       `json:"start_time"`
	OrderID    string          `json:"order_id"`
}

// AuctionResult is the priced outcome of a swap intent at a given instant.
// OutputAmount + FeeAmount == TotalCost exactly; TotalCost is the value the
// relay attaches natively on the destination chain.
type AuctionResult struct {
	CurrentRate   decimal.Decimal `json:"current_rate"`
	OutputAmount  *big.Int        `json:"output_amount"`
	FeeAmount     *big.Int        `json:"fee_amount"`
	TotalCost     *big.Int        `json:"total_cost"`
	TimeRemaining time.Duration   `json:"time_remaining"`
}

// Pricer computes the time-decaying exchange rate. The rate starts at
// base*(1+initialBump) and decays to base over the configured duration along
// a piecewise-linear schedule of (delay, coefficient-bps) points.
type Pricer struct {
	cfg AuctionConfig
}

func NewPricer(cfg AuctionConfig) *Pricer {
	return &Pricer{cfg: cfg}
}

func (p *Pricer) validate(params AuctionParams) error {
	if params.FromChain == params.ToChain {
		return fmt.Errorf("%w: from and to chain are both %q", ErrInvalidAuctionParams, params.FromChain)
	}
	if params.FromAmount == nil || params.FromAmount.Sign() <= 0 {
		return fmt.Errorf("%w: from_amount must be positive", ErrInvalidAuctionParams)
	}
	if !params.BaseRate.IsPositive() {
		return fmt.Errorf("%w: base_exchange_rate must be positive", ErrInvalidAuctionParams)
	}
	for i := 1; i < len(p.cfg.Points); i++ {
		if p.cfg.Points[i].DelaySeconds <= p.cfg.Points[i-1].DelaySeconds {
			return fmt.Errorf("%w: rate points not sorted ascending by delay", ErrInvalidAuctionParams)
		}
		if p.cfg.Points[i].Coefficient > p.cfg.Points[i-1].Coefficient {
			return fmt.Errorf("%w: rate point coefficients must not increase", ErrInvalidAuctionParams)
		}
	}
	return nil
}

// bumpBps interpolates the current bump factor (basis points) at elapsed
// seconds since auction start. Integer arithmetic, floor rounding.
func (p *Pricer) bumpBps(elapsed int64) int64 {
	duration := p.cfg.DurationSeconds
	if elapsed >= duration {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}

	// knots: (0, initialBump) .. configured points .. (duration, 0)
	prevDelay, prevCoeff := int64(0), p.cfg.InitialBumpBps
	for _, pt := range p.cfg.Points {
		if pt.DelaySeconds >= duration {
			break
		}
		if elapsed < pt.DelaySeconds {
			return interpolate(elapsed, prevDelay, prevCoeff, pt.DelaySeconds, pt.Coefficient)
		}
		prevDelay, prevCoeff = pt.DelaySeconds, pt.Coefficient
	}
	return interpolate(elapsed, prevDelay, prevCoeff, duration, 0)
}

func interpolate(x, x0, y0, x1, y1 int64) int64 {
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// CalculateRate prices the swap at the given instant.
func (p *Pricer) CalculateRate(params AuctionParams, now time.Time) (*AuctionResult, error) {
	if err := p.validate(params); err != nil {
		return nil, err
	}

	elapsed := now.Unix() - params.StartTime.Unix()
	bump := p.bumpBps(elapsed)
	// rate = base * (10000 + bump) / 10000
	rate := params.BaseRate.
		Mul(decimal.NewFromInt(bpsDenominator + bump)).
		Div(decimal.NewFromInt(bpsDenominator))

	output := decimal.NewFromBigInt(params.FromAmount, 0).Mul(rate).Floor().BigInt()

	fee := new(big.Int).Mul(output, big.NewInt(p.cfg.FeeBps))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	total := new(big.Int).Add(output, fee)

	remaining := params.StartTime.Add(time.Duration(p.cfg.DurationSeconds) * time.Second).Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	return &AuctionResult{
		CurrentRate:   rate,
		OutputAmount:  output,
		FeeAmount:     fee,
		TotalCost:     total,
		TimeRemaining: remaining,
	}, nil
}
