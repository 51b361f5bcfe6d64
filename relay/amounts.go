package relay

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Chain decimal exponents.
const (
	EthereumDecimals = 18 // wei
	NearDecimals     = 24 // yoctoNEAR
)

// minorUnitDigitThreshold is the documented parsing convention for untagged
// amount strings: an integer string of this many digits or more is assumed to
// already be minor units. Shorter integer strings and any string with a
// decimal point are whole/decimal units. Callers that know the unit should
// use Amount with an explicit Unit tag instead of relying on this.
const minorUnitDigitThreshold = 18

// Unit tags an Amount as minor units or whole units, removing the digit-count
// guesswork for values produced inside the relay.
type Unit string

const (
	UnitMinor Unit = "minor"
	UnitWhole Unit = "whole"
)

// Amount is a unit-tagged value. Whole-unit values may carry fractional
// digits up to the chain's exponent.
type Amount struct {
	Value decimal.Decimal `json:"value"`
	Unit  Unit            `json:"unit"`
}

// AmountCodec converts between chain-native minor units and chain-agnostic
// decimal amounts. All arithmetic is exact; floats never appear.
type AmountCodec struct {
	maxWholeUnits decimal.Decimal
}

func NewAmountCodec(maxWholeUnits int64) *AmountCodec {
	return &AmountCodec{maxWholeUnits: decimal.NewFromInt(maxWholeUnits)}
}

// ToMinorUnits converts a whole-unit decimal amount into integer minor units.
func (c *AmountCodec) ToMinorUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(c.maxWholeUnits) {
		return nil, fmt.Errorf("%w: amount %s exceeds maximum %s", ErrInvalidAmount, amount, c.maxWholeUnits)
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: amount %s has more than %d fractional digits", ErrInvalidAmount, amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromMinorUnits converts integer minor units back to a whole-unit decimal.
func (c *AmountCodec) FromMinorUnits(v *big.Int, decimals int) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, fmt.Errorf("%w: nil amount", ErrInvalidAmount)
	}
	if v.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, v)
	}
	return decimal.NewFromBigInt(v, -int32(decimals)), nil
}

// Resolve converts a tagged Amount into minor units for the given chain.
func (c *AmountCodec) Resolve(a Amount, decimals int) (*big.Int, error) {
	switch a.Unit {
	case UnitMinor:
		if !a.Value.IsInteger() {
			return nil, fmt.Errorf("%w: minor-unit amount %s is not an integer", ErrInvalidAmount, a.Value)
		}
		if a.Value.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, a.Value)
		}
		if a.Value.GreaterThan(c.maxWholeUnits.Shift(int32(decimals))) {
			return nil, fmt.Errorf("%w: amount %s exceeds maximum", ErrInvalidAmount, a.Value)
		}
		return a.Value.BigInt(), nil
	case UnitWhole:
		return c.ToMinorUnits(a.Value, decimals)
	default:
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidAmount, a.Unit)
	}
}

// ParseAmount parses an untagged external amount string into minor units
// using the digit-count convention described at minorUnitDigitThreshold.
func (c *AmountCodec) ParseAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount string", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
	}

	if !strings.Contains(s, ".") && len(s) >= minorUnitDigitThreshold {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: not a number %q", ErrInvalidAmount, s)
		}
		return c.Resolve(Amount{Value: decimal.NewFromBigInt(v, 0), Unit: UnitMinor}, decimals)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not a number %q", ErrInvalidAmount, s)
	}
	return c.ToMinorUnits(d, decimals)
}

// Rescale converts minor units between chains with different exponents.
// Scaling down floors toward zero; the dust always favors the relay's
// attached value never exceeding the computed one.
func (c *AmountCodec) Rescale(v *big.Int, fromDecimals, toDecimals int) (*big.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid minor-unit value", ErrInvalidAmount)
	}
	if fromDecimals == toDecimals {
		return new(big.Int).Set(v), nil
	}
	if toDecimals > fromDecimals {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(toDecimals-fromDecimals)), nil)
		return new(big.Int).Mul(v, scale), nil
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fromDecimals-toDecimals)), nil)
	return new(big.Int).Quo(v, scale), nil
}
