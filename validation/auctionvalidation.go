package validation

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/StabilityNexus/hammerhouse/core"
)

// ValidateFeeSplit checks that a withdrawal split is exact: the treasury
// cut is floor(gross*feeBps/10000) and the legs reassemble the gross.
func ValidateFeeSplit(gross, net, fee *big.Int, feeBps uint32) error {
	wantNet, wantFee := core.FeeSplit(gross, feeBps)
	if fee.Cmp(wantFee) != 0 {
		return fmt.Errorf("treasury cut %s, want %s", fee, wantFee)
	}
	if net.Cmp(wantNet) != 0 {
		return fmt.Errorf("net proceeds %s, want %s", net, wantNet)
	}
	if new(big.Int).Add(net, fee).Cmp(gross) != 0 {
		return fmt.Errorf("split %s+%s does not reassemble gross %s", net, fee, gross)
	}
	return nil
}

// CurveCheck is one expected price checkpoint: the offset from the
// auction start and the tolerated relative deviation from the ideal
// curve.
type CurveCheck struct {
	Offset       uint64
	TolerancePct decimal.Decimal
}

// idealPrice computes the continuous-math value of the curve at the
// offset, in base units.
func idealPrice(sched *core.DecaySchedule, exponential bool, offset uint64) decimal.Decimal {
	start := decimal.NewFromBigInt(sched.StartPrice, 0)
	min := decimal.NewFromBigInt(sched.MinPrice, 0)
	span := start.Sub(min)

	if offset >= sched.Duration {
		return min
	}
	if exponential {
		x := float64(offset) * float64(sched.DecayFactor) / float64(core.DecayScale)
		factor := decimal.NewFromFloat(math.Exp2(-x))
		return min.Add(span.Mul(factor))
	}
	elapsed := decimal.New(int64(offset), 0)
	duration := decimal.New(int64(sched.Duration), 0)
	return start.Sub(span.Mul(elapsed).Div(duration))
}

// ValidateCurve replays the engine's price evaluation at each checkpoint
// and confirms it stays within tolerance of the ideal curve, and that
// the evaluated prices never increase over time.
func ValidateCurve(sched *core.DecaySchedule, exponential bool, checks []CurveCheck) error {
	prev := decimal.Decimal{}
	for i, c := range checks {
		got := decimal.NewFromBigInt(core.DecayPrice(sched, exponential, sched.StartTS+c.Offset), 0)
		want := idealPrice(sched, exponential, c.Offset)

		if want.Sign() > 0 {
			deviation := got.Sub(want).Abs().Div(want).Mul(decimal.New(100, 0))
			if deviation.Cmp(c.TolerancePct) > 0 {
				return fmt.Errorf("checkpoint +%ds: price %s deviates %s%% from ideal %s (tolerance %s%%)",
					c.Offset, got, deviation.StringFixed(4), want, c.TolerancePct)
			}
		}
		if i > 0 && got.Cmp(prev) > 0 {
			return fmt.Errorf("checkpoint +%ds: price %s increased from %s", c.Offset, got, prev)
		}
		prev = got
	}
	return nil
}
