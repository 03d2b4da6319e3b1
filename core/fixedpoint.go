package core

import "math/big"

// Fixed contract constants.
const (
	// FeeDenominator converts basis points to a fraction.
	FeeDenominator = 10_000

	// DecayScale is the fixed-point scale of reverse-Dutch decay factors
	// (5 decimals).
	DecayScale = 100_000

	// MinRevealDuration is the shortest admissible Vickrey reveal window
	// in seconds.
	MinRevealDuration = 86_401
)

// FixedOne is 1.0 in 18-decimal fixed representation.
var FixedOne = new(big.Int).SetUint64(1_000_000_000_000_000_000)

// pow2NegTable[i] = floor(1e18 / 2^i). The interpolation in Pow2Neg treats
// the entry past the end as zero.
var pow2NegTable = [61]uint64{
	1000000000000000000,
	500000000000000000,
	250000000000000000,
	125000000000000000,
	62500000000000000,
	31250000000000000,
	15625000000000000,
	7812500000000000,
	3906250000000000,
	1953125000000000,
	976562500000000,
	488281250000000,
	244140625000000,
	122070312500000,
	61035156250000,
	30517578125000,
	15258789062500,
	7629394531250,
	3814697265625,
	1907348632812,
	953674316406,
	476837158203,
	238418579101,
	119209289550,
	59604644775,
	29802322387,
	14901161193,
	7450580596,
	3725290298,
	1862645149,
	931322574,
	465661287,
	232830643,
	116415321,
	58207660,
	29103830,
	14551915,
	7275957,
	3637978,
	1818989,
	909494,
	454747,
	227373,
	113686,
	56843,
	28421,
	14210,
	7105,
	3552,
	1776,
	888,
	444,
	222,
	111,
	55,
	27,
	13,
	6,
	3,
	1,
	0,
}

// Pow2Neg evaluates 2^(-x) in 18-decimal fixed representation, where xRaw
// is DecayScale-scaled (integer part xRaw/DecayScale, fractional part
// xRaw%DecayScale). Values between table entries are linearly
// interpolated: T[i] - (T[i]-T[i+1])*r/DecayScale.
func Pow2Neg(xRaw uint64) *big.Int {
	i := xRaw / DecayScale
	if i >= uint64(len(pow2NegTable)) {
		return new(big.Int)
	}
	r := xRaw % DecayScale
	hi := new(big.Int).SetUint64(pow2NegTable[i])
	if r == 0 {
		return hi
	}
	var lo uint64
	if i+1 < uint64(len(pow2NegTable)) {
		lo = pow2NegTable[i+1]
	}
	// hi - (hi-lo)*r/DecayScale
	step := new(big.Int).SetUint64(pow2NegTable[i] - lo)
	step.Mul(step, new(big.Int).SetUint64(r))
	step.Div(step, big.NewInt(DecayScale))
	return hi.Sub(hi, step)
}

// SaturatingSub returns a-b, floored at zero.
func SaturatingSub(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

// SaturatingAdd returns a+b. Amounts are unbounded big integers, so the
// name records intent rather than a ceiling.
func SaturatingAdd(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// FeeSplit divides a gross amount into the auctioneer's net proceeds and
// the treasury cut at the given fee in basis points. The treasury portion
// is floor(gross*feeBps/FeeDenominator).
func FeeSplit(gross *big.Int, feeBps uint32) (net, cut *big.Int) {
	cut = new(big.Int).Mul(gross, new(big.Int).SetUint64(uint64(feeBps)))
	cut.Div(cut, big.NewInt(FeeDenominator))
	net = new(big.Int).Sub(gross, cut)
	return net, cut
}
