package core

import "math/big"

// AssetGateway moves escrowed value on behalf of the engine. How custody
// works behind it is not the engine's concern. Implementations must be
// safe against concurrent calls from different auctions.
type AssetGateway interface {
	// EscrowTake pulls an item or amount from a principal into escrow.
	EscrowTake(kind AssetKind, asset string, from Principal, idOrAmount *big.Int) error

	// EscrowRelease pushes an escrowed item or amount to a principal.
	EscrowRelease(kind AssetKind, asset string, to Principal, idOrAmount *big.Int) error
}

// Clock provides monotonic timestamps in seconds.
type Clock interface {
	Now() uint64
}

// ProtocolParams are the read-only protocol parameters. FeeBps is
// snapshotted onto each auction at creation so later changes do not
// rewrite history.
type ProtocolParams struct {
	FeeBps   uint32    `json:"fee_bps"`
	Treasury Principal `json:"treasury"`
}

// ParameterSource supplies the current protocol parameters.
type ParameterSource interface {
	Params() ProtocolParams
}

// StaticParams is a ParameterSource with fixed values.
type StaticParams ProtocolParams

// Params returns the fixed parameter set.
func (p StaticParams) Params() ProtocolParams { return ProtocolParams(p) }

// EffectOp is the direction of an escrow movement.
type EffectOp int

const (
	EffectTake EffectOp = iota
	EffectRelease
)

// String returns the wire name of the effect op.
func (op EffectOp) String() string {
	if op == EffectTake {
		return "take"
	}
	return "release"
}

// Effect is one intended asset movement recorded during a transition and
// executed against the gateway only after the state change has committed.
type Effect struct {
	Op        EffectOp  `json:"op"`
	AssetKind AssetKind `json:"asset_kind"`
	Asset     string    `json:"asset"`
	Principal Principal `json:"principal"`
	Amount    *big.Int  `json:"amount"`
}

func (e Effect) run(gw AssetGateway) error {
	if e.Op == EffectTake {
		return gw.EscrowTake(e.AssetKind, e.Asset, e.Principal, e.Amount)
	}
	return gw.EscrowRelease(e.AssetKind, e.Asset, e.Principal, e.Amount)
}
