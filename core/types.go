package core

import "math/big"

// Principal is an opaque caller identity supplied by the auth layer.
// The engine never interprets it beyond equality.
type Principal string

// AuctionKind selects the protocol governing a session.
type AuctionKind int

const (
	KindEnglish AuctionKind = iota
	KindAllPay
	KindVickrey
	KindLinearReverseDutch
	KindExpReverseDutch
)

// String returns the wire name of the auction kind.
func (k AuctionKind) String() string {
	switch k {
	case KindEnglish:
		return "english"
	case KindAllPay:
		return "all_pay"
	case KindVickrey:
		return "vickrey"
	case KindLinearReverseDutch:
		return "linear_reverse_dutch"
	case KindExpReverseDutch:
		return "exp_reverse_dutch"
	}
	return "unknown"
}

// ParseAuctionKind maps a wire name back to its kind.
func ParseAuctionKind(s string) (AuctionKind, bool) {
	for _, k := range []AuctionKind{KindEnglish, KindAllPay, KindVickrey, KindLinearReverseDutch, KindExpReverseDutch} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// AssetKind distinguishes unique items from fungible balances.
type AssetKind int

const (
	AssetUnique AssetKind = iota
	AssetFungible
)

// String returns the wire name of the asset kind.
func (k AssetKind) String() string {
	if k == AssetUnique {
		return "unique"
	}
	return "fungible"
}

// AuctionState is the lifecycle state of a session. The Vickrey phase
// windows (commit vs reveal) are derived from the clock, not stored.
type AuctionState int

const (
	StateOpen AuctionState = iota
	StateSettled
	StateCancelled
)

// String returns the wire name of the auction state.
func (s AuctionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSettled:
		return "settled"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// AssetRef identifies an escrowed lot: a token id for unique assets, an
// amount for fungible ones.
type AssetRef struct {
	Asset      string   `json:"asset"`
	IDOrAmount *big.Int `json:"id_or_amount"`
}

// OpenOutcrySchedule holds the parameters shared by the English and
// all-pay protocols.
type OpenOutcrySchedule struct {
	StartingBid       *big.Int `json:"starting_bid"`
	MinBidDelta       *big.Int `json:"min_bid_delta"`
	Deadline          uint64   `json:"deadline"`
	DeadlineExtension uint64   `json:"deadline_extension"`
	HighestBid        *big.Int `json:"highest_bid"`
}

// SealedSchedule holds the Vickrey commit/reveal parameters.
// WinningBid tracks the current second-highest revealed amount; it starts
// at MinBid, which acts as the sentinel second price when only one bidder
// reveals.
type SealedSchedule struct {
	MinBid               *big.Int `json:"min_bid"`
	CommitEnd            uint64   `json:"commit_end"`
	RevealEnd            uint64   `json:"reveal_end"`
	CommitFee            *big.Int `json:"commit_fee"`
	WinningBid           *big.Int `json:"winning_bid"`
	AccumulatedCommitFee *big.Int `json:"accumulated_commit_fee"`
	Commitments          uint32   `json:"commitments"`
}

// DecaySchedule holds the reverse-Dutch parameters. DecayFactor is only
// meaningful for the exponential variant (DecayScale-scaled, 5 decimals).
type DecaySchedule struct {
	StartPrice  *big.Int `json:"start_price"`
	MinPrice    *big.Int `json:"min_price"`
	StartTS     uint64   `json:"start_ts"`
	Deadline    uint64   `json:"deadline"`
	Duration    uint64   `json:"duration"`
	DecayFactor uint64   `json:"decay_factor,omitempty"`
	SettlePrice *big.Int `json:"settle_price"`
}

// AuctionRecord is one auction session. Exactly one of the schedule
// pointers is set, matching Kind.
type AuctionRecord struct {
	ID             uint64       `json:"id"`
	Kind           AuctionKind  `json:"kind"`
	Name           string       `json:"name"`
	AssetKind      AssetKind    `json:"asset_kind"`
	Auctioneer     Principal    `json:"auctioneer"`
	Item           AssetRef     `json:"item"`
	PayAsset       string       `json:"pay_asset"`
	State          AuctionState `json:"state"`
	Winner         Principal    `json:"winner"`
	AvailableFunds *big.Int     `json:"available_funds"`
	Claimed        bool         `json:"is_claimed"`
	FeeBpsSnapshot uint32       `json:"fee_bps_snapshot"`
	CreatedAt      uint64       `json:"created_at"`

	OpenOutcry *OpenOutcrySchedule `json:"open_outcry,omitempty"`
	Sealed     *SealedSchedule     `json:"sealed,omitempty"`
	Decay      *DecaySchedule      `json:"decay,omitempty"`
}

// Clone returns a deep copy of the record. Transitions mutate a clone so
// that a failed escrow call can restore the pre-image.
func (r *AuctionRecord) Clone() *AuctionRecord {
	c := *r
	c.Item.IDOrAmount = cloneBig(r.Item.IDOrAmount)
	c.AvailableFunds = cloneBig(r.AvailableFunds)
	if r.OpenOutcry != nil {
		s := *r.OpenOutcry
		s.StartingBid = cloneBig(s.StartingBid)
		s.MinBidDelta = cloneBig(s.MinBidDelta)
		s.HighestBid = cloneBig(s.HighestBid)
		c.OpenOutcry = &s
	}
	if r.Sealed != nil {
		s := *r.Sealed
		s.MinBid = cloneBig(s.MinBid)
		s.CommitFee = cloneBig(s.CommitFee)
		s.WinningBid = cloneBig(s.WinningBid)
		s.AccumulatedCommitFee = cloneBig(s.AccumulatedCommitFee)
		c.Sealed = &s
	}
	if r.Decay != nil {
		s := *r.Decay
		s.StartPrice = cloneBig(s.StartPrice)
		s.MinPrice = cloneBig(s.MinPrice)
		s.SettlePrice = cloneBig(s.SettlePrice)
		c.Decay = &s
	}
	return &c
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
