package core

import "math/big"

// Event is emitted on every successful operation. Field order within each
// event is fixed for external consumers.
type Event interface {
	// EventName returns the stable wire name of the event.
	EventName() string
}

// AuctionCreated is emitted once per session.
type AuctionCreated struct {
	AuctionID  uint64    `json:"auction_id"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Auctioneer Principal `json:"auctioneer"`
	AssetKind  string    `json:"asset_kind"`
	Asset      string    `json:"asset"`
	IDOrAmount *big.Int  `json:"id_or_amount"`
	PayAsset   string    `json:"pay_asset"`
	FeeBps     uint32    `json:"fee_bps"`
}

// EventName implements Event.
func (AuctionCreated) EventName() string { return "auction_created" }

// BidPlaced is emitted on an accepted open bid, a sealed commitment
// (Amount omitted), or a reverse-Dutch acceptance (Price set).
type BidPlaced struct {
	AuctionID  uint64    `json:"auction_id"`
	Bidder     Principal `json:"bidder"`
	Amount     *big.Int  `json:"amount,omitempty"`
	HighestBid *big.Int  `json:"highest_bid,omitempty"`
	Price      *big.Int  `json:"price,omitempty"`
	Deadline   uint64    `json:"deadline,omitempty"`
}

// EventName implements Event.
func (BidPlaced) EventName() string { return "bid_placed" }

// BidRevealed is emitted on a successful Vickrey reveal.
type BidRevealed struct {
	AuctionID  uint64    `json:"auction_id"`
	Bidder     Principal `json:"bidder"`
	Amount     *big.Int  `json:"amount"`
	Winner     Principal `json:"winner"`
	WinningBid *big.Int  `json:"winning_bid"`
}

// EventName implements Event.
func (BidRevealed) EventName() string { return "bid_revealed" }

// Claimed is emitted exactly once per auction, when the item leaves
// escrow for the winner (or back to the auctioneer on an unsold lot).
type Claimed struct {
	AuctionID  uint64    `json:"auction_id"`
	Winner     Principal `json:"winner"`
	Asset      string    `json:"asset"`
	IDOrAmount *big.Int  `json:"id_or_amount"`
	PricePaid  *big.Int  `json:"price_paid,omitempty"`
}

// EventName implements Event.
func (Claimed) EventName() string { return "claimed" }

// Withdrawn is emitted when proceeds are disbursed.
type Withdrawn struct {
	AuctionID  uint64    `json:"auction_id"`
	Auctioneer Principal `json:"auctioneer"`
	Gross      *big.Int  `json:"gross"`
	Net        *big.Int  `json:"net"`
	FeePaid    *big.Int  `json:"fee_paid"`
	CommitFees *big.Int  `json:"commit_fees,omitempty"`
}

// EventName implements Event.
func (Withdrawn) EventName() string { return "withdrawn" }

// AuctionCancelled is emitted when the auctioneer takes the item back.
type AuctionCancelled struct {
	AuctionID  uint64    `json:"auction_id"`
	Auctioneer Principal `json:"auctioneer"`
}

// EventName implements Event.
func (AuctionCancelled) EventName() string { return "auction_cancelled" }
