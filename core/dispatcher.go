package core

import (
	"fmt"
	"math/big"
)

// Request is a typed engine request. All requests except Create name an
// existing auction.
type Request interface {
	requestName() string
}

// CreateParams carries the per-kind schedule parameters of a Create
// request; each engine reads the fields relevant to its protocol.
type CreateParams struct {
	// English / all-pay.
	StartingBid       *big.Int `json:"starting_bid,omitempty"`
	MinBidDelta       *big.Int `json:"min_bid_delta,omitempty"`
	Duration          uint64   `json:"duration,omitempty"`
	DeadlineExtension uint64   `json:"deadline_extension,omitempty"`

	// Vickrey.
	MinBid         *big.Int `json:"min_bid,omitempty"`
	CommitDuration uint64   `json:"commit_duration,omitempty"`
	RevealDuration uint64   `json:"reveal_duration,omitempty"`
	CommitFee      *big.Int `json:"commit_fee,omitempty"`

	// Reverse Dutch.
	StartPrice  *big.Int `json:"start_price,omitempty"`
	MinPrice    *big.Int `json:"min_price,omitempty"`
	DecayFactor uint64   `json:"decay_factor,omitempty"`
}

// CreateRequest opens a new auction and escrows the lot.
type CreateRequest struct {
	Kind       AuctionKind  `json:"kind"`
	Name       string       `json:"name"`
	Auctioneer Principal    `json:"auctioneer"`
	AssetKind  AssetKind    `json:"asset_kind"`
	Asset      string       `json:"asset"`
	IDOrAmount *big.Int     `json:"id_or_amount"`
	PayAsset   string       `json:"pay_asset"`
	Params     CreateParams `json:"params"`
}

func (CreateRequest) requestName() string { return "create" }

// BidRequest places an open bid. Amount is the increment for English and
// all-pay auctions and must be nil for reverse-Dutch acceptance.
type BidRequest struct {
	AuctionID uint64    `json:"auction_id"`
	Bidder    Principal `json:"bidder"`
	Amount    *big.Int  `json:"amount,omitempty"`
}

func (BidRequest) requestName() string { return "bid" }

// CommitBidRequest submits a sealed commitment with its fee.
type CommitBidRequest struct {
	AuctionID  uint64    `json:"auction_id"`
	Bidder     Principal `json:"bidder"`
	Commitment [32]byte  `json:"commitment"`
	FeeAmount  *big.Int  `json:"fee_amount"`
}

func (CommitBidRequest) requestName() string { return "commit_bid" }

// RevealBidRequest discloses a sealed bid.
type RevealBidRequest struct {
	AuctionID uint64    `json:"auction_id"`
	Bidder    Principal `json:"bidder"`
	Amount    *big.Int  `json:"amount"`
	Salt      [32]byte  `json:"salt"`
}

func (RevealBidRequest) requestName() string { return "reveal_bid" }

// ClaimRequest settles the item transfer.
type ClaimRequest struct {
	AuctionID uint64    `json:"auction_id"`
	Caller    Principal `json:"caller"`
}

func (ClaimRequest) requestName() string { return "claim" }

// WithdrawRequest disburses proceeds to the auctioneer and treasury.
type WithdrawRequest struct {
	AuctionID uint64    `json:"auction_id"`
	Caller    Principal `json:"caller"`
}

func (WithdrawRequest) requestName() string { return "withdraw" }

// CancelRequest returns the lot to the auctioneer.
type CancelRequest struct {
	AuctionID uint64    `json:"auction_id"`
	Caller    Principal `json:"caller"`
}

func (CancelRequest) requestName() string { return "cancel" }

// engine is the per-kind protocol state machine. Operations a protocol
// does not support report ErrKindMismatch via unsupportedOps.
type engine interface {
	create(ctx *applyContext, id uint64, req CreateRequest) error
	bid(ctx *applyContext, req BidRequest) error
	commitBid(ctx *applyContext, req CommitBidRequest) error
	revealBid(ctx *applyContext, req RevealBidRequest) error
	claim(ctx *applyContext, req ClaimRequest) error
	withdraw(ctx *applyContext, req WithdrawRequest) error
	cancel(ctx *applyContext, req CancelRequest) error
}

// unsupportedOps supplies KindMismatch defaults for the open-bid,
// sealed-bid and withdraw operations; engines embed it and override what
// they support.
type unsupportedOps struct{}

func (unsupportedOps) bid(*applyContext, BidRequest) error {
	return fmt.Errorf("bid: %w", ErrKindMismatch)
}

func (unsupportedOps) commitBid(*applyContext, CommitBidRequest) error {
	return fmt.Errorf("commit_bid: %w", ErrKindMismatch)
}

func (unsupportedOps) revealBid(*applyContext, RevealBidRequest) error {
	return fmt.Errorf("reveal_bid: %w", ErrKindMismatch)
}

func (unsupportedOps) withdraw(*applyContext, WithdrawRequest) error {
	return fmt.Errorf("withdraw: %w", ErrKindMismatch)
}

// Result is the outcome of one applied request.
type Result struct {
	AuctionID uint64
	Events    []Event
	Effects   []Effect
}

// Dispatcher routes typed requests to the engine matching the auction's
// kind. It performs no state mutation itself; all transitions run through
// the ledger's apply path.
type Dispatcher struct {
	ledger  *LedgerState
	gateway AssetGateway
	clock   Clock
	params  ParameterSource
	digest  DigestKind
	engines map[AuctionKind]engine
}

// NewDispatcher wires the capability set into a dispatcher over all five
// protocol engines.
func NewDispatcher(ledger *LedgerState, gateway AssetGateway, clock Clock, params ParameterSource, digest DigestKind) *Dispatcher {
	return &Dispatcher{
		ledger:  ledger,
		gateway: gateway,
		clock:   clock,
		params:  params,
		digest:  digest,
		engines: map[AuctionKind]engine{
			KindEnglish:            &englishEngine{},
			KindAllPay:             &allPayEngine{},
			KindVickrey:            &vickreyEngine{},
			KindLinearReverseDutch: &reverseDutchEngine{exponential: false},
			KindExpReverseDutch:    &reverseDutchEngine{exponential: true},
		},
	}
}

// Ledger exposes the underlying state for read paths.
func (d *Dispatcher) Ledger() *LedgerState { return d.ledger }

// Reserve hands out the next auction id. Sharded servers reserve before
// routing so the creation runs on the same shard as every later
// operation on that auction.
func (d *Dispatcher) Reserve() uint64 { return d.ledger.ReserveID() }

// SubmitCreateWith applies a create request under a pre-reserved id.
func (d *Dispatcher) SubmitCreateWith(id uint64, req CreateRequest) (*Result, error) {
	eng, ok := d.engines[req.Kind]
	if !ok {
		return nil, fmt.Errorf("kind %d: %w", req.Kind, ErrKindMismatch)
	}
	events, effects, err := d.ledger.Create(id, d.clock.Now(), d.params.Params(), d.digest, d.gateway, func(ctx *applyContext) error {
		return eng.create(ctx, id, req)
	})
	if err != nil {
		return nil, err
	}
	return &Result{AuctionID: id, Events: events, Effects: effects}, nil
}

// Submit validates and applies one request, returning the events emitted
// on success.
func (d *Dispatcher) Submit(req Request) (*Result, error) {
	now := d.clock.Now()
	params := d.params.Params()

	if create, ok := req.(CreateRequest); ok {
		return d.SubmitCreateWith(d.ledger.ReserveID(), create)
	}

	id, dispatch, err := route(req)
	if err != nil {
		return nil, err
	}
	events, effects, err := d.ledger.Apply(id, now, params, d.digest, d.gateway, func(ctx *applyContext) error {
		eng, ok := d.engines[ctx.Record().Kind]
		if !ok {
			return fmt.Errorf("kind %d: %w", ctx.Record().Kind, ErrInternal)
		}
		return dispatch(eng, ctx)
	})
	if err != nil {
		return nil, err
	}
	return &Result{AuctionID: id, Events: events, Effects: effects}, nil
}

func route(req Request) (uint64, func(engine, *applyContext) error, error) {
	switch r := req.(type) {
	case BidRequest:
		return r.AuctionID, func(e engine, ctx *applyContext) error { return e.bid(ctx, r) }, nil
	case CommitBidRequest:
		return r.AuctionID, func(e engine, ctx *applyContext) error { return e.commitBid(ctx, r) }, nil
	case RevealBidRequest:
		return r.AuctionID, func(e engine, ctx *applyContext) error { return e.revealBid(ctx, r) }, nil
	case ClaimRequest:
		return r.AuctionID, func(e engine, ctx *applyContext) error { return e.claim(ctx, r) }, nil
	case WithdrawRequest:
		return r.AuctionID, func(e engine, ctx *applyContext) error { return e.withdraw(ctx, r) }, nil
	case CancelRequest:
		return r.AuctionID, func(e engine, ctx *applyContext) error { return e.cancel(ctx, r) }, nil
	default:
		return 0, nil, fmt.Errorf("request %q: %w", req.requestName(), ErrInternal)
	}
}
