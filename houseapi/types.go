// Package houseapi defines the wire shapes of the auction house API:
// typed requests, responses, and event envelopes. Amounts travel as
// base-unit decimal strings so 18-decimal values survive JSON intact.
package houseapi

import (
	"encoding/json"

	"github.com/StabilityNexus/hammerhouse/core"
)

// Request type discriminators.
const (
	TypeCreate    = "create"
	TypeBid       = "bid"
	TypeCommitBid = "commit_bid"
	TypeRevealBid = "reveal_bid"
	TypeClaim     = "claim"
	TypeWithdraw  = "withdraw"
	TypeCancel    = "cancel"
)

// CreateParams carries the per-kind schedule parameters of a create
// request. Amount-typed fields are base-unit decimal strings.
type CreateParams struct {
	StartingBid       string `json:"starting_bid,omitempty"`
	MinBidDelta       string `json:"min_bid_delta,omitempty"`
	Duration          uint64 `json:"duration,omitempty"`
	DeadlineExtension uint64 `json:"deadline_extension,omitempty"`

	MinBid         string `json:"min_bid,omitempty"`
	CommitDuration uint64 `json:"commit_duration,omitempty"`
	RevealDuration uint64 `json:"reveal_duration,omitempty"`
	CommitFee      string `json:"commit_fee,omitempty"`

	StartPrice  string `json:"start_price,omitempty"`
	MinPrice    string `json:"min_price,omitempty"`
	DecayFactor uint64 `json:"decay_factor,omitempty"`
}

// Request is the flat request envelope accepted over every transport.
// Type selects the operation; the remaining fields are read as that
// operation requires.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	AuctionID uint64 `json:"auction_id,omitempty"`

	// Create fields.
	Kind       string        `json:"kind,omitempty"`
	Name       string        `json:"name,omitempty"`
	AssetKind  string        `json:"asset_kind,omitempty"`
	Asset      string        `json:"asset,omitempty"`
	IDOrAmount string        `json:"id_or_amount,omitempty"`
	PayAsset   string        `json:"pay_asset,omitempty"`
	Params     *CreateParams `json:"params,omitempty"`

	// Bid / reveal fields.
	Amount string `json:"amount,omitempty"`

	// Sealed-bid fields. Commitment and Salt are hex-encoded 32 bytes.
	Commitment string `json:"commitment,omitempty"`
	Salt       string `json:"salt,omitempty"`
	FeeAmount  string `json:"fee_amount,omitempty"`
}

// EventEnvelope wraps one emitted event for the log, the websocket feed,
// and responses.
type EventEnvelope struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Response is the uniform operation response.
type Response struct {
	Type           string          `json:"type"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	Message        string          `json:"message,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
	AuctionID      uint64          `json:"auction_id,omitempty"`
	Events         []EventEnvelope `json:"events,omitempty"`
	ProcessingTime int64           `json:"processing_time_ms"`
}

// AuctionView is the read-model rendering of an auction record. Amounts
// appear twice: exact base units and a human-readable decimal.
type AuctionView struct {
	ID             uint64    `json:"id"`
	Kind           string    `json:"kind"`
	Name           string    `json:"name"`
	AssetKind      string    `json:"asset_kind"`
	Auctioneer     string    `json:"auctioneer"`
	Asset          string    `json:"asset"`
	IDOrAmount     string    `json:"id_or_amount"`
	PayAsset       string    `json:"pay_asset"`
	State          string    `json:"state"`
	Winner         string    `json:"winner"`
	AvailableFunds string    `json:"available_funds"`
	Claimed        bool      `json:"is_claimed"`
	FeeBps         uint32    `json:"fee_bps"`
	CreatedAt      uint64    `json:"created_at"`
	Schedule       *Schedule `json:"schedule,omitempty"`
}

// Schedule is the per-kind schedule rendering; only the fields of the
// auction's kind are populated.
type Schedule struct {
	StartingBid       string `json:"starting_bid,omitempty"`
	MinBidDelta       string `json:"min_bid_delta,omitempty"`
	Deadline          uint64 `json:"deadline,omitempty"`
	DeadlineExtension uint64 `json:"deadline_extension,omitempty"`
	HighestBid        string `json:"highest_bid,omitempty"`
	HighestBidHuman   string `json:"highest_bid_display,omitempty"`

	MinBid               string `json:"min_bid,omitempty"`
	CommitEnd            uint64 `json:"commit_end,omitempty"`
	RevealEnd            uint64 `json:"reveal_end,omitempty"`
	CommitFee            string `json:"commit_fee,omitempty"`
	WinningBid           string `json:"winning_bid,omitempty"`
	AccumulatedCommitFee string `json:"accumulated_commit_fee,omitempty"`

	StartPrice   string `json:"start_price,omitempty"`
	MinPrice     string `json:"min_price,omitempty"`
	StartTS      uint64 `json:"start_ts,omitempty"`
	Duration     uint64 `json:"duration,omitempty"`
	DecayFactor  uint64 `json:"decay_factor,omitempty"`
	SettlePrice  string `json:"settle_price,omitempty"`
	CurrentPrice string `json:"current_price,omitempty"`
}

// ViewRecord renders a record, evaluating the live ask for reverse-Dutch
// auctions at the given time.
func ViewRecord(rec *core.AuctionRecord, now uint64) *AuctionView {
	view := &AuctionView{
		ID:             rec.ID,
		Kind:           rec.Kind.String(),
		Name:           rec.Name,
		AssetKind:      rec.AssetKind.String(),
		Auctioneer:     string(rec.Auctioneer),
		Asset:          rec.Item.Asset,
		IDOrAmount:     rec.Item.IDOrAmount.String(),
		PayAsset:       rec.PayAsset,
		State:          rec.State.String(),
		Winner:         string(rec.Winner),
		AvailableFunds: rec.AvailableFunds.String(),
		Claimed:        rec.Claimed,
		FeeBps:         rec.FeeBpsSnapshot,
		CreatedAt:      rec.CreatedAt,
	}
	switch {
	case rec.OpenOutcry != nil:
		s := rec.OpenOutcry
		view.Schedule = &Schedule{
			StartingBid:       s.StartingBid.String(),
			MinBidDelta:       s.MinBidDelta.String(),
			Deadline:          s.Deadline,
			DeadlineExtension: s.DeadlineExtension,
			HighestBid:        s.HighestBid.String(),
			HighestBidHuman:   FormatUnits(s.HighestBid),
		}
	case rec.Sealed != nil:
		s := rec.Sealed
		view.Schedule = &Schedule{
			MinBid:               s.MinBid.String(),
			CommitEnd:            s.CommitEnd,
			RevealEnd:            s.RevealEnd,
			CommitFee:            s.CommitFee.String(),
			WinningBid:           s.WinningBid.String(),
			AccumulatedCommitFee: s.AccumulatedCommitFee.String(),
		}
	case rec.Decay != nil:
		s := rec.Decay
		view.Schedule = &Schedule{
			StartPrice:   s.StartPrice.String(),
			MinPrice:     s.MinPrice.String(),
			StartTS:      s.StartTS,
			Deadline:     s.Deadline,
			Duration:     s.Duration,
			DecayFactor:  s.DecayFactor,
			SettlePrice:  s.SettlePrice.String(),
			CurrentPrice: core.DecayPrice(s, rec.Kind == core.KindExpReverseDutch, now).String(),
		}
	}
	return view
}
