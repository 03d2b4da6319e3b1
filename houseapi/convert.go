package houseapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/StabilityNexus/hammerhouse/core"
)

// base-unit scale of settlement amounts (18 decimals).
var unitScale = decimal.New(1, 18)

// ParseAmount reads a base-unit decimal string into an exact integer
// amount. Empty strings read as nil (field absent).
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// FormatUnits renders a base-unit amount as a human-readable decimal
// (1e18 scale), e.g. "1200000000000000000" -> "1.2".
func FormatUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, 0).DivRound(unitScale, 18).String()
}

func parse32(s, field string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("malformed %s: %w", field, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%s must be 32 bytes, got %d", field, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func (p *CreateParams) toCore() (core.CreateParams, error) {
	if p == nil {
		return core.CreateParams{}, nil
	}
	out := core.CreateParams{
		Duration:          p.Duration,
		DeadlineExtension: p.DeadlineExtension,
		CommitDuration:    p.CommitDuration,
		RevealDuration:    p.RevealDuration,
		DecayFactor:       p.DecayFactor,
	}
	var err error
	if out.StartingBid, err = ParseAmount(p.StartingBid); err != nil {
		return out, err
	}
	if out.MinBidDelta, err = ParseAmount(p.MinBidDelta); err != nil {
		return out, err
	}
	if out.MinBid, err = ParseAmount(p.MinBid); err != nil {
		return out, err
	}
	if out.CommitFee, err = ParseAmount(p.CommitFee); err != nil {
		return out, err
	}
	if out.StartPrice, err = ParseAmount(p.StartPrice); err != nil {
		return out, err
	}
	if out.MinPrice, err = ParseAmount(p.MinPrice); err != nil {
		return out, err
	}
	return out, nil
}

// ToCore converts a wire request submitted by caller into the engine's
// typed request.
func (r *Request) ToCore(caller core.Principal) (core.Request, error) {
	switch r.Type {
	case TypeCreate:
		kind, ok := core.ParseAuctionKind(r.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown auction kind %q", r.Kind)
		}
		var assetKind core.AssetKind
		switch r.AssetKind {
		case "unique":
			assetKind = core.AssetUnique
		case "fungible":
			assetKind = core.AssetFungible
		default:
			return nil, fmt.Errorf("unknown asset kind %q", r.AssetKind)
		}
		idOrAmount, err := ParseAmount(r.IDOrAmount)
		if err != nil {
			return nil, err
		}
		if idOrAmount == nil {
			return nil, fmt.Errorf("id_or_amount is required")
		}
		params, err := r.Params.toCore()
		if err != nil {
			return nil, err
		}
		return core.CreateRequest{
			Kind:       kind,
			Name:       r.Name,
			Auctioneer: caller,
			AssetKind:  assetKind,
			Asset:      r.Asset,
			IDOrAmount: idOrAmount,
			PayAsset:   r.PayAsset,
			Params:     params,
		}, nil

	case TypeBid:
		amount, err := ParseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		return core.BidRequest{AuctionID: r.AuctionID, Bidder: caller, Amount: amount}, nil

	case TypeCommitBid:
		commitment, err := parse32(r.Commitment, "commitment")
		if err != nil {
			return nil, err
		}
		fee, err := ParseAmount(r.FeeAmount)
		if err != nil {
			return nil, err
		}
		return core.CommitBidRequest{AuctionID: r.AuctionID, Bidder: caller, Commitment: commitment, FeeAmount: fee}, nil

	case TypeRevealBid:
		salt, err := parse32(r.Salt, "salt")
		if err != nil {
			return nil, err
		}
		amount, err := ParseAmount(r.Amount)
		if err != nil {
			return nil, err
		}
		if amount == nil {
			return nil, fmt.Errorf("amount is required for reveal")
		}
		return core.RevealBidRequest{AuctionID: r.AuctionID, Bidder: caller, Amount: amount, Salt: salt}, nil

	case TypeClaim:
		return core.ClaimRequest{AuctionID: r.AuctionID, Caller: caller}, nil
	case TypeWithdraw:
		return core.WithdrawRequest{AuctionID: r.AuctionID, Caller: caller}, nil
	case TypeCancel:
		return core.CancelRequest{AuctionID: r.AuctionID, Caller: caller}, nil
	}
	return nil, fmt.Errorf("unknown request type %q", r.Type)
}

// WrapEvents envelopes engine events with fresh ids for the feed and the
// log.
func WrapEvents(events []core.Event) ([]EventEnvelope, error) {
	out := make([]EventEnvelope, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
		}
		out = append(out, EventEnvelope{
			ID:   uuid.NewString(),
			Name: ev.EventName(),
			Data: data,
		})
	}
	return out, nil
}

// ErrorResponse builds the failure response for an engine error.
func ErrorResponse(requestID string, err error, processingMS int64) Response {
	return Response{
		Type:           "auction_response",
		Success:        false,
		Error:          core.ErrorCode(err),
		Message:        err.Error(),
		RequestID:      requestID,
		ProcessingTime: processingMS,
	}
}

// SuccessResponse builds the response for an applied request.
func SuccessResponse(requestID string, auctionID uint64, events []EventEnvelope, processingMS int64) Response {
	return Response{
		Type:           "auction_response",
		Success:        true,
		RequestID:      requestID,
		AuctionID:      auctionID,
		Events:         events,
		ProcessingTime: processingMS,
	}
}
