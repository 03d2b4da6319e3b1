package core

import (
	"fmt"
	"math/big"
)

// englishEngine runs the ascending-bid protocol: each accepted bid must
// top the current highest by the minimum delta, the previous leader is
// refunded in full, and every bid extends the deadline (soft close).
type englishEngine struct {
	unsupportedOps
}

func validateOpenOutcryCreate(req CreateRequest) error {
	if req.Name == "" {
		return fmt.Errorf("create: empty name: %w", ErrAmountNonPositive)
	}
	if req.PayAsset == "" {
		return fmt.Errorf("create: empty pay asset: %w", ErrAmountNonPositive)
	}
	if req.Params.Duration == 0 {
		return fmt.Errorf("create: duration must be positive: %w", ErrAmountNonPositive)
	}
	if req.Params.StartingBid == nil || req.Params.StartingBid.Sign() <= 0 {
		return fmt.Errorf("create: starting bid must be positive: %w", ErrAmountNonPositive)
	}
	if req.Params.MinBidDelta == nil || req.Params.MinBidDelta.Sign() < 0 {
		return fmt.Errorf("create: negative min bid delta: %w", ErrAmountNonPositive)
	}
	return nil
}

func newOpenOutcryRecord(ctx *applyContext, id uint64, kind AuctionKind, req CreateRequest) *AuctionRecord {
	return &AuctionRecord{
		ID:             id,
		Kind:           kind,
		Name:           req.Name,
		AssetKind:      req.AssetKind,
		Auctioneer:     req.Auctioneer,
		Item:           AssetRef{Asset: req.Asset, IDOrAmount: cloneBig(req.IDOrAmount)},
		PayAsset:       req.PayAsset,
		State:          StateOpen,
		Winner:         req.Auctioneer,
		AvailableFunds: new(big.Int),
		FeeBpsSnapshot: ctx.Params().FeeBps,
		CreatedAt:      ctx.Now(),
		OpenOutcry: &OpenOutcrySchedule{
			StartingBid:       cloneBig(req.Params.StartingBid),
			MinBidDelta:       cloneBig(req.Params.MinBidDelta),
			Deadline:          ctx.Now() + req.Params.Duration,
			DeadlineExtension: req.Params.DeadlineExtension,
			HighestBid:        new(big.Int),
		},
	}
}

func emitCreated(ctx *applyContext, rec *AuctionRecord) {
	ctx.Take(rec.AssetKind, rec.Item.Asset, rec.Auctioneer, rec.Item.IDOrAmount)
	ctx.Emit(AuctionCreated{
		AuctionID:  rec.ID,
		Kind:       rec.Kind.String(),
		Name:       rec.Name,
		Auctioneer: rec.Auctioneer,
		AssetKind:  rec.AssetKind.String(),
		Asset:      rec.Item.Asset,
		IDOrAmount: cloneBig(rec.Item.IDOrAmount),
		PayAsset:   rec.PayAsset,
		FeeBps:     rec.FeeBpsSnapshot,
	})
}

func (e *englishEngine) create(ctx *applyContext, id uint64, req CreateRequest) error {
	if err := validateOpenOutcryCreate(req); err != nil {
		return err
	}
	rec := newOpenOutcryRecord(ctx, id, KindEnglish, req)
	ctx.rec = rec
	emitCreated(ctx, rec)
	return nil
}

// checkOpenBid validates the shared English/all-pay bid preconditions and
// returns the bidder's new cumulative tally.
func checkOpenBid(ctx *applyContext, req BidRequest) (*big.Int, error) {
	rec := ctx.Record()
	sched := rec.OpenOutcry
	if rec.State != StateOpen || ctx.Now() >= sched.Deadline {
		return nil, fmt.Errorf("auction %d: %w", rec.ID, ErrDeadlineReached)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("bid: %w", ErrAmountNonPositive)
	}
	total := new(big.Int).Add(ctx.BidOf(req.Bidder), req.Amount)
	if sched.HighestBid.Sign() == 0 {
		if total.Cmp(sched.StartingBid) < 0 {
			return nil, fmt.Errorf("bid %s below start %s: %w", total, sched.StartingBid, ErrFirstBidBelowStart)
		}
	} else {
		floor := new(big.Int).Add(sched.HighestBid, sched.MinBidDelta)
		if total.Cmp(floor) < 0 {
			return nil, fmt.Errorf("bid %s below %s: %w", total, floor, ErrBidTooLow)
		}
	}
	return total, nil
}

func (e *englishEngine) bid(ctx *applyContext, req BidRequest) error {
	rec := ctx.Record()
	sched := rec.OpenOutcry
	total, err := checkOpenBid(ctx, req)
	if err != nil {
		return err
	}

	ctx.Take(AssetFungible, rec.PayAsset, req.Bidder, req.Amount)

	// Refund the displaced leader in full. A leader raising their own bid
	// keeps their escrowed tally.
	if prev := rec.Winner; sched.HighestBid.Sign() > 0 && prev != req.Bidder && prev != rec.Auctioneer {
		refund := ctx.BidOf(prev)
		ctx.Release(AssetFungible, rec.PayAsset, prev, refund)
		ctx.SetBid(prev, new(big.Int))
	}

	ctx.SetBid(req.Bidder, total)
	sched.HighestBid = total
	rec.Winner = req.Bidder
	rec.AvailableFunds = new(big.Int).Set(total)
	sched.Deadline += sched.DeadlineExtension

	ctx.Emit(BidPlaced{
		AuctionID:  rec.ID,
		Bidder:     req.Bidder,
		Amount:     cloneBig(req.Amount),
		HighestBid: cloneBig(total),
		Deadline:   sched.Deadline,
	})
	return nil
}

// claimOpenOutcry settles the item transfer after the deadline; shared by
// English and all-pay.
func claimOpenOutcry(ctx *applyContext, req ClaimRequest) error {
	rec := ctx.Record()
	sched := rec.OpenOutcry
	if rec.Claimed {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrAlreadyClaimed)
	}
	if rec.State == StateCancelled {
		return fmt.Errorf("auction %d cancelled: %w", rec.ID, ErrAlreadyClaimed)
	}
	if ctx.Now() < sched.Deadline {
		return fmt.Errorf("auction %d open until %d: %w", rec.ID, sched.Deadline, ErrBeforePhase)
	}

	rec.Claimed = true
	rec.State = StateSettled
	ctx.Release(rec.AssetKind, rec.Item.Asset, rec.Winner, rec.Item.IDOrAmount)
	ctx.Emit(Claimed{
		AuctionID:  rec.ID,
		Winner:     rec.Winner,
		Asset:      rec.Item.Asset,
		IDOrAmount: cloneBig(rec.Item.IDOrAmount),
		PricePaid:  cloneBig(sched.HighestBid),
	})
	return nil
}

// withdrawProceeds zeroes available funds, then releases the fee split.
// The zeroing commits before any transfer runs; shared by English,
// all-pay and Vickrey.
func withdrawProceeds(ctx *applyContext, commitFees *big.Int) error {
	rec := ctx.Record()
	gross := rec.AvailableFunds
	rec.AvailableFunds = new(big.Int)

	net, cut := FeeSplit(gross, rec.FeeBpsSnapshot)
	ctx.Release(AssetFungible, rec.PayAsset, rec.Auctioneer, net)
	ctx.Release(AssetFungible, rec.PayAsset, ctx.Params().Treasury, cut)
	if commitFees != nil && commitFees.Sign() > 0 {
		ctx.Release(AssetFungible, rec.PayAsset, rec.Auctioneer, commitFees)
	}

	ctx.Emit(Withdrawn{
		AuctionID:  rec.ID,
		Auctioneer: rec.Auctioneer,
		Gross:      gross,
		Net:        net,
		FeePaid:    cut,
		CommitFees: cloneBig(commitFees),
	})
	return nil
}

func (e *englishEngine) claim(ctx *applyContext, req ClaimRequest) error {
	return claimOpenOutcry(ctx, req)
}

func (e *englishEngine) withdraw(ctx *applyContext, req WithdrawRequest) error {
	rec := ctx.Record()
	if ctx.Now() < rec.OpenOutcry.Deadline {
		return fmt.Errorf("auction %d open until %d: %w", rec.ID, rec.OpenOutcry.Deadline, ErrBeforePhase)
	}
	return withdrawProceeds(ctx, nil)
}

// cancelOpenOutcry returns the lot pre-deadline while no bid has landed;
// shared by English and all-pay.
func cancelOpenOutcry(ctx *applyContext, req CancelRequest) error {
	rec := ctx.Record()
	sched := rec.OpenOutcry
	if req.Caller != rec.Auctioneer {
		return fmt.Errorf("caller %s: %w", req.Caller, ErrNotAuctioneer)
	}
	if rec.State != StateOpen || ctx.Now() >= sched.Deadline {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrDeadlineReached)
	}
	if rec.Winner != rec.Auctioneer {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrHasBids)
	}

	rec.State = StateCancelled
	ctx.Release(rec.AssetKind, rec.Item.Asset, rec.Auctioneer, rec.Item.IDOrAmount)
	ctx.Emit(AuctionCancelled{AuctionID: rec.ID, Auctioneer: rec.Auctioneer})
	return nil
}

func (e *englishEngine) cancel(ctx *applyContext, req CancelRequest) error {
	return cancelOpenOutcry(ctx, req)
}
