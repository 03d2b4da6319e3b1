package core

import (
	"fmt"
	"math/big"
)

// vickreyEngine runs the sealed-bid second-price protocol. Bidders commit
// a digest of (amount, salt) with a commit fee, then reveal inside the
// reveal window. The record tracks the highest revealed bid through the
// winner's tally and the second-highest through WinningBid, which starts
// at MinBid so a unique revealer pays the reserve.
type vickreyEngine struct {
	unsupportedOps
}

func (e *vickreyEngine) create(ctx *applyContext, id uint64, req CreateRequest) error {
	if req.Name == "" {
		return fmt.Errorf("create: empty name: %w", ErrAmountNonPositive)
	}
	if req.PayAsset == "" {
		return fmt.Errorf("create: empty pay asset: %w", ErrAmountNonPositive)
	}
	if req.Params.CommitDuration == 0 {
		return fmt.Errorf("create: commit duration must be positive: %w", ErrAmountNonPositive)
	}
	if req.Params.RevealDuration < MinRevealDuration {
		return fmt.Errorf("create: reveal duration %d below %d: %w", req.Params.RevealDuration, MinRevealDuration, ErrAmountNonPositive)
	}
	minBid := req.Params.MinBid
	if minBid == nil {
		minBid = new(big.Int)
	}
	if minBid.Sign() < 0 {
		return fmt.Errorf("create: negative min bid: %w", ErrAmountNonPositive)
	}
	commitFee := req.Params.CommitFee
	if commitFee == nil {
		commitFee = new(big.Int)
	}
	if commitFee.Sign() < 0 {
		return fmt.Errorf("create: negative commit fee: %w", ErrAmountNonPositive)
	}

	commitEnd := ctx.Now() + req.Params.CommitDuration
	rec := &AuctionRecord{
		ID:             id,
		Kind:           KindVickrey,
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
		Sealed: &SealedSchedule{
			MinBid:               cloneBig(minBid),
			CommitEnd:            commitEnd,
			RevealEnd:            commitEnd + req.Params.RevealDuration,
			CommitFee:            cloneBig(commitFee),
			WinningBid:           cloneBig(minBid),
			AccumulatedCommitFee: new(big.Int),
		},
	}
	ctx.rec = rec
	emitCreated(ctx, rec)
	return nil
}

func (e *vickreyEngine) commitBid(ctx *applyContext, req CommitBidRequest) error {
	rec := ctx.Record()
	sched := rec.Sealed
	if rec.State != StateOpen || ctx.Now() >= sched.CommitEnd {
		return fmt.Errorf("auction %d commit window closed: %w", rec.ID, ErrDeadlineReached)
	}
	if req.Bidder == rec.Auctioneer {
		return fmt.Errorf("auctioneer cannot commit: %w", ErrNotAuctioneer)
	}
	if _, exists := ctx.Commitment(req.Bidder); exists {
		return fmt.Errorf("bidder %s: %w", req.Bidder, ErrAlreadyCommitted)
	}
	fee := req.FeeAmount
	if fee == nil {
		fee = new(big.Int)
	}
	if fee.Cmp(sched.CommitFee) != 0 {
		return fmt.Errorf("fee %s, want %s: %w", fee, sched.CommitFee, ErrCommitFeeMismatch)
	}

	ctx.Take(AssetFungible, rec.PayAsset, req.Bidder, sched.CommitFee)
	ctx.SetCommitment(req.Bidder, req.Commitment)
	sched.AccumulatedCommitFee = new(big.Int).Add(sched.AccumulatedCommitFee, sched.CommitFee)
	sched.Commitments++

	// The amount stays sealed; the event only records participation.
	ctx.Emit(BidPlaced{AuctionID: rec.ID, Bidder: req.Bidder})
	return nil
}

func (e *vickreyEngine) revealBid(ctx *applyContext, req RevealBidRequest) error {
	rec := ctx.Record()
	sched := rec.Sealed
	if ctx.Now() < sched.CommitEnd {
		return fmt.Errorf("auction %d still committing: %w", rec.ID, ErrBeforePhase)
	}
	if rec.State != StateOpen || ctx.Now() >= sched.RevealEnd {
		return fmt.Errorf("auction %d reveal window closed: %w", rec.ID, ErrDeadlineReached)
	}
	commitment, ok := ctx.Commitment(req.Bidder)
	if !ok {
		return fmt.Errorf("bidder %s: %w", req.Bidder, ErrNotCommitted)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return fmt.Errorf("reveal: %w", ErrAmountNonPositive)
	}
	if ComputeCommitment(ctx.Digest(), req.Amount, req.Salt) != commitment {
		return fmt.Errorf("bidder %s: %w", req.Bidder, ErrInvalidReveal)
	}

	ctx.Take(AssetFungible, rec.PayAsset, req.Bidder, req.Amount)
	ctx.DeleteCommitment(req.Bidder)

	prevWinner := rec.Winner
	prevHigh := ctx.BidOf(prevWinner)
	if prevWinner == rec.Auctioneer {
		// Sentinel second price: nothing is escrowed for the auctioneer.
		prevHigh = cloneBig(sched.MinBid)
	}

	switch {
	case req.Amount.Cmp(prevHigh) > 0:
		// New highest. The displaced leader gets their escrow back and the
		// old highest becomes the second price the winner will pay.
		if prevWinner != rec.Auctioneer && prevWinner != req.Bidder {
			if held := ctx.BidOf(prevWinner); held.Sign() > 0 {
				ctx.Release(AssetFungible, rec.PayAsset, prevWinner, held)
				ctx.SetBid(prevWinner, new(big.Int))
			}
		}
		rec.Winner = req.Bidder
		ctx.SetBid(req.Bidder, req.Amount)
		sched.WinningBid = cloneBig(prevHigh)
		rec.AvailableFunds = cloneBig(prevHigh)

	case req.Amount.Cmp(sched.WinningBid) > 0:
		// New second-highest: refund immediately, keep only the price.
		ctx.Release(AssetFungible, rec.PayAsset, req.Bidder, req.Amount)
		sched.WinningBid = cloneBig(req.Amount)
		rec.AvailableFunds = cloneBig(req.Amount)

	default:
		// Neither top nor runner-up.
		ctx.Release(AssetFungible, rec.PayAsset, req.Bidder, req.Amount)
	}

	if sched.CommitFee.Sign() > 0 {
		ctx.Release(AssetFungible, rec.PayAsset, req.Bidder, sched.CommitFee)
		sched.AccumulatedCommitFee = new(big.Int).Sub(sched.AccumulatedCommitFee, sched.CommitFee)
	}

	ctx.Emit(BidRevealed{
		AuctionID:  rec.ID,
		Bidder:     req.Bidder,
		Amount:     cloneBig(req.Amount),
		Winner:     rec.Winner,
		WinningBid: cloneBig(sched.WinningBid),
	})
	return nil
}

func (e *vickreyEngine) claim(ctx *applyContext, req ClaimRequest) error {
	rec := ctx.Record()
	sched := rec.Sealed
	if rec.Claimed || rec.State == StateCancelled {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrAlreadyClaimed)
	}
	if ctx.Now() < sched.RevealEnd {
		return fmt.Errorf("auction %d revealing until %d: %w", rec.ID, sched.RevealEnd, ErrBeforePhase)
	}

	var pricePaid *big.Int
	if rec.Winner != rec.Auctioneer {
		// The winner escrowed their full revealed amount but pays only the
		// second price.
		refund := SaturatingSub(ctx.BidOf(rec.Winner), sched.WinningBid)
		if refund.Sign() > 0 {
			ctx.Release(AssetFungible, rec.PayAsset, rec.Winner, refund)
			ctx.SetBid(rec.Winner, sched.WinningBid)
		}
		pricePaid = cloneBig(sched.WinningBid)
	}

	rec.Claimed = true
	rec.State = StateSettled
	ctx.Release(rec.AssetKind, rec.Item.Asset, rec.Winner, rec.Item.IDOrAmount)
	ctx.Emit(Claimed{
		AuctionID:  rec.ID,
		Winner:     rec.Winner,
		Asset:      rec.Item.Asset,
		IDOrAmount: cloneBig(rec.Item.IDOrAmount),
		PricePaid:  pricePaid,
	})
	return nil
}

func (e *vickreyEngine) withdraw(ctx *applyContext, req WithdrawRequest) error {
	rec := ctx.Record()
	sched := rec.Sealed
	if ctx.Now() < sched.RevealEnd {
		return fmt.Errorf("auction %d revealing until %d: %w", rec.ID, sched.RevealEnd, ErrBeforePhase)
	}

	// Forfeited fees from bidders who never revealed go to the auctioneer.
	commitFees := sched.AccumulatedCommitFee
	sched.AccumulatedCommitFee = new(big.Int)
	return withdrawProceeds(ctx, commitFees)
}

func (e *vickreyEngine) cancel(ctx *applyContext, req CancelRequest) error {
	rec := ctx.Record()
	sched := rec.Sealed
	if req.Caller != rec.Auctioneer {
		return fmt.Errorf("caller %s: %w", req.Caller, ErrNotAuctioneer)
	}
	if rec.State != StateOpen || ctx.Now() >= sched.RevealEnd {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrDeadlineReached)
	}
	if sched.Commitments > 0 {
		return fmt.Errorf("auction %d has %d commitments: %w", rec.ID, sched.Commitments, ErrCommitmentsExist)
	}

	rec.State = StateCancelled
	ctx.Release(rec.AssetKind, rec.Item.Asset, rec.Auctioneer, rec.Item.IDOrAmount)
	ctx.Emit(AuctionCancelled{AuctionID: rec.ID, Auctioneer: rec.Auctioneer})
	return nil
}
