package core

import "fmt"

// allPayEngine runs the all-pay variant of the ascending protocol: every
// accepted increment is retained, proceeds accumulate across all payers,
// and the winner is whoever holds the highest cumulative tally.
type allPayEngine struct {
	unsupportedOps
}

func (e *allPayEngine) create(ctx *applyContext, id uint64, req CreateRequest) error {
	if err := validateOpenOutcryCreate(req); err != nil {
		return err
	}
	rec := newOpenOutcryRecord(ctx, id, KindAllPay, req)
	ctx.rec = rec
	emitCreated(ctx, rec)
	return nil
}

func (e *allPayEngine) bid(ctx *applyContext, req BidRequest) error {
	rec := ctx.Record()
	sched := rec.OpenOutcry
	total, err := checkOpenBid(ctx, req)
	if err != nil {
		return err
	}

	// No refund on being outbid: the whole tally stays in escrow and the
	// proceeds accumulate.
	ctx.Take(AssetFungible, rec.PayAsset, req.Bidder, req.Amount)
	ctx.SetBid(req.Bidder, total)
	sched.HighestBid = total
	rec.Winner = req.Bidder
	rec.AvailableFunds = SaturatingAdd(rec.AvailableFunds, req.Amount)
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

func (e *allPayEngine) claim(ctx *applyContext, req ClaimRequest) error {
	return claimOpenOutcry(ctx, req)
}

func (e *allPayEngine) withdraw(ctx *applyContext, req WithdrawRequest) error {
	rec := ctx.Record()
	if ctx.Now() < rec.OpenOutcry.Deadline {
		return fmt.Errorf("auction %d open until %d: %w", rec.ID, rec.OpenOutcry.Deadline, ErrBeforePhase)
	}
	return withdrawProceeds(ctx, nil)
}

func (e *allPayEngine) cancel(ctx *applyContext, req CancelRequest) error {
	return cancelOpenOutcry(ctx, req)
}
