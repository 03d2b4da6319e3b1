package core

import (
	"fmt"
	"math/big"
)

// reverseDutchEngine runs both descending-ask variants. The ask decays
// from StartPrice toward MinPrice — linearly, or exponentially through
// the fixed-point 2^(-x) evaluation — and the first acceptor wins at the
// current ask with immediate settlement.
type reverseDutchEngine struct {
	unsupportedOps
	exponential bool
}

// DecayPrice evaluates the ask at time t. Past the deadline the ask is
// pinned to the settle price, which equals MinPrice until a buyer
// arrives.
func DecayPrice(sched *DecaySchedule, exponential bool, t uint64) *big.Int {
	if t >= sched.Deadline {
		return cloneBig(sched.SettlePrice)
	}
	if t < sched.StartTS {
		t = sched.StartTS
	}
	elapsed := t - sched.StartTS
	span := new(big.Int).Sub(sched.StartPrice, sched.MinPrice)

	if exponential {
		// min + span * 2^(-elapsed*decay/DecayScale). The exponent is
		// fully decayed (and the product would overflow) long before
		// elapsed*decay wraps, so clamp first.
		x := uint64(61 * DecayScale)
		if elapsed <= x/sched.DecayFactor {
			x = elapsed * sched.DecayFactor
		}
		factor := Pow2Neg(x)
		span.Mul(span, factor)
		span.Div(span, FixedOne)
		return span.Add(span, sched.MinPrice)
	}

	// start - span*elapsed/duration
	span.Mul(span, new(big.Int).SetUint64(elapsed))
	span.Div(span, new(big.Int).SetUint64(sched.Duration))
	return new(big.Int).Sub(sched.StartPrice, span)
}

func (e *reverseDutchEngine) kind() AuctionKind {
	if e.exponential {
		return KindExpReverseDutch
	}
	return KindLinearReverseDutch
}

func (e *reverseDutchEngine) create(ctx *applyContext, id uint64, req CreateRequest) error {
	if req.Name == "" {
		return fmt.Errorf("create: empty name: %w", ErrAmountNonPositive)
	}
	if req.PayAsset == "" {
		return fmt.Errorf("create: empty pay asset: %w", ErrAmountNonPositive)
	}
	if req.Params.Duration == 0 {
		return fmt.Errorf("create: duration must be positive: %w", ErrAmountNonPositive)
	}
	start, min := req.Params.StartPrice, req.Params.MinPrice
	if start == nil || min == nil || min.Sign() < 0 {
		return fmt.Errorf("create: missing price bounds: %w", ErrAmountNonPositive)
	}
	if start.Cmp(min) < 0 {
		return fmt.Errorf("create: start price %s below min price %s: %w", start, min, ErrAmountNonPositive)
	}
	if e.exponential && req.Params.DecayFactor == 0 {
		return fmt.Errorf("create: decay factor must be positive: %w", ErrAmountNonPositive)
	}

	rec := &AuctionRecord{
		ID:             id,
		Kind:           e.kind(),
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
		Decay: &DecaySchedule{
			StartPrice:  cloneBig(start),
			MinPrice:    cloneBig(min),
			StartTS:     ctx.Now(),
			Deadline:    ctx.Now() + req.Params.Duration,
			Duration:    req.Params.Duration,
			DecayFactor: req.Params.DecayFactor,
			SettlePrice: cloneBig(min),
		},
	}
	ctx.rec = rec
	emitCreated(ctx, rec)
	return nil
}

func (e *reverseDutchEngine) bid(ctx *applyContext, req BidRequest) error {
	rec := ctx.Record()
	sched := rec.Decay
	if rec.Claimed {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrAlreadyClaimed)
	}
	if rec.State != StateOpen || ctx.Now() >= sched.Deadline {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrDeadlineReached)
	}

	// First acceptor wins at the current ask; settlement is immediate.
	price := DecayPrice(sched, e.exponential, ctx.Now())
	rec.Winner = req.Bidder
	sched.SettlePrice = cloneBig(price)
	rec.Claimed = true
	rec.State = StateSettled
	rec.AvailableFunds = new(big.Int)

	net, cut := FeeSplit(price, rec.FeeBpsSnapshot)
	ctx.Take(AssetFungible, rec.PayAsset, req.Bidder, price)
	ctx.Release(rec.AssetKind, rec.Item.Asset, req.Bidder, rec.Item.IDOrAmount)
	ctx.Release(AssetFungible, rec.PayAsset, rec.Auctioneer, net)
	ctx.Release(AssetFungible, rec.PayAsset, ctx.Params().Treasury, cut)

	ctx.Emit(BidPlaced{AuctionID: rec.ID, Bidder: req.Bidder, Price: cloneBig(price)})
	ctx.Emit(Claimed{
		AuctionID:  rec.ID,
		Winner:     req.Bidder,
		Asset:      rec.Item.Asset,
		IDOrAmount: cloneBig(rec.Item.IDOrAmount),
		PricePaid:  cloneBig(price),
	})
	ctx.Emit(Withdrawn{
		AuctionID:  rec.ID,
		Auctioneer: rec.Auctioneer,
		Gross:      cloneBig(price),
		Net:        net,
		FeePaid:    cut,
	})
	return nil
}

func (e *reverseDutchEngine) claim(ctx *applyContext, req ClaimRequest) error {
	rec := ctx.Record()
	sched := rec.Decay
	if rec.Claimed || rec.State == StateCancelled {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrAlreadyClaimed)
	}
	if e.exponential {
		// Unsold reclamation goes through Cancel; Claim is reserved for the
		// winner-settlement path, which for this protocol happens at Bid.
		return fmt.Errorf("auction %d unsold: %w", rec.ID, ErrNotWinner)
	}
	if ctx.Now() < sched.Deadline {
		return fmt.Errorf("auction %d open until %d: %w", rec.ID, sched.Deadline, ErrBeforePhase)
	}

	// No buyer arrived: the lot goes back home.
	rec.Claimed = true
	rec.State = StateSettled
	ctx.Release(rec.AssetKind, rec.Item.Asset, rec.Auctioneer, rec.Item.IDOrAmount)
	ctx.Emit(Claimed{
		AuctionID:  rec.ID,
		Winner:     rec.Auctioneer,
		Asset:      rec.Item.Asset,
		IDOrAmount: cloneBig(rec.Item.IDOrAmount),
	})
	return nil
}

func (e *reverseDutchEngine) cancel(ctx *applyContext, req CancelRequest) error {
	rec := ctx.Record()
	sched := rec.Decay
	if req.Caller != rec.Auctioneer {
		return fmt.Errorf("caller %s: %w", req.Caller, ErrNotAuctioneer)
	}
	if rec.State != StateOpen || rec.Claimed {
		return fmt.Errorf("auction %d: %w", rec.ID, ErrHasBids)
	}
	if !e.exponential && ctx.Now() >= sched.Deadline {
		// The linear variant reclaims an unsold lot through Claim instead.
		return fmt.Errorf("auction %d: %w", rec.ID, ErrDeadlineReached)
	}

	rec.State = StateCancelled
	ctx.Release(rec.AssetKind, rec.Item.Asset, rec.Auctioneer, rec.Item.IDOrAmount)
	ctx.Emit(AuctionCancelled{AuctionID: rec.ID, Auctioneer: rec.Auctioneer})
	return nil
}
