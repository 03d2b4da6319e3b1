package core

import (
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
)

type bidKey struct {
	auction uint64
	bidder  Principal
}

// LedgerState owns the auction table and the sparse per-bidder maps. All
// transitions follow the state-first, side-effect-second rule: the
// transition callback mutates a working copy of the record and records
// escrow intents; the ledger commits the copy, drops its exclusive hold,
// and only then executes the intents against the gateway. A failed
// gateway call rolls the committed delta back from the pre-image.
type LedgerState struct {
	mu           sync.Mutex
	inTransition atomic.Bool
	nextID       atomic.Uint64

	auctions    map[uint64]*AuctionRecord
	bids        map[bidKey]*big.Int
	commitments map[bidKey][32]byte
}

// NewLedgerState returns an empty ledger.
func NewLedgerState() *LedgerState {
	return &LedgerState{
		auctions:    make(map[uint64]*AuctionRecord),
		bids:        make(map[bidKey]*big.Int),
		commitments: make(map[bidKey][32]byte),
	}
}

// ReserveID hands out the next monotone auction id.
func (l *LedgerState) ReserveID() uint64 {
	return l.nextID.Add(1)
}

// Get returns a copy of the auction record, if it exists. Records are
// retained read-only after settlement or cancellation.
func (l *LedgerState) Get(id uint64) (*AuctionRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.auctions[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// BidOf returns the recorded tally for a bidder (zero if absent).
func (l *LedgerState) BidOf(id uint64, bidder Principal) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.bids[bidKey{id, bidder}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// InTransition reports whether a transition currently holds the ledger.
// Gateway implementations may consult it to assert the reentrancy
// discipline; see GuardGateway.
func (l *LedgerState) InTransition() bool {
	return l.inTransition.Load()
}

// AuctionSnapshot is the persisted form of one auction: the record plus
// its bidder maps.
type AuctionSnapshot struct {
	Record      *AuctionRecord         `json:"record"`
	Bids        map[Principal]*big.Int `json:"bids,omitempty"`
	Commitments map[Principal][]byte   `json:"commitments,omitempty"`
}

// Export captures the persisted form of an auction.
func (l *LedgerState) Export(id uint64) (*AuctionSnapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.auctions[id]
	if !ok {
		return nil, false
	}
	snap := &AuctionSnapshot{Record: rec.Clone()}
	for k, v := range l.bids {
		if k.auction != id {
			continue
		}
		if snap.Bids == nil {
			snap.Bids = make(map[Principal]*big.Int)
		}
		snap.Bids[k.bidder] = new(big.Int).Set(v)
	}
	for k, v := range l.commitments {
		if k.auction != id {
			continue
		}
		if snap.Commitments == nil {
			snap.Commitments = make(map[Principal][]byte)
		}
		c := make([]byte, 32)
		copy(c, v[:])
		snap.Commitments[k.bidder] = c
	}
	return snap, true
}

// Import restores an auction from its persisted form, advancing the id
// counter past it.
func (l *LedgerState) Import(snap *AuctionSnapshot) error {
	if snap == nil || snap.Record == nil {
		return fmt.Errorf("%w: empty snapshot", ErrInternal)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	id := snap.Record.ID
	l.auctions[id] = snap.Record.Clone()
	for bidder, v := range snap.Bids {
		l.bids[bidKey{id, bidder}] = new(big.Int).Set(v)
	}
	for bidder, c := range snap.Commitments {
		if len(c) != 32 {
			return fmt.Errorf("%w: malformed commitment for %s", ErrInternal, bidder)
		}
		var fixed [32]byte
		copy(fixed[:], c)
		l.commitments[bidKey{id, bidder}] = fixed
	}
	for {
		cur := l.nextID.Load()
		if cur >= id || l.nextID.CompareAndSwap(cur, id) {
			return nil
		}
	}
}

// applyContext is the working set of one transition: the cloned record,
// staged bidder-map writes, and the recorded effect and event lists. The
// callback has no gateway access; intents recorded here run only after
// commit.
type applyContext struct {
	rec    *AuctionRecord
	now    uint64
	params ProtocolParams
	digest DigestKind

	committedBid    func(Principal) *big.Int
	committedCommit func(Principal) ([32]byte, bool)

	stagedBids    map[Principal]*big.Int
	stagedCommits map[Principal]*[32]byte

	effects []Effect
	events  []Event
}

// Record returns the mutable working copy of the auction record.
func (c *applyContext) Record() *AuctionRecord { return c.rec }

// Now is the transition timestamp in seconds.
func (c *applyContext) Now() uint64 { return c.now }

// Params is the current protocol parameter set.
func (c *applyContext) Params() ProtocolParams { return c.params }

// Digest is the configured commitment digest.
func (c *applyContext) Digest() DigestKind { return c.digest }

// BidOf reads a bidder tally through the staged writes.
func (c *applyContext) BidOf(p Principal) *big.Int {
	if v, ok := c.stagedBids[p]; ok {
		return new(big.Int).Set(v)
	}
	return c.committedBid(p)
}

// SetBid stages a bidder tally write.
func (c *applyContext) SetBid(p Principal, v *big.Int) {
	c.stagedBids[p] = new(big.Int).Set(v)
}

// Commitment reads a commitment through the staged writes.
func (c *applyContext) Commitment(p Principal) ([32]byte, bool) {
	if v, ok := c.stagedCommits[p]; ok {
		if v == nil {
			return [32]byte{}, false
		}
		return *v, true
	}
	return c.committedCommit(p)
}

// SetCommitment stages a commitment write.
func (c *applyContext) SetCommitment(p Principal, commitment [32]byte) {
	v := commitment
	c.stagedCommits[p] = &v
}

// DeleteCommitment stages a commitment removal, consuming it so a reveal
// cannot be replayed.
func (c *applyContext) DeleteCommitment(p Principal) {
	c.stagedCommits[p] = nil
}

// Take records an escrow-take intent. Zero-amount fungible movements are
// dropped.
func (c *applyContext) Take(kind AssetKind, asset string, from Principal, idOrAmount *big.Int) {
	if kind == AssetFungible && idOrAmount.Sign() == 0 {
		return
	}
	c.effects = append(c.effects, Effect{
		Op:        EffectTake,
		AssetKind: kind,
		Asset:     asset,
		Principal: from,
		Amount:    new(big.Int).Set(idOrAmount),
	})
}

// Release records an escrow-release intent. Zero-amount fungible
// movements are dropped.
func (c *applyContext) Release(kind AssetKind, asset string, to Principal, idOrAmount *big.Int) {
	if kind == AssetFungible && idOrAmount.Sign() == 0 {
		return
	}
	c.effects = append(c.effects, Effect{
		Op:        EffectRelease,
		AssetKind: kind,
		Asset:     asset,
		Principal: to,
		Amount:    new(big.Int).Set(idOrAmount),
	})
}

// Emit queues an event for the operation.
func (c *applyContext) Emit(ev Event) {
	c.events = append(c.events, ev)
}

// preImage captures everything a transition may touch, for rollback after
// a failed escrow call.
type preImage struct {
	id      uint64
	created bool
	rec     *AuctionRecord
	bids    map[Principal]*big.Int
	commits map[Principal]*[32]byte
}

// Apply runs one transition on an existing auction. On success the
// effects have been executed in order against the gateway and the events
// are returned. Validation errors leave the ledger untouched; an escrow
// failure rolls back the committed state before returning.
func (l *LedgerState) Apply(id uint64, now uint64, params ProtocolParams, digest DigestKind, gw AssetGateway, fn func(*applyContext) error) ([]Event, []Effect, error) {
	l.mu.Lock()
	l.inTransition.Store(true)
	rec, ok := l.auctions[id]
	if !ok {
		l.inTransition.Store(false)
		l.mu.Unlock()
		return nil, nil, fmt.Errorf("auction %d: %w", id, ErrUnknownAuction)
	}

	ctx := l.newContext(id, rec.Clone(), now, params, digest)
	if err := fn(ctx); err != nil {
		l.inTransition.Store(false)
		l.mu.Unlock()
		return nil, nil, err
	}

	pre := l.commit(id, false, ctx)
	l.inTransition.Store(false)
	l.mu.Unlock()

	if err := l.runEffects(gw, ctx.effects, pre); err != nil {
		return nil, nil, err
	}
	return ctx.events, ctx.effects, nil
}

// Create runs the creation transition for a reserved id. The callback
// must set the record on the context.
func (l *LedgerState) Create(id uint64, now uint64, params ProtocolParams, digest DigestKind, gw AssetGateway, fn func(*applyContext) error) ([]Event, []Effect, error) {
	l.mu.Lock()
	l.inTransition.Store(true)
	if _, exists := l.auctions[id]; exists {
		l.inTransition.Store(false)
		l.mu.Unlock()
		return nil, nil, fmt.Errorf("auction %d already exists: %w", id, ErrInternal)
	}

	ctx := l.newContext(id, nil, now, params, digest)
	if err := fn(ctx); err != nil {
		l.inTransition.Store(false)
		l.mu.Unlock()
		return nil, nil, err
	}
	if ctx.rec == nil || ctx.rec.ID != id {
		l.inTransition.Store(false)
		l.mu.Unlock()
		return nil, nil, fmt.Errorf("create callback left no record for %d: %w", id, ErrInternal)
	}

	pre := l.commit(id, true, ctx)
	l.inTransition.Store(false)
	l.mu.Unlock()

	if err := l.runEffects(gw, ctx.effects, pre); err != nil {
		return nil, nil, err
	}
	return ctx.events, ctx.effects, nil
}

func (l *LedgerState) newContext(id uint64, rec *AuctionRecord, now uint64, params ProtocolParams, digest DigestKind) *applyContext {
	return &applyContext{
		rec:    rec,
		now:    now,
		params: params,
		digest: digest,
		committedBid: func(p Principal) *big.Int {
			if v, ok := l.bids[bidKey{id, p}]; ok {
				return new(big.Int).Set(v)
			}
			return new(big.Int)
		},
		committedCommit: func(p Principal) ([32]byte, bool) {
			v, ok := l.commitments[bidKey{id, p}]
			return v, ok
		},
		stagedBids:    make(map[Principal]*big.Int),
		stagedCommits: make(map[Principal]*[32]byte),
	}
}

// commit applies the staged writes under the lock and returns the
// pre-image needed to undo them.
func (l *LedgerState) commit(id uint64, created bool, ctx *applyContext) *preImage {
	pre := &preImage{
		id:      id,
		created: created,
		bids:    make(map[Principal]*big.Int),
		commits: make(map[Principal]*[32]byte),
	}
	if !created {
		pre.rec = l.auctions[id]
	}
	l.auctions[id] = ctx.rec

	for p, v := range ctx.stagedBids {
		if old, ok := l.bids[bidKey{id, p}]; ok {
			pre.bids[p] = old
		} else {
			pre.bids[p] = nil
		}
		l.bids[bidKey{id, p}] = new(big.Int).Set(v)
	}
	for p, v := range ctx.stagedCommits {
		if old, ok := l.commitments[bidKey{id, p}]; ok {
			c := old
			pre.commits[p] = &c
		} else {
			pre.commits[p] = nil
		}
		if v == nil {
			delete(l.commitments, bidKey{id, p})
		} else {
			l.commitments[bidKey{id, p}] = *v
		}
	}
	return pre
}

// runEffects executes the recorded intents in order. Any failure restores
// the pre-image, issues compensating movements for the effects that did
// execute, and reports EscrowFailed; partial transitions do not survive.
func (l *LedgerState) runEffects(gw AssetGateway, effects []Effect, pre *preImage) error {
	for i, e := range effects {
		if err := e.run(gw); err != nil {
			l.rollback(pre)
			for j := i - 1; j >= 0; j-- {
				done := effects[j]
				inverse := Effect{
					Op:        EffectRelease,
					AssetKind: done.AssetKind,
					Asset:     done.Asset,
					Principal: done.Principal,
					Amount:    done.Amount,
				}
				if done.Op == EffectRelease {
					inverse.Op = EffectTake
				}
				// Best effort: a gateway that just failed may refuse the
				// compensation too; custody reconciliation is its problem.
				_ = inverse.run(gw)
			}
			return fmt.Errorf("effect %d (%s %s to/from %s): %v: %w", i, e.Op, e.Asset, e.Principal, err, ErrEscrowFailed)
		}
	}
	return nil
}

func (l *LedgerState) rollback(pre *preImage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pre.created {
		delete(l.auctions, pre.id)
	} else {
		l.auctions[pre.id] = pre.rec
	}
	for p, v := range pre.bids {
		if v == nil {
			delete(l.bids, bidKey{pre.id, p})
		} else {
			l.bids[bidKey{pre.id, p}] = v
		}
	}
	for p, v := range pre.commits {
		if v == nil {
			delete(l.commitments, bidKey{pre.id, p})
		} else {
			l.commitments[bidKey{pre.id, p}] = *v
		}
	}
}

// guardedGateway asserts the reentrancy discipline: entering the gateway
// while a transition holds the ledger is an invariant violation.
type guardedGateway struct {
	l     *LedgerState
	inner AssetGateway
}

// GuardGateway wraps a gateway so that any entry made while the ledger is
// mid-transition fails with ErrInternal instead of observing a
// half-applied record.
func (l *LedgerState) GuardGateway(gw AssetGateway) AssetGateway {
	return &guardedGateway{l: l, inner: gw}
}

func (g *guardedGateway) EscrowTake(kind AssetKind, asset string, from Principal, idOrAmount *big.Int) error {
	if g.l.InTransition() {
		return fmt.Errorf("escrow_take during live transition: %w", ErrInternal)
	}
	return g.inner.EscrowTake(kind, asset, from, idOrAmount)
}

func (g *guardedGateway) EscrowRelease(kind AssetKind, asset string, to Principal, idOrAmount *big.Int) error {
	if g.l.InTransition() {
		return fmt.Errorf("escrow_release during live transition: %w", ErrInternal)
	}
	return g.inner.EscrowRelease(kind, asset, to, idOrAmount)
}
