package core

import (
	"math/big"
	"sync"
	"testing"
)

// Common principals used across engine tests.
const (
	alice    = Principal("alice")
	bob      = Principal("bob")
	carol    = Principal("carol")
	dave     = Principal("dave")
	treasury = Principal("treasury")
)

// e18 returns n * 1e18.
func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

// tenths returns n * 1e17, for the fractional scenario amounts.
func tenths(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(100_000_000_000_000_000))
}

type fakeClock struct {
	now uint64
}

func (c *fakeClock) Now() uint64 { return c.now }

type gwCall struct {
	op     EffectOp
	kind   AssetKind
	asset  string
	who    Principal
	amount *big.Int
}

// memGateway is an in-memory asset gateway tracking net fungible flows
// and unique-item ownership. Hooks allow failure injection and the
// reentrancy probe.
type memGateway struct {
	mu       sync.Mutex
	balances map[string]map[Principal]*big.Int
	escrowed map[string]*big.Int
	items    map[string]Principal
	calls    []gwCall

	failTake    error
	failRelease error // consumed by the first release attempt
	onTake      func(gwCall)
}

func newMemGateway() *memGateway {
	return &memGateway{
		balances: make(map[string]map[Principal]*big.Int),
		escrowed: make(map[string]*big.Int),
		items:    make(map[string]Principal),
	}
}

func (g *memGateway) adjust(asset string, p Principal, delta *big.Int) {
	if g.balances[asset] == nil {
		g.balances[asset] = make(map[Principal]*big.Int)
	}
	if g.balances[asset][p] == nil {
		g.balances[asset][p] = new(big.Int)
	}
	g.balances[asset][p].Add(g.balances[asset][p], delta)
	if g.escrowed[asset] == nil {
		g.escrowed[asset] = new(big.Int)
	}
	g.escrowed[asset].Sub(g.escrowed[asset], delta)
}

func (g *memGateway) EscrowTake(kind AssetKind, asset string, from Principal, idOrAmount *big.Int) error {
	g.mu.Lock()
	call := gwCall{EffectTake, kind, asset, from, new(big.Int).Set(idOrAmount)}
	if g.failTake != nil {
		g.mu.Unlock()
		return g.failTake
	}
	if kind == AssetUnique {
		g.items[asset] = Principal("")
	} else {
		g.adjust(asset, from, new(big.Int).Neg(idOrAmount))
	}
	g.calls = append(g.calls, call)
	hook := g.onTake
	g.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return nil
}

func (g *memGateway) EscrowRelease(kind AssetKind, asset string, to Principal, idOrAmount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRelease != nil {
		err := g.failRelease
		g.failRelease = nil
		return err
	}
	if kind == AssetUnique {
		g.items[asset] = to
	} else {
		g.adjust(asset, to, idOrAmount)
	}
	g.calls = append(g.calls, gwCall{EffectRelease, kind, asset, to, new(big.Int).Set(idOrAmount)})
	return nil
}

// balance reports the net fungible flow for a principal: negative while
// funds sit in escrow, positive after receiving proceeds.
func (g *memGateway) balance(asset string, p Principal) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balances[asset] == nil || g.balances[asset][p] == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(g.balances[asset][p])
}

// escrow reports the fungible units currently held for an asset.
func (g *memGateway) escrow(asset string) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.escrowed[asset] == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(g.escrowed[asset])
}

// itemOwner reports who holds a unique asset ("" while escrowed).
func (g *memGateway) itemOwner(asset string) Principal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.items[asset]
}

// itemReleases counts how many times a unique asset left escrow.
func (g *memGateway) itemReleases(asset string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.op == EffectRelease && c.kind == AssetUnique && c.asset == asset {
			n++
		}
	}
	return n
}

type testHouse struct {
	dispatcher *Dispatcher
	ledger     *LedgerState
	gateway    *memGateway
	clock      *fakeClock
}

func newTestHouse() *testHouse {
	ledger := NewLedgerState()
	gw := newMemGateway()
	clock := &fakeClock{now: 1000}
	params := StaticParams{FeeBps: 100, Treasury: treasury}
	return &testHouse{
		dispatcher: NewDispatcher(ledger, gw, clock, params, DigestKeccak256),
		ledger:     ledger,
		gateway:    gw,
		clock:      clock,
	}
}

func (h *testHouse) mustCreate(t *testing.T, req CreateRequest) uint64 {
	t.Helper()
	res, err := h.dispatcher.Submit(req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return res.AuctionID
}

func englishCreate() CreateRequest {
	return CreateRequest{
		Kind:       KindEnglish,
		Name:       "lot-1",
		Auctioneer: alice,
		AssetKind:  AssetUnique,
		Asset:      "nft-1",
		IDOrAmount: big.NewInt(7),
		PayAsset:   "usd",
		Params: CreateParams{
			StartingBid:       e18(1),
			MinBidDelta:       tenths(1),
			Duration:          5,
			DeadlineExtension: 10,
		},
	}
}
