package house

import (
	"log"
	"math/big"
	"sync"

	"github.com/StabilityNexus/hammerhouse/core"
)

// DevGateway is an in-process custody stub for development and
// standalone runs: it tracks escrowed balances and item ownership in
// memory and logs every movement. Production deployments replace it
// with a gateway backed by real custody.
type DevGateway struct {
	mu       sync.Mutex
	escrowed map[string]*big.Int
	items    map[string]core.Principal
}

// NewDevGateway returns an empty in-memory gateway.
func NewDevGateway() *DevGateway {
	return &DevGateway{
		escrowed: make(map[string]*big.Int),
		items:    make(map[string]core.Principal),
	}
}

// EscrowTake implements core.AssetGateway.
func (g *DevGateway) EscrowTake(kind core.AssetKind, asset string, from core.Principal, idOrAmount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if kind == core.AssetUnique {
		g.items[asset] = ""
	} else {
		if g.escrowed[asset] == nil {
			g.escrowed[asset] = new(big.Int)
		}
		g.escrowed[asset].Add(g.escrowed[asset], idOrAmount)
	}
	log.Printf("INFO: escrow_take %s %s %s from %s", kind, asset, idOrAmount, from)
	return nil
}

// EscrowRelease implements core.AssetGateway.
func (g *DevGateway) EscrowRelease(kind core.AssetKind, asset string, to core.Principal, idOrAmount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if kind == core.AssetUnique {
		g.items[asset] = to
	} else {
		if g.escrowed[asset] == nil {
			g.escrowed[asset] = new(big.Int)
		}
		g.escrowed[asset].Sub(g.escrowed[asset], idOrAmount)
	}
	log.Printf("INFO: escrow_release %s %s %s to %s", kind, asset, idOrAmount, to)
	return nil
}
