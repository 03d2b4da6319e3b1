// Package house is the auction house server: it shards operations by
// auction id so every auction sees a total order, applies them through
// the core dispatcher, persists applied operations, signs settlement
// receipts, and feeds events to subscribers.
package house

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StabilityNexus/hammerhouse/config"
	"github.com/StabilityNexus/hammerhouse/core"
	"github.com/StabilityNexus/hammerhouse/houseapi"
	"github.com/StabilityNexus/hammerhouse/receipts"
	"github.com/StabilityNexus/hammerhouse/store"
)

// Auth resolves the caller principal of an HTTP request. The default
// implementation trusts a configured header; production deployments
// plug in their identity layer here.
type Auth interface {
	Principal(r *http.Request) (core.Principal, error)
}

// HeaderAuth reads the principal from a request header.
type HeaderAuth struct {
	Header string
}

// Principal implements Auth.
func (a HeaderAuth) Principal(r *http.Request) (core.Principal, error) {
	p := r.Header.Get(a.Header)
	if p == "" {
		return "", fmt.Errorf("missing %s header", a.Header)
	}
	return core.Principal(p), nil
}

type systemClock struct{}

func (systemClock) Now() uint64 { return uint64(time.Now().Unix()) }

type task struct {
	caller core.Principal
	req    houseapi.Request
	reply  chan houseapi.Response
}

// House owns the engine and its surrounding plumbing.
type House struct {
	cfg        config.Config
	clock      core.Clock
	dispatcher *core.Dispatcher
	ledger     *core.LedgerState
	store      *store.Store
	keys       *receipts.KeyManager
	auth       Auth
	hub        *eventHub
	shards     []chan task

	receiptMu sync.RWMutex
	receiptDB map[uint64][][]byte
}

// Option tweaks house construction.
type Option func(*House)

// WithClock overrides the wall clock (tests).
func WithClock(c core.Clock) Option {
	return func(h *House) { h.clock = c }
}

// WithAuth overrides principal resolution.
func WithAuth(a Auth) Option {
	return func(h *House) { h.auth = a }
}

// New builds a house over the given custody gateway, restoring persisted
// state when a data dir is configured.
func New(cfg config.Config, gateway core.AssetGateway, opts ...Option) (*House, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &House{
		cfg:       cfg,
		clock:     systemClock{},
		ledger:    core.NewLedgerState(),
		auth:      HeaderAuth{Header: cfg.AuthHeader},
		hub:       newEventHub(),
		receiptDB: make(map[uint64][][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}

	params := core.StaticParams{FeeBps: cfg.FeeBps, Treasury: core.Principal(cfg.Treasury)}
	h.dispatcher = core.NewDispatcher(h.ledger, gateway, h.clock, params, cfg.DigestKind())

	keys, err := receipts.NewKeyManager()
	if err != nil {
		return nil, fmt.Errorf("init receipt keys: %w", err)
	}
	h.keys = keys

	if cfg.DataDir != "" {
		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		h.store = st
		n, err := st.Restore(h.ledger)
		if err != nil {
			return nil, fmt.Errorf("restore ledger: %w", err)
		}
		log.Printf("INFO: Restored %d auctions from %s (log seq %d)", n, cfg.DataDir, st.LastSeq())
	}

	h.shards = make([]chan task, cfg.Shards)
	for i := range h.shards {
		h.shards[i] = make(chan task)
	}
	return h, nil
}

// Run serves all configured listeners until the context is cancelled.
func (h *House) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i, ch := range h.shards {
		i, ch := i, ch
		g.Go(func() error {
			h.runShard(ctx, i, ch)
			return nil
		})
	}
	g.Go(func() error {
		h.hub.run(ctx)
		return nil
	})

	srv := &http.Server{Addr: h.cfg.ListenAddr, Handler: h.Router()}
	g.Go(func() error {
		log.Printf("INFO: Auction house listening on %s", h.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if h.cfg.VsockPort != 0 {
		g.Go(func() error { return h.serveVsock(ctx) })
	}

	err := g.Wait()
	if h.store != nil {
		if closeErr := h.store.Close(); closeErr != nil {
			log.Printf("ERROR: Failed to close store: %v", closeErr)
		}
	}
	return err
}

func (h *House) runShard(ctx context.Context, idx int, ch chan task) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ch:
			t.reply <- h.process(t.caller, t.req)
		}
	}
}

// Submit routes one request to its auction's shard and waits for the
// outcome. Operations on the same auction never interleave.
func (h *House) Submit(caller core.Principal, req houseapi.Request) houseapi.Response {
	id := req.AuctionID
	if req.Type == houseapi.TypeCreate {
		id = h.dispatcher.Reserve()
		req.AuctionID = id
	}
	reply := make(chan houseapi.Response, 1)
	h.shards[id%uint64(len(h.shards))] <- task{caller: caller, req: req, reply: reply}
	return <-reply
}

// process applies one request on its shard goroutine.
func (h *House) process(caller core.Principal, req houseapi.Request) houseapi.Response {
	started := time.Now()

	coreReq, err := req.ToCore(caller)
	if err != nil {
		log.Printf("INFO: Rejected %s request from %s: %v", req.Type, caller, err)
		return houseapi.ErrorResponse(req.RequestID, err, time.Since(started).Milliseconds())
	}

	var result *core.Result
	if create, ok := coreReq.(core.CreateRequest); ok {
		result, err = h.dispatcher.SubmitCreateWith(req.AuctionID, create)
	} else {
		result, err = h.dispatcher.Submit(coreReq)
	}
	if err != nil {
		log.Printf("INFO: %s on auction %d failed: %v", req.Type, req.AuctionID, err)
		return houseapi.ErrorResponse(req.RequestID, err, time.Since(started).Milliseconds())
	}

	envelopes, err := houseapi.WrapEvents(result.Events)
	if err != nil {
		log.Printf("ERROR: Failed to encode events for auction %d: %v", result.AuctionID, err)
		return houseapi.ErrorResponse(req.RequestID, err, time.Since(started).Milliseconds())
	}

	h.persist(caller, req, result, envelopes)
	h.signSettlements(result)
	h.hub.broadcast(envelopes)

	log.Printf("INFO: Applied %s on auction %d (%d events, %dms)",
		req.Type, result.AuctionID, len(envelopes), time.Since(started).Milliseconds())
	return houseapi.SuccessResponse(req.RequestID, result.AuctionID, envelopes, time.Since(started).Milliseconds())
}

func (h *House) persist(caller core.Principal, req houseapi.Request, result *core.Result, envelopes []houseapi.EventEnvelope) {
	if h.store == nil {
		return
	}
	snap, _ := h.ledger.Export(result.AuctionID)
	entry := &store.LogEntry{
		Timestamp: h.clock.Now(),
		Principal: string(caller),
		Request:   req,
		AuctionID: result.AuctionID,
		Effects:   result.Effects,
		Events:    envelopes,
	}
	if err := h.store.Append(entry, snap); err != nil {
		// The in-memory transition already committed; losing the log entry
		// is reported, not fatal.
		log.Printf("ERROR: Failed to persist log entry for auction %d: %v", result.AuctionID, err)
	}
}

func (h *House) signSettlements(result *core.Result) {
	rec, ok := h.ledger.Get(result.AuctionID)
	if !ok {
		return
	}
	for _, ev := range result.Events {
		receipt := receipts.FromEvent(ev, rec.Kind, h.clock.Now())
		if receipt == nil {
			continue
		}
		signed, err := receipts.Sign(h.keys, receipt)
		if err != nil {
			log.Printf("ERROR: Failed to sign %s receipt for auction %d: %v", receipt.Event, result.AuctionID, err)
			continue
		}
		h.receiptMu.Lock()
		h.receiptDB[result.AuctionID] = append(h.receiptDB[result.AuctionID], signed)
		h.receiptMu.Unlock()
	}
}

// Receipts returns the signed settlement receipts of an auction.
func (h *House) Receipts(id uint64) [][]byte {
	h.receiptMu.RLock()
	defer h.receiptMu.RUnlock()
	out := make([][]byte, len(h.receiptDB[id]))
	copy(out, h.receiptDB[id])
	return out
}

// ReceiptKeyPEM exposes the verification key for offline validators.
func (h *House) ReceiptKeyPEM() (string, error) {
	return h.keys.PublicKeyPEM()
}
