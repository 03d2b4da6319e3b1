package house

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StabilityNexus/hammerhouse/config"
	"github.com/StabilityNexus/hammerhouse/core"
	"github.com/StabilityNexus/hammerhouse/houseapi"
	"github.com/StabilityNexus/hammerhouse/receipts"
)

type testClock struct {
	now uint64
}

func (c *testClock) Now() uint64 { return c.now }

// startHouse builds a house over the dev gateway and runs its shards and
// event hub for the duration of the test.
func startHouse(t *testing.T, cfg config.Config) (*House, *testClock) {
	t.Helper()
	clock := &testClock{now: 1000}
	h, err := New(cfg, NewDevGateway(), WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() {
		if h.store != nil {
			h.store.Close()
		}
	})
	for i, ch := range h.shards {
		go h.runShard(ctx, i, ch)
	}
	go h.hub.run(ctx)
	return h, clock
}

func postJSON(t *testing.T, srv *httptest.Server, principal, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("X-Principal", principal)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) houseapi.Response {
	t.Helper()
	defer resp.Body.Close()
	var out houseapi.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func englishBody() houseapi.Request {
	return houseapi.Request{
		Kind:       "english",
		Name:       "lot-1",
		AssetKind:  "unique",
		Asset:      "nft-1",
		IDOrAmount: "7",
		PayAsset:   "usd",
		Params: &houseapi.CreateParams{
			StartingBid:       "1000000000000000000",
			MinBidDelta:       "100000000000000000",
			Duration:          5,
			DeadlineExtension: 10,
		},
	}
}

func TestHouse_EnglishLifecycleOverHTTP(t *testing.T) {
	h, clock := startHouse(t, config.Default())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	// Create.
	resp := decodeResponse(t, postJSON(t, srv, "alice", "/auctions", englishBody()))
	require.True(t, resp.Success, "create failed: %s", resp.Message)
	id := resp.AuctionID
	require.NotZero(t, id)

	// Bid.
	clock.now = 1001
	resp = decodeResponse(t, postJSON(t, srv, "bob", fmt.Sprintf("/auctions/%d/bid", id), houseapi.Request{Amount: "1200000000000000000"}))
	require.True(t, resp.Success, "bid failed: %s", resp.Message)
	assert.Equal(t, "bid_placed", resp.Events[0].Name)

	// Read model shows the new leader.
	getResp, err := srv.Client().Get(srv.URL + fmt.Sprintf("/auctions/%d", id))
	require.NoError(t, err)
	var view houseapi.AuctionView
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&view))
	getResp.Body.Close()
	assert.Equal(t, "bob", view.Winner)
	assert.Equal(t, "1.2", view.Schedule.HighestBidHuman)

	// Claim after the extended deadline, then withdraw.
	clock.now = 1015
	resp = decodeResponse(t, postJSON(t, srv, "bob", fmt.Sprintf("/auctions/%d/claim", id), nil))
	require.True(t, resp.Success, "claim failed: %s", resp.Message)

	resp = decodeResponse(t, postJSON(t, srv, "alice", fmt.Sprintf("/auctions/%d/withdraw", id), nil))
	require.True(t, resp.Success, "withdraw failed: %s", resp.Message)

	// Settlement produced verifiable receipts.
	signed := h.Receipts(id)
	require.Len(t, signed, 2)
	pemStr, err := h.ReceiptKeyPEM()
	require.NoError(t, err)
	pub, err := receipts.ParsePublicKeyPEM(pemStr)
	require.NoError(t, err)
	receipt, err := receipts.Verify(pub, signed[0])
	require.NoError(t, err)
	assert.Equal(t, "claimed", receipt.Event)
	assert.Equal(t, "bob", receipt.Winner)
}

func TestHouse_ReceiptsEndpoint(t *testing.T) {
	h, clock := startHouse(t, config.Default())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp := decodeResponse(t, postJSON(t, srv, "alice", "/auctions", englishBody()))
	require.True(t, resp.Success)
	id := resp.AuctionID

	clock.now = 1005
	decodeResponse(t, postJSON(t, srv, "alice", fmt.Sprintf("/auctions/%d/claim", id), nil))

	getResp, err := srv.Client().Get(srv.URL + fmt.Sprintf("/auctions/%d/receipts", id))
	require.NoError(t, err)
	defer getResp.Body.Close()
	var out struct {
		AuctionID uint64   `json:"auction_id"`
		Receipts  []string `json:"receipts"`
	}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&out))
	require.Len(t, out.Receipts, 1)
	_, err = base64.StdEncoding.DecodeString(out.Receipts[0])
	assert.NoError(t, err)
}

func TestHouse_AuthRequired(t *testing.T) {
	h, _ := startHouse(t, config.Default())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	raw, _ := json.Marshal(englishBody())
	resp, err := srv.Client().Post(srv.URL+"/auctions", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHouse_ErrorStatusMapping(t *testing.T) {
	h, _ := startHouse(t, config.Default())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	// Unknown auction -> 404.
	resp := postJSON(t, srv, "bob", "/auctions/99/bid", houseapi.Request{Amount: "1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Kind mismatch -> conflict.
	created := decodeResponse(t, postJSON(t, srv, "alice", "/auctions", englishBody()))
	require.True(t, created.Success)
	resp = postJSON(t, srv, "bob", fmt.Sprintf("/auctions/%d/commit", created.AuctionID), houseapi.Request{
		Commitment: "0000000000000000000000000000000000000000000000000000000000000000",
		FeeAmount:  "0",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Cancel by a stranger -> 403.
	resp = postJSON(t, srv, "bob", fmt.Sprintf("/auctions/%d/cancel", created.AuctionID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestHouse_OrderingPerAuction(t *testing.T) {
	h, clock := startHouse(t, config.Default())

	resp := h.Submit("alice", func() houseapi.Request { r := englishBody(); r.Type = houseapi.TypeCreate; return r }())
	require.True(t, resp.Success)
	id := resp.AuctionID

	// Sequential submits observe submission order: the second bid must
	// out-delta the first.
	clock.now = 1001
	first := h.Submit("bob", houseapi.Request{Type: houseapi.TypeBid, AuctionID: id, Amount: "1000000000000000000"})
	require.True(t, first.Success)
	second := h.Submit("carol", houseapi.Request{Type: houseapi.TypeBid, AuctionID: id, Amount: "1000000000000000000"})
	assert.False(t, second.Success)
	assert.Equal(t, "bid_too_low", second.Error)
}

func TestHouse_PersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir

	h, clock := startHouse(t, cfg)
	resp := h.Submit("alice", func() houseapi.Request { r := englishBody(); r.Type = houseapi.TypeCreate; return r }())
	require.True(t, resp.Success)
	id := resp.AuctionID

	clock.now = 1001
	bid := h.Submit("bob", houseapi.Request{Type: houseapi.TypeBid, AuctionID: id, Amount: "1500000000000000000"})
	require.True(t, bid.Success)
	require.NoError(t, h.store.Close())
	h.store = nil

	// A fresh house over the same data dir sees the auction mid-flight.
	restarted, _ := startHouse(t, cfg)
	rec, ok := restarted.ledger.Get(id)
	require.True(t, ok)
	assert.Equal(t, core.Principal("bob"), rec.Winner)
	assert.Zero(t, restarted.ledger.BidOf(id, "bob").Cmp(big.NewInt(1_500_000_000_000_000_000)))
}
