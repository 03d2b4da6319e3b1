package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestEnglish_HappyPath(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	// Item escrowed at creation.
	check.Equal(t, Principal(""), h.gateway.itemOwner("nft-1"))

	// First bid at exactly the starting bid is accepted and extends the
	// deadline by the soft-close increment.
	h.clock.now = 1001
	res, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	assert.Nil(t, err)
	placed := res.Events[0].(BidPlaced)
	check.Equal(t, uint64(1015), placed.Deadline)

	// Outbid refunds the previous leader in full.
	h.clock.now = 1002
	_, err = h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: carol, Amount: tenths(12)})
	assert.Nil(t, err)
	check.Equal(t, 0, h.gateway.balance("usd", bob).Sign())
	check.Equal(t, 0, h.gateway.balance("usd", carol).Cmp(new(big.Int).Neg(tenths(12))))

	rec, ok := h.ledger.Get(id)
	assert.True(t, ok)
	check.Equal(t, carol, rec.Winner)
	check.Equal(t, 0, rec.AvailableFunds.Cmp(tenths(12)))
	check.Equal(t, uint64(1025), rec.OpenOutcry.Deadline)

	// Claim hands the item to the winner, once.
	h.clock.now = 1025
	_, err = h.dispatcher.Submit(ClaimRequest{AuctionID: id, Caller: carol})
	assert.Nil(t, err)
	check.Equal(t, carol, h.gateway.itemOwner("nft-1"))

	_, err = h.dispatcher.Submit(ClaimRequest{AuctionID: id, Caller: carol})
	check.True(t, errors.Is(err, ErrAlreadyClaimed))

	// Withdraw splits 1.2e18 into 1.188e18 + 0.012e18 at fee_bps=100.
	res, err = h.dispatcher.Submit(WithdrawRequest{AuctionID: id, Caller: alice})
	assert.Nil(t, err)
	withdrawn := res.Events[0].(Withdrawn)
	check.Equal(t, 0, withdrawn.Net.Cmp(big.NewInt(1_188_000_000_000_000_000)))
	check.Equal(t, 0, withdrawn.FeePaid.Cmp(big.NewInt(12_000_000_000_000_000)))
	check.Equal(t, 0, h.gateway.balance("usd", alice).Cmp(big.NewInt(1_188_000_000_000_000_000)))
	check.Equal(t, 0, h.gateway.balance("usd", treasury).Cmp(big.NewInt(12_000_000_000_000_000)))

	rec, _ = h.ledger.Get(id)
	check.Equal(t, 0, rec.AvailableFunds.Sign())
	check.Equal(t, 0, h.gateway.escrow("usd").Sign())
}

func TestEnglish_FirstBidBelowStart(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: tenths(9)})
	check.True(t, errors.Is(err, ErrFirstBidBelowStart))

	// A rejected bid takes nothing.
	check.Equal(t, 0, h.gateway.balance("usd", bob).Sign())
}

func TestEnglish_BidBelowDelta(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	assert.Nil(t, err)

	// 1.05e18 < 1.0e18 + 0.1e18.
	_, err = h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: carol, Amount: big.NewInt(1_050_000_000_000_000_000)})
	check.True(t, errors.Is(err, ErrBidTooLow))

	// Exactly highest + delta is accepted.
	_, err = h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: carol, Amount: tenths(11)})
	check.Nil(t, err)
}

func TestEnglish_LeaderTopUpKeepsEscrow(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	assert.Nil(t, err)
	_, err = h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: tenths(2)})
	assert.Nil(t, err)

	rec, _ := h.ledger.Get(id)
	check.Equal(t, 0, rec.OpenOutcry.HighestBid.Cmp(tenths(12)))
	check.Equal(t, 0, h.gateway.balance("usd", bob).Cmp(new(big.Int).Neg(tenths(12))))
	check.Equal(t, 0, h.ledger.BidOf(id, bob).Cmp(tenths(12)))
}

func TestEnglish_DeadlineMonotone(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	last := uint64(0)
	bids := []struct {
		bidder Principal
		amount *big.Int
	}{{bob, e18(1)}, {carol, e18(2)}, {bob, e18(3)}, {carol, e18(4)}}
	for i, b := range bids {
		h.clock.now = 1001 + uint64(i)
		_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: b.bidder, Amount: b.amount})
		assert.Nil(t, err)
		rec, _ := h.ledger.Get(id)
		check.True(t, rec.OpenOutcry.Deadline >= last)
		last = rec.OpenOutcry.Deadline
	}
}

func TestEnglish_BidAfterDeadline(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	h.clock.now = 1005
	_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	check.True(t, errors.Is(err, ErrDeadlineReached))
}

func TestEnglish_ClaimBeforeDeadline(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(ClaimRequest{AuctionID: id, Caller: alice})
	check.True(t, errors.Is(err, ErrBeforePhase))
}

func TestEnglish_Cancel(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(CancelRequest{AuctionID: id, Caller: bob})
	check.True(t, errors.Is(err, ErrNotAuctioneer))

	_, err = h.dispatcher.Submit(CancelRequest{AuctionID: id, Caller: alice})
	assert.Nil(t, err)
	check.Equal(t, alice, h.gateway.itemOwner("nft-1"))

	rec, _ := h.ledger.Get(id)
	check.Equal(t, StateCancelled, rec.State)
}

func TestEnglish_CancelWithBids(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	assert.Nil(t, err)

	_, err = h.dispatcher.Submit(CancelRequest{AuctionID: id, Caller: alice})
	check.True(t, errors.Is(err, ErrHasBids))
}

func TestEnglish_NoClaimOnCancelled(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	_, err := h.dispatcher.Submit(CancelRequest{AuctionID: id, Caller: alice})
	assert.Nil(t, err)

	h.clock.now = 1005
	_, err = h.dispatcher.Submit(ClaimRequest{AuctionID: id, Caller: alice})
	check.True(t, errors.Is(err, ErrAlreadyClaimed))
	check.Equal(t, 1, h.gateway.itemReleases("nft-1"))
}

func TestEnglish_EscrowFailureRollsBack(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	h.gateway.failTake = errors.New("gateway down")
	_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	check.True(t, errors.Is(err, ErrEscrowFailed))

	// The transition never happened.
	rec, _ := h.ledger.Get(id)
	check.Equal(t, alice, rec.Winner)
	check.Equal(t, 0, rec.OpenOutcry.HighestBid.Sign())
	check.Equal(t, uint64(1005), rec.OpenOutcry.Deadline)
	check.Equal(t, 0, h.ledger.BidOf(id, bob).Sign())

	// And the auction keeps working once the gateway recovers.
	h.gateway.failTake = nil
	_, err = h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: bob, Amount: e18(1)})
	check.Nil(t, err)
}

func TestEnglish_Conservation(t *testing.T) {
	h := newTestHouse()
	id := h.mustCreate(t, englishCreate())

	// Escrow always equals the leader's tally: only one nonzero entry.
	bids := []struct {
		bidder Principal
		amount *big.Int
	}{
		{bob, e18(1)},
		{carol, tenths(12)},
		{bob, tenths(13)},
		{dave, tenths(15)},
	}
	for i, b := range bids {
		h.clock.now = 1001 + uint64(i)
		_, err := h.dispatcher.Submit(BidRequest{AuctionID: id, Bidder: b.bidder, Amount: b.amount})
		assert.Nil(t, err)

		rec, _ := h.ledger.Get(id)
		total := new(big.Int)
		for _, p := range []Principal{bob, carol, dave} {
			total.Add(total, h.ledger.BidOf(id, p))
		}
		check.Equal(t, 0, h.gateway.escrow("usd").Cmp(total))
		check.Equal(t, 0, rec.AvailableFunds.Cmp(rec.OpenOutcry.HighestBid))
	}
}
