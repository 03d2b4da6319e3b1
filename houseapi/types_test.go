package houseapi

import (
	"math/big"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/StabilityNexus/hammerhouse/core"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1200000000000000000")
	assert.Nil(t, err)
	check.Equal(t, 0, v.Cmp(big.NewInt(1_200_000_000_000_000_000)))

	v, err = ParseAmount("")
	assert.Nil(t, err)
	check.Nil(t, v)

	_, err = ParseAmount("1.2")
	check.NotNil(t, err)

	_, err = ParseAmount("-5")
	check.NotNil(t, err)
}

func TestFormatUnits(t *testing.T) {
	check.Equal(t, "1.2", FormatUnits(big.NewInt(1_200_000_000_000_000_000)))
	check.Equal(t, "0.001", FormatUnits(big.NewInt(1_000_000_000_000_000)))
	check.Equal(t, "0", FormatUnits(nil))

	twenty := new(big.Int).Mul(big.NewInt(20), big.NewInt(1_000_000_000_000_000_000))
	check.Equal(t, "20", FormatUnits(twenty))
}

func TestRequestToCore_Create(t *testing.T) {
	req := Request{
		Type:       TypeCreate,
		Kind:       "english",
		Name:       "lot-1",
		AssetKind:  "unique",
		Asset:      "nft-1",
		IDOrAmount: "7",
		PayAsset:   "usd",
		Params: &CreateParams{
			StartingBid:       "1000000000000000000",
			MinBidDelta:       "100000000000000000",
			Duration:          5,
			DeadlineExtension: 10,
		},
	}
	out, err := req.ToCore("alice")
	assert.Nil(t, err)

	create, ok := out.(core.CreateRequest)
	assert.True(t, ok)
	check.Equal(t, core.KindEnglish, create.Kind)
	check.Equal(t, core.Principal("alice"), create.Auctioneer)
	check.Equal(t, 0, create.Params.StartingBid.Cmp(big.NewInt(1_000_000_000_000_000_000)))
}

func TestRequestToCore_BadInputs(t *testing.T) {
	_, err := (&Request{Type: "warp"}).ToCore("alice")
	check.NotNil(t, err)

	_, err = (&Request{Type: TypeCreate, Kind: "dutch-ish"}).ToCore("alice")
	check.NotNil(t, err)

	_, err = (&Request{Type: TypeCommitBid, Commitment: "abcd"}).ToCore("bob")
	check.NotNil(t, err)

	_, err = (&Request{Type: TypeRevealBid, Salt: "00"}).ToCore("bob")
	check.NotNil(t, err)
}

func TestRequestToCore_SealedRoundTrip(t *testing.T) {
	salt := "00000000000000000000000000000000000000000000000000000000000000ff"
	req := Request{Type: TypeRevealBid, AuctionID: 3, Amount: "5", Salt: salt}
	out, err := req.ToCore("bob")
	assert.Nil(t, err)

	reveal, ok := out.(core.RevealBidRequest)
	assert.True(t, ok)
	check.Equal(t, uint64(3), reveal.AuctionID)
	check.Equal(t, byte(0xff), reveal.Salt[31])
}

func TestWrapEvents(t *testing.T) {
	events := []core.Event{
		core.Claimed{AuctionID: 1, Winner: "bob", Asset: "nft-1", IDOrAmount: big.NewInt(7)},
	}
	wrapped, err := WrapEvents(events)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(wrapped))
	check.Equal(t, "claimed", wrapped[0].Name)
	check.NotEqual(t, "", wrapped[0].ID)
}

func TestViewRecord_RendersLiveAsk(t *testing.T) {
	rec := &core.AuctionRecord{
		ID:             9,
		Kind:           core.KindLinearReverseDutch,
		Name:           "lot-lin",
		AssetKind:      core.AssetUnique,
		Auctioneer:     "alice",
		Item:           core.AssetRef{Asset: "nft-1", IDOrAmount: big.NewInt(7)},
		PayAsset:       "usd",
		Winner:         "alice",
		AvailableFunds: new(big.Int),
		Decay: &core.DecaySchedule{
			StartPrice:  big.NewInt(10),
			MinPrice:    big.NewInt(0),
			StartTS:     0,
			Deadline:    100,
			Duration:    100,
			SettlePrice: big.NewInt(0),
		},
	}
	view := ViewRecord(rec, 50)
	assert.NotNil(t, view.Schedule)
	check.Equal(t, "5", view.Schedule.CurrentPrice)
	check.Equal(t, "linear_reverse_dutch", view.Kind)
}
