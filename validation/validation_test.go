package validation

import (
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/StabilityNexus/hammerhouse/core"
	"github.com/StabilityNexus/hammerhouse/receipts"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func TestValidateFeeSplit(t *testing.T) {
	gross := big.NewInt(1_200_000_000_000_000_000)
	net := big.NewInt(1_188_000_000_000_000_000)
	fee := big.NewInt(12_000_000_000_000_000)
	check.Nil(t, ValidateFeeSplit(gross, net, fee, 100))

	// A shaved treasury cut is caught.
	badFee := new(big.Int).Sub(fee, big.NewInt(1))
	check.NotNil(t, ValidateFeeSplit(gross, net, badFee, 100))
}

func TestValidateCurve_Linear(t *testing.T) {
	sched := &core.DecaySchedule{
		StartPrice:  e18(10),
		MinPrice:    e18(1),
		StartTS:     0,
		Deadline:    100,
		Duration:    100,
		SettlePrice: e18(1),
	}
	tol := decimal.RequireFromString("0.1")
	checks := []CurveCheck{
		{Offset: 0, TolerancePct: tol},
		{Offset: 25, TolerancePct: tol},
		{Offset: 50, TolerancePct: tol},
		{Offset: 75, TolerancePct: tol},
		{Offset: 100, TolerancePct: tol},
	}
	check.Nil(t, ValidateCurve(sched, false, checks))
}

func TestValidateCurve_Exponential(t *testing.T) {
	sched := &core.DecaySchedule{
		StartPrice:  e18(10),
		MinPrice:    e18(1),
		StartTS:     0,
		Deadline:    100,
		Duration:    100,
		DecayFactor: 20_000,
		SettlePrice: e18(1),
	}
	// The lookup + interpolation evaluation stays within 1% of the
	// continuous curve at the contract checkpoints.
	tol := decimal.New(1, 0)
	checks := []CurveCheck{
		{Offset: 0, TolerancePct: tol},
		{Offset: 10, TolerancePct: tol},
		{Offset: 20, TolerancePct: tol},
		{Offset: 30, TolerancePct: tol},
	}
	check.Nil(t, ValidateCurve(sched, true, checks))
}

func TestValidateCurve_CatchesDrift(t *testing.T) {
	// A mid-segment exponential point carries interpolation error; a
	// tolerance below it must fail the check.
	expSched := &core.DecaySchedule{
		StartPrice:  e18(10),
		MinPrice:    e18(1),
		StartTS:     0,
		Deadline:    100,
		Duration:    100,
		DecayFactor: 20_000,
		SettlePrice: e18(1),
	}
	tiny := decimal.RequireFromString("0.0000001")
	err := ValidateCurve(expSched, true, []CurveCheck{{Offset: 13, TolerancePct: tiny}})
	check.NotNil(t, err)
}

func TestVerifyReceipt(t *testing.T) {
	km, err := receipts.NewKeyManager()
	assert.Nil(t, err)
	pemStr, err := km.PublicKeyPEM()
	assert.Nil(t, err)

	signed, err := receipts.Sign(km, &receipts.Receipt{
		AuctionID: 3,
		Kind:      "vickrey",
		Event:     "claimed",
		Winner:    "carol",
		PricePaid: "15000000000000000000",
	})
	assert.Nil(t, err)

	receipt, err := VerifyReceipt(pemStr, base64.StdEncoding.EncodeToString(signed))
	assert.Nil(t, err)
	check.Equal(t, uint64(3), receipt.AuctionID)
	check.Equal(t, "carol", receipt.Winner)

	_, err = VerifyReceipt(pemStr, "not-base64!!!")
	check.NotNil(t, err)
}
