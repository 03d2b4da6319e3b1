package receipts

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	cose "github.com/veraison/go-cose"

	"github.com/StabilityNexus/hammerhouse/core"
)

// Receipt is the settlement outcome embedded in a signed envelope.
// Amounts are base-unit decimal strings so the CBOR payload stays
// language-neutral.
type Receipt struct {
	AuctionID uint64 `cbor:"auction_id" json:"auction_id"`
	Kind      string `cbor:"kind" json:"kind"`
	Event     string `cbor:"event" json:"event"`
	Winner    string `cbor:"winner,omitempty" json:"winner,omitempty"`
	PricePaid string `cbor:"price_paid,omitempty" json:"price_paid,omitempty"`
	Gross     string `cbor:"gross,omitempty" json:"gross,omitempty"`
	Net       string `cbor:"net,omitempty" json:"net,omitempty"`
	FeePaid   string `cbor:"fee_paid,omitempty" json:"fee_paid,omitempty"`
	Timestamp uint64 `cbor:"timestamp" json:"timestamp"`
}

// FromEvent builds a receipt for the settlement events; non-settlement
// events return nil.
func FromEvent(ev core.Event, kind core.AuctionKind, now uint64) *Receipt {
	switch e := ev.(type) {
	case core.Claimed:
		r := &Receipt{
			AuctionID: e.AuctionID,
			Kind:      kind.String(),
			Event:     e.EventName(),
			Winner:    string(e.Winner),
			Timestamp: now,
		}
		if e.PricePaid != nil {
			r.PricePaid = e.PricePaid.String()
		}
		return r
	case core.Withdrawn:
		return &Receipt{
			AuctionID: e.AuctionID,
			Kind:      kind.String(),
			Event:     e.EventName(),
			Gross:     e.Gross.String(),
			Net:       e.Net.String(),
			FeePaid:   e.FeePaid.String(),
			Timestamp: now,
		}
	}
	return nil
}

// Sign wraps a receipt in a COSE_Sign1 envelope (ES256) and returns the
// CBOR bytes.
func Sign(km *KeyManager, receipt *Receipt) ([]byte, error) {
	payload, err := cbor.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("encode receipt payload: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, km.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}
	return msg.MarshalCBOR()
}

// Verify checks a COSE_Sign1 receipt envelope against the house key and
// returns the embedded receipt.
func Verify(pub *ecdsa.PublicKey, coseBytes []byte) (*Receipt, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return nil, fmt.Errorf("parse COSE envelope: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("receipt signature verification failed: %w", err)
	}

	var receipt Receipt
	if err := cbor.Unmarshal(msg.Payload, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	return &receipt, nil
}
