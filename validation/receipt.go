// Package validation verifies auction house outputs offline: signed
// settlement receipts, fee arithmetic, and the reverse-Dutch price
// curves against their ideal form.
package validation

import (
	"encoding/base64"
	"fmt"

	"github.com/StabilityNexus/hammerhouse/receipts"
)

// VerifyReceipt checks a base64-encoded COSE_Sign1 receipt against the
// house's PEM-encoded public key and returns the embedded receipt.
func VerifyReceipt(publicKeyPEM, receiptB64 string) (*receipts.Receipt, error) {
	pub, err := receipts.ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	coseBytes, err := base64.StdEncoding.DecodeString(receiptB64)
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	receipt, err := receipts.Verify(pub, coseBytes)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
