package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// NewPublicToken returns an unguessable token for the verification link.
// 128 bits of randomness makes a collision on the unique column negligible.
func NewPublicToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// VerificationURL builds the public link encoded into the stamped QR code.
func VerificationURL(baseURL, token string) string {
	return fmt.Sprintf("%s/verify/%s", strings.TrimRight(baseURL, "/"), token)
}

// ShipmentObjectKeys derives the object-store keys for a shipment. Keys are
// deterministic per business key: reusing a shipment number overwrites the
// previous blobs.
func ShipmentObjectKeys(shipmentNumber string) (original, stamped string) {
	return fmt.Sprintf("shipments/%s/original.pdf", shipmentNumber),
		fmt.Sprintf("shipments/%s/stamped.pdf", shipmentNumber)
}
