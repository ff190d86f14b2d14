// Package algorand reads market application state and transaction status
// from an algod node over its REST API.
package algorand

import (
	"bytes"
	"crypto/sha512"
	"encoding/base32"
	"fmt"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

const (
	addressLen  = 58
	pubKeyLen   = 32
	checksumLen = 4
)

// ValidateAddress checks that addr is a well-formed Algorand address: 58
// base32 characters decoding to a 32-byte key plus a 4-byte SHA-512/256
// checksum.
func ValidateAddress(addr string) error {
	if len(addr) != addressLen {
		return fmt.Errorf("algorand: address length %d: %w", len(addr), domain.ErrInvalidInput)
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(addr)
	if err != nil {
		return fmt.Errorf("algorand: address encoding: %w", domain.ErrInvalidInput)
	}
	if len(raw) != pubKeyLen+checksumLen {
		return fmt.Errorf("algorand: address decodes to %d bytes: %w", len(raw), domain.ErrInvalidInput)
	}
	sum := sha512.Sum512_256(raw[:pubKeyLen])
	if !bytes.Equal(sum[len(sum)-checksumLen:], raw[pubKeyLen:]) {
		return fmt.Errorf("algorand: address checksum: %w", domain.ErrInvalidInput)
	}
	return nil
}
