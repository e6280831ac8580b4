package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingsign/pkg/crypto"
	"github.com/btcsuite/btcutil/base58"
)

// Public key encoding tags.
const (
	pubKeyUncompressed = 0x04
	pubKeyInfinity     = 0x00

	compressedKeyMarker = 0x01
)

// PubKeyHash returns RIPEMD-160(SHA-256(pub)) for a public key in
// compressed (33 bytes), uncompressed (65 bytes, tag 0x04) or
// point-at-infinity (single 0x00 byte) form.
func PubKeyHash(pub []byte) ([20]byte, error) {
	var out [20]byte
	if len(pub) == 0 {
		return out, ErrInvalidPublicKey
	}

	var n int
	switch pub[0] {
	case pubKeyUncompressed:
		n = 65
	case pubKeyInfinity:
		n = 1
	default:
		n = 33
	}
	if len(pub) < n {
		return out, fmt.Errorf("%w: tag 0x%02x needs %d bytes, got %d", ErrInvalidPublicKey, pub[0], n, len(pub))
	}
	return crypto.Hash160(pub[:n]), nil
}

// Address returns the base58check P2PKH address of pub for the given
// version byte.
func Address(pub []byte, version byte) (string, error) {
	h, err := PubKeyHash(pub)
	if err != nil {
		return "", err
	}
	return base58.CheckEncode(h[:], version), nil
}

// WIF encodes a private key in Wallet Import Format with the compressed
// public key marker. The result is a Go string and cannot be wiped, so it
// should only be produced on explicit export.
func WIF(privateKey []byte, version byte) (string, error) {
	if len(privateKey) != 32 || !validScalar(privateKey) {
		return "", ErrInvalidPrivateKey
	}
	payload := make([]byte, 0, 33)
	payload = append(payload, privateKey...)
	payload = append(payload, compressedKeyMarker)
	defer Zero(payload)
	return base58.CheckEncode(payload, version), nil
}
