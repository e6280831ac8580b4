package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignatureSize is the length of a compact r||s signature.
const SignatureSize = 64

// PrivateKey wraps a secp256k1 private key for ECDSA signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret. The
// secret must be a non-zero scalar below the curve order.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	var s secp256k1.ModNScalar
	defer s.Zero()
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, errors.New("private key is not a valid scalar")
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// Sign produces a deterministic (RFC 6979) low-S ECDSA signature over a
// 32-byte hash, returned as r||s.
func (pk *PrivateKey) Sign(hash []byte) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte
	if len(hash) != 32 {
		return sig, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	// The compact form is a recovery byte followed by r and s.
	compact := ecdsa.SignCompact(pk.key, hash, true)
	if len(compact) != SignatureSize+1 {
		return sig, fmt.Errorf("ecdsa sign: unexpected signature length %d", len(compact))
	}
	copy(sig[:], compact[1:])
	return sig, nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a compact r||s signature against a 32-byte hash
// and a compressed or uncompressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := parseCompact(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// SignatureToDER converts a compact r||s signature into its DER encoding.
func SignatureToDER(signature []byte) ([]byte, error) {
	sig, err := parseCompact(signature)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

func parseCompact(signature []byte) (*ecdsa.Signature, error) {
	if len(signature) != SignatureSize {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(signature))
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow || r.IsZero() {
		return nil, errors.New("signature r is out of range")
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow || s.IsZero() {
		return nil, errors.New("signature s is out of range")
	}
	return ecdsa.NewSignature(&r, &s), nil
}
