package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingsign/pkg/crypto"
)

// Signing sizes.
const (
	DigestSize    = 32
	SignatureSize = crypto.SignatureSize
	PublicKeySize = 33
)

// SignDigest signs a 32-byte digest with privateKey and returns the
// compact r||s signature together with the compressed public key.
//
// The signature is verified before it is returned; a signature that does
// not verify is reported as ErrSigningFailure and never retried.
func SignDigest(privateKey, digest []byte) (sig [SignatureSize]byte, pub [PublicKeySize]byte, err error) {
	if len(digest) != DigestSize {
		return sig, pub, fmt.Errorf("%w: got %d bytes", ErrInvalidDigestLength, len(digest))
	}
	key, err := crypto.PrivateKeyFromBytes(privateKey)
	if err != nil {
		return sig, pub, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	defer key.Zero()

	sig, err = key.Sign(digest)
	if err != nil {
		return sig, pub, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	copy(pub[:], key.PublicKey())

	if !crypto.VerifySignature(digest, sig[:], pub[:]) {
		return [SignatureSize]byte{}, pub, ErrSigningFailure
	}
	return sig, pub, nil
}

// Sign signs digest with the node's private key.
func (n *HDNode) Sign(digest []byte) ([SignatureSize]byte, [PublicKeySize]byte, error) {
	return SignDigest(n.PrivateKey[:], digest)
}
