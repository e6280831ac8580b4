package wallet

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingsign/pkg/crypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip32"
)

// masterHMACKey is the BIP-32 key for master node generation.
var masterHMACKey = []byte("Bitcoin seed")

// HDNode is a node of a BIP-32 key tree. PrivateKey is always a valid,
// non-zero secp256k1 scalar; PublicKey is its compressed point once
// FillPublicKey has run.
//
// Nodes are built per operation and must be wiped with Zero afterwards.
type HDNode struct {
	Depth       uint8
	ChildNum    uint32
	Fingerprint uint32
	ChainCode   [32]byte
	PrivateKey  [32]byte
	PublicKey   [33]byte
}

// NodeFromSeed creates the master node of a seed (16 to 64 bytes).
func NodeFromSeed(seed []byte) (*HDNode, error) {
	if len(seed) < 16 || len(seed) > SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSeedLength, len(seed))
	}

	mac := hmac.New(sha512.New, masterHMACKey)
	mac.Write(seed)
	sum := mac.Sum(nil)
	defer Zero(sum)

	node, err := NodeFromMaster(sum[:32], sum[32:])
	if err != nil {
		return nil, fmt.Errorf("create master node: %w", err)
	}
	return node, nil
}

// NodeFromMaster creates a depth-0 node from a persisted master private
// key and chain code.
func NodeFromMaster(privateKey, chainCode []byte) (*HDNode, error) {
	if len(privateKey) != 32 || !validScalar(privateKey) {
		return nil, ErrInvalidPrivateKey
	}
	if len(chainCode) != 32 {
		return nil, fmt.Errorf("chain code must be 32 bytes, got %d", len(chainCode))
	}

	node := &HDNode{}
	copy(node.PrivateKey[:], privateKey)
	copy(node.ChainCode[:], chainCode)
	node.FillPublicKey()
	return node, nil
}

// FillPublicKey recomputes the compressed public key from the private key.
func (n *HDNode) FillPublicKey() {
	priv := secp256k1.PrivKeyFromBytes(n.PrivateKey[:])
	defer priv.Zero()
	copy(n.PublicKey[:], priv.PubKey().SerializeCompressed())
}

// DerivePath walks path from n, replacing n with each child in turn.
// On error n is left at the last successfully derived node.
func (n *HDNode) DerivePath(path Path) error {
	if int(n.Depth)+len(path) > maxPathDepth {
		return fmt.Errorf("%w: depth exceeds %d", ErrInvalidPath, maxPathDepth)
	}
	for _, c := range path {
		if err := n.DeriveChild(c.Index, c.Hardened); err != nil {
			return err
		}
	}
	return nil
}

// DeriveChild replaces n with its child at index. A hardened child mixes
// the parent private key into the HMAC instead of the public key.
//
// If the tweak is not below the curve order or the child key is zero,
// ErrInvalidChildKey is returned and n is unchanged. BIP-32 says to move
// on to the next index; that is left to the caller because doing it here
// would silently change which key a path refers to.
func (n *HDNode) DeriveChild(index uint32, hardened bool) error {
	if index >= HardenedOffset {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
	}
	if n.Depth == maxPathDepth {
		return fmt.Errorf("%w: depth exceeds %d", ErrInvalidPath, maxPathDepth)
	}

	var data [37]byte
	defer Zero(data[:])
	childNum := index
	if hardened {
		childNum |= HardenedOffset
		copy(data[1:33], n.PrivateKey[:])
	} else {
		n.FillPublicKey()
		copy(data[:33], n.PublicKey[:])
	}
	binary.BigEndian.PutUint32(data[33:], childNum)

	mac := hmac.New(sha512.New, n.ChainCode[:])
	mac.Write(data[:])
	sum := mac.Sum(nil)
	defer Zero(sum)

	var tweak, parent secp256k1.ModNScalar
	defer tweak.Zero()
	defer parent.Zero()
	if overflow := tweak.SetByteSlice(sum[:32]); overflow {
		return fmt.Errorf("%w: index %d", ErrInvalidChildKey, childNum)
	}
	parent.SetBytes(&n.PrivateKey)
	tweak.Add(&parent)
	if tweak.IsZero() {
		return fmt.Errorf("%w: index %d", ErrInvalidChildKey, childNum)
	}

	n.FillPublicKey()
	fingerprint := n.fingerprint()

	tweak.PutBytes(&n.PrivateKey)
	copy(n.ChainCode[:], sum[32:])
	n.Depth++
	n.ChildNum = childNum
	n.Fingerprint = fingerprint
	n.FillPublicKey()
	return nil
}

// SerializePublic encodes the node as a base58check extended public key
// (xpub) using the given 4-byte version.
func (n *HDNode) SerializePublic(version []byte) (string, error) {
	if len(version) != 4 {
		return "", fmt.Errorf("extended key version must be 4 bytes, got %d", len(version))
	}
	n.FillPublicKey()

	key := &bip32.Key{
		Version:     version,
		Depth:       n.Depth,
		ChildNumber: uint32Bytes(n.ChildNum),
		FingerPrint: uint32Bytes(n.Fingerprint),
		ChainCode:   n.ChainCode[:],
		Key:         n.PublicKey[:],
		IsPrivate:   false,
	}
	xpub := key.B58Serialize()
	if xpub == "" {
		return "", fmt.Errorf("serialize extended public key")
	}
	return xpub, nil
}

// Zero wipes the node.
func (n *HDNode) Zero() {
	*n = HDNode{}
}

// fingerprint returns the first four bytes of the hash160 of the node's
// public key, the parent fingerprint of its children.
func (n *HDNode) fingerprint() uint32 {
	h := crypto.Hash160(n.PublicKey[:])
	return binary.BigEndian.Uint32(h[:4])
}

// validScalar reports whether b is a non-zero scalar below the curve order.
func validScalar(b []byte) bool {
	var s secp256k1.ModNScalar
	defer s.Zero()
	overflow := s.SetByteSlice(b)
	return !overflow && !s.IsZero()
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
