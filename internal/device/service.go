// Package device implements the signer's command surface: seeding,
// extended public key export, digest signing, address display, mnemonic
// backup and erase, on top of a persistent master key store.
//
// A Service runs one operation at a time. Master material is loaded from
// the store for each operation and wiped before the call returns.
package device

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingsign/internal/log"
	"github.com/Klingon-tech/klingsign/internal/securestore"
	"github.com/Klingon-tech/klingsign/internal/wallet"
	"github.com/Klingon-tech/klingsign/pkg/crypto"
)

var (
	// ErrSaveFailed is returned when seeded key material could not be
	// persisted.
	ErrSaveFailed = errors.New("problem saving bip32 master key")

	// ErrInvalidHex is returned when a digest is not hexadecimal.
	ErrInvalidHex = errors.New("data must be hexadecimal")
)

// generatedEntropySize is how much entropy is drawn for a new mnemonic;
// the leading strength/8 bytes are used.
const generatedEntropySize = 32

// SeedRequest describes a Seed operation. With an empty Mnemonic a new
// one of Strength bits (default 256) is generated.
type SeedRequest struct {
	Mnemonic   []byte
	Passphrase []byte
	Strength   int
}

// Wipe zeroes the secret fields of the request.
func (r *SeedRequest) Wipe() {
	wallet.ZeroAll(r.Mnemonic, r.Passphrase)
}

// Params holds the network-specific encoding versions.
type Params struct {
	AddressVersion byte
	WIFVersion     byte
	XPubVersion    [4]byte
}

// MainnetParams returns the Bitcoin mainnet encoding versions.
func MainnetParams() Params {
	return Params{
		AddressVersion: 0x00,
		WIFVersion:     0x80,
		XPubVersion:    [4]byte{0x04, 0x88, 0xB2, 0x1E},
	}
}

// TestnetParams returns the Bitcoin testnet encoding versions.
func TestnetParams() Params {
	return Params{
		AddressVersion: 0x6f,
		WIFVersion:     0xef,
		XPubVersion:    [4]byte{0x04, 0x35, 0x87, 0xCF},
	}
}

// EntropySource returns generatedEntropySize bytes of fresh entropy.
type EntropySource func() ([]byte, error)

func systemEntropy() ([]byte, error) {
	return wallet.NewEntropy(generatedEntropySize * 8)
}

// Service is the signer's operation surface.
type Service struct {
	mu       sync.Mutex
	store    securestore.MasterStore
	params   Params
	entropy  EntropySource
	progress wallet.ProgressFunc
}

// Option configures a Service.
type Option func(*Service)

// WithEntropySource replaces the system CSPRNG used for new mnemonics.
func WithEntropySource(src EntropySource) Option {
	return func(s *Service) { s.entropy = src }
}

// WithProgress observes key stretching during Seed. fn is called on the
// goroutine running Seed and must not call back into the Service.
func WithProgress(fn wallet.ProgressFunc) Option {
	return func(s *Service) { s.progress = fn }
}

// New creates a Service backed by store.
func New(store securestore.MasterStore, params Params, opts ...Option) *Service {
	s := &Service{
		store:   store,
		params:  params,
		entropy: systemEntropy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed creates the master key from a mnemonic and passphrase and
// persists master key, chain code and mnemonic. The request is not
// modified; the caller wipes it.
func (s *Service) Seed(req SeedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mnemonic := req.Mnemonic
	if len(mnemonic) == 0 {
		generated, err := s.generateMnemonic(req.Strength)
		if err != nil {
			return err
		}
		defer wallet.Zero(generated)
		mnemonic = generated
	}

	done := log.Benchmark("seed stretching")
	seed, err := wallet.SeedFromMnemonic(mnemonic, req.Passphrase, s.progress)
	done()
	if err != nil {
		return err
	}
	defer wallet.Zero(seed)

	node, err := wallet.NodeFromSeed(seed)
	if err != nil {
		return err
	}
	defer node.Zero()

	idx, err := wallet.MnemonicIndices(mnemonic)
	if err != nil {
		return err
	}
	defer wallet.ZeroIndices(idx)

	if err := s.store.WriteSeed(node.PrivateKey[:], node.ChainCode[:], idx); err != nil {
		log.Device.Error().Err(err).Msg("Failed to store master key")
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	log.Device.Info().Int("words", len(idx)).Msg("Master key seeded")
	return nil
}

func (s *Service) generateMnemonic(strength int) ([]byte, error) {
	if strength == 0 {
		strength = wallet.DefaultStrength
	}
	if err := wallet.CheckStrength(strength); err != nil {
		return nil, err
	}

	entropy, err := s.entropy()
	if err != nil {
		return nil, fmt.Errorf("draw entropy: %w", err)
	}
	defer wallet.Zero(entropy)
	if len(entropy) < strength/8 {
		return nil, fmt.Errorf("entropy source returned %d bytes, need %d", len(entropy), strength/8)
	}
	return wallet.MnemonicFromEntropy(entropy[:strength/8])
}

// XPub returns the serialized extended public key at path.
func (s *Service) XPub(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.deriveNode(path)
	if err != nil {
		return "", err
	}
	defer node.Zero()
	return node.SerializePublic(s.params.XPubVersion[:])
}

// Sign signs a 32-byte digest, given as 64 hex characters, with the key
// at path. It returns the compact r||s signature and the compressed
// public key.
func (s *Service) Sign(hexDigest, path string) ([wallet.SignatureSize]byte, [wallet.PublicKeySize]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sign(hexDigest, path)
}

// SignDER is like Sign but returns the signature DER encoded.
func (s *Service) SignDER(hexDigest, path string) ([]byte, [wallet.PublicKeySize]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, pub, err := s.sign(hexDigest, path)
	if err != nil {
		return nil, pub, err
	}
	der, err := crypto.SignatureToDER(sig[:])
	if err != nil {
		return nil, pub, fmt.Errorf("%w: %v", wallet.ErrSigningFailure, err)
	}
	return der, pub, nil
}

func (s *Service) sign(hexDigest, path string) (sig [wallet.SignatureSize]byte, pub [wallet.PublicKeySize]byte, err error) {
	if len(hexDigest) != wallet.DigestSize*2 {
		return sig, pub, fmt.Errorf("%w: got %d hex characters", wallet.ErrInvalidDigestLength, len(hexDigest))
	}
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return sig, pub, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}

	node, err := s.deriveNode(path)
	if err != nil {
		return sig, pub, err
	}
	defer node.Zero()

	sig, pub, err = node.Sign(digest)
	if err != nil {
		log.Device.Error().Err(err).Msg("Signing failed")
		return sig, pub, err
	}
	log.Device.Debug().Str("path", path).Msg("Digest signed")
	return sig, pub, nil
}

// Address returns the P2PKH address of the key at path.
func (s *Service) Address(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.deriveNode(path)
	if err != nil {
		return "", err
	}
	defer node.Zero()
	return wallet.Address(node.PublicKey[:], s.params.AddressVersion)
}

// ExportWIF returns the private key at path in Wallet Import Format.
func (s *Service) ExportWIF(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.deriveNode(path)
	if err != nil {
		return "", err
	}
	defer node.Zero()

	log.Device.Warn().Str("path", path).Msg("Private key exported")
	return wallet.WIF(node.PrivateKey[:], s.params.WIFVersion)
}

// Mnemonic returns the stored mnemonic phrase. The caller wipes it.
func (s *Service) Mnemonic() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok, err := s.store.ReadMnemonicIndices()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wallet.ErrNoMnemonic
	}
	defer wallet.ZeroIndices(idx)
	return wallet.MnemonicFromIndices(idx)
}

// Erase overwrites the stored key material.
func (s *Service) Erase() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Erase(); err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	log.Device.Info().Msg("Device erased")
	return nil
}

// deriveNode loads the master material and derives the node at path.
// The caller must Zero the returned node.
func (s *Service) deriveNode(path string) (*wallet.HDNode, error) {
	parsed, err := wallet.ParsePath(path)
	if err != nil {
		return nil, err
	}

	priv, chain, ok, err := s.store.ReadMaster()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wallet.ErrMasterKeyNotSet
	}
	defer wallet.ZeroAll(priv, chain)

	node, err := wallet.NodeFromMaster(priv, chain)
	if err != nil {
		return nil, err
	}
	if err := node.DerivePath(parsed); err != nil {
		node.Zero()
		return nil, err
	}
	return node, nil
}
