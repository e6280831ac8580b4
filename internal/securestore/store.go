// Package securestore persists the master key material of the signer.
//
// Three fixed-size pages are kept: the 32-byte master private key, the
// 32-byte chain code and a 64-byte page of little-endian mnemonic word
// indices. A page filled with 0xFF is the erased state and reads back as
// unset. Every stored record carries a BLAKE3 integrity tag, and pages can
// be sealed with a store password.
package securestore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingsign/internal/log"
	"github.com/Klingon-tech/klingsign/internal/storage"
	"github.com/Klingon-tech/klingsign/internal/wallet"
	"github.com/Klingon-tech/klingsign/pkg/crypto"
)

// Page sizes.
const (
	MasterPageSize    = 32
	ChainCodePageSize = 32
	MnemonicPageSize  = 64

	// MnemonicSlots is the number of uint16 indices a mnemonic page holds.
	MnemonicSlots = MnemonicPageSize / 2
)

// Record keys.
var (
	keyMaster    = []byte("master")
	keyChainCode = []byte("chaincode")
	keyMnemonic  = []byte("mnemonic")
)

// Record formats.
const (
	formatPlain  byte = 0x00
	formatSealed byte = 0x01
)

var (
	// ErrCorrupt is returned when a stored record fails its integrity
	// check or has an impossible layout.
	ErrCorrupt = errors.New("stored key material is corrupt")

	// ErrVerifyFailed is returned when a page read back after a write
	// differs from what was written.
	ErrVerifyFailed = errors.New("stored key material failed verification")

	// ErrPasswordRequired is returned when a sealed page is read by a
	// store opened without a password.
	ErrPasswordRequired = errors.New("stored key material is encrypted")
)

// MasterStore is the persistent home of the master key material.
//
// Read methods report ok=false when the material was never written or
// has been erased. Returned buffers belong to the caller, who must wipe
// them.
type MasterStore interface {
	ReadMaster() (priv, chain []byte, ok bool, err error)
	ReadMnemonicIndices() (idx []uint16, ok bool, err error)
	// WriteSeed replaces the master key, chain code and mnemonic
	// indices together: either all three pages change or none does.
	WriteSeed(priv, chain []byte, idx []uint16) error
	Erase() error
}

// Store implements MasterStore on top of a key-value database.
type Store struct {
	db       storage.DB
	password []byte
	params   wallet.EncryptionParams
}

var _ MasterStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPassword seals every page written by the store with password.
// Pages written without a password remain readable.
func WithPassword(password []byte, params wallet.EncryptionParams) Option {
	return func(s *Store) {
		s.password = bytes.Clone(password)
		s.params = params
	}
}

// New creates a Store backed by db.
func New(db storage.DB, opts ...Option) *Store {
	s := &Store{db: db, params: wallet.DefaultParams()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close wipes the store password. The database is owned by the caller.
func (s *Store) Close() {
	wallet.Zero(s.password)
	s.password = nil
}

// ReadMaster returns the master private key and chain code.
func (s *Store) ReadMaster() (priv, chain []byte, ok bool, err error) {
	priv, okPriv, err := s.readPage(keyMaster, MasterPageSize)
	if err != nil {
		return nil, nil, false, err
	}
	chain, okChain, err := s.readPage(keyChainCode, ChainCodePageSize)
	if err != nil {
		wallet.Zero(priv)
		return nil, nil, false, err
	}

	if okPriv != okChain {
		wallet.ZeroAll(priv, chain)
		return nil, nil, false, fmt.Errorf("%w: master key and chain code out of sync", ErrCorrupt)
	}
	if !okPriv {
		return nil, nil, false, nil
	}
	return priv, chain, true, nil
}

// ReadMnemonicIndices returns the persisted 1-based word indices up to
// the first zero slot.
func (s *Store) ReadMnemonicIndices() ([]uint16, bool, error) {
	page, ok, err := s.readPage(keyMnemonic, MnemonicPageSize)
	if err != nil || !ok {
		return nil, false, err
	}
	defer wallet.Zero(page)

	idx := make([]uint16, 0, MnemonicSlots)
	for i := 0; i < MnemonicSlots; i++ {
		k := binary.LittleEndian.Uint16(page[i*2:])
		if k == 0 {
			break
		}
		idx = append(idx, k)
	}
	if len(idx) == 0 {
		return nil, false, nil
	}
	return idx, true, nil
}

// WriteSeed atomically replaces the master private key, chain code and
// up to MnemonicSlots word indices. Unused index slots are zero.
func (s *Store) WriteSeed(priv, chain []byte, idx []uint16) error {
	if len(priv) != MasterPageSize {
		return fmt.Errorf("master key must be %d bytes, got %d", MasterPageSize, len(priv))
	}
	if len(chain) != ChainCodePageSize {
		return fmt.Errorf("chain code must be %d bytes, got %d", ChainCodePageSize, len(chain))
	}
	if len(idx) > MnemonicSlots {
		return fmt.Errorf("mnemonic has %d words, page holds %d", len(idx), MnemonicSlots)
	}

	page := make([]byte, MnemonicPageSize)
	defer wallet.Zero(page)
	for i, k := range idx {
		binary.LittleEndian.PutUint16(page[i*2:], k)
	}

	err := s.writePages(map[string][]byte{
		string(keyMaster):    priv,
		string(keyChainCode): chain,
		string(keyMnemonic):  page,
	})
	if err != nil {
		return fmt.Errorf("write seed: %w", err)
	}
	log.Storage.Debug().Int("words", len(idx)).Msg("Master key and mnemonic written")
	return nil
}

// Erase overwrites every page with the erased pattern.
func (s *Store) Erase() error {
	b := s.newBatch()
	defer b.Discard()
	pages := []struct {
		key  []byte
		size int
	}{
		{keyMaster, MasterPageSize},
		{keyChainCode, ChainCodePageSize},
		{keyMnemonic, MnemonicPageSize},
	}
	for _, p := range pages {
		if err := b.Put(p.key, encodeRecord(formatPlain, erasedPage(p.size))); err != nil {
			return fmt.Errorf("erase %s: %w", p.key, err)
		}
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	log.Storage.Info().Msg("Key material erased")
	return nil
}

// PageState is the stored state of a page.
type PageState int

const (
	PageMissing PageState = iota // never written
	PageErased                   // holds the erased pattern
	PageSet                      // holds key material
)

// String returns missing, erased or set.
func (p PageState) String() string {
	switch p {
	case PageErased:
		return "erased"
	case PageSet:
		return "set"
	default:
		return "missing"
	}
}

// PageInfo describes a stored page without exposing its contents.
type PageInfo struct {
	Name   string
	State  PageState
	Sealed bool
}

// Inspect reports the state of every page. It needs no password: sealed
// pages are reported as set, since only plain pages can hold the erased
// pattern.
func (s *Store) Inspect() ([]PageInfo, error) {
	keys := [][]byte{keyMaster, keyChainCode, keyMnemonic}
	out := make([]PageInfo, 0, len(keys))
	for _, key := range keys {
		info := PageInfo{Name: string(key)}
		ok, err := s.db.Has(key)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", key, err)
		}
		if ok {
			if err := s.inspectRecord(key, &info); err != nil {
				return nil, err
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Store) inspectRecord(key []byte, info *PageInfo) error {
	rec, err := s.db.Get(key)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", key, err)
	}
	defer wallet.Zero(rec)

	format, body, err := decodeRecord(rec)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", key, err)
	}
	switch {
	case format == formatSealed:
		info.State, info.Sealed = PageSet, true
	case isErased(body):
		info.State = PageErased
	default:
		info.State = PageSet
	}
	return nil
}

// readPage loads and checks one page. A missing or erased page reports
// ok=false.
func (s *Store) readPage(key []byte, size int) ([]byte, bool, error) {
	rec, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	defer wallet.Zero(rec)

	format, body, err := decodeRecord(rec)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}

	var page []byte
	switch format {
	case formatPlain:
		page = bytes.Clone(body)
	case formatSealed:
		if len(s.password) == 0 {
			return nil, false, fmt.Errorf("read %s: %w", key, ErrPasswordRequired)
		}
		page, err = wallet.Decrypt(body, s.password, key)
		if err != nil {
			return nil, false, fmt.Errorf("read %s: %w", key, err)
		}
	default:
		return nil, false, fmt.Errorf("read %s: %w: unknown format 0x%02x", key, ErrCorrupt, format)
	}

	if len(page) != size {
		wallet.Zero(page)
		return nil, false, fmt.Errorf("read %s: %w: page is %d bytes, want %d", key, ErrCorrupt, len(page), size)
	}
	if isErased(page) {
		wallet.Zero(page)
		return nil, false, nil
	}
	return page, true, nil
}

// writePages commits pages in one batch and reads them back.
func (s *Store) writePages(pages map[string][]byte) error {
	b := s.newBatch()
	defer b.Discard()
	for key, page := range pages {
		rec, err := s.sealPage([]byte(key), page)
		if err != nil {
			return err
		}
		err = b.Put([]byte(key), rec)
		wallet.Zero(rec)
		if err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return err
	}

	for key, page := range pages {
		got, ok, err := s.readPage([]byte(key), len(page))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
		}
		match := ok && bytes.Equal(got, page)
		wallet.Zero(got)
		if !match {
			return fmt.Errorf("%w: %s", ErrVerifyFailed, key)
		}
	}
	return nil
}

func (s *Store) sealPage(key, page []byte) ([]byte, error) {
	if len(s.password) == 0 {
		return encodeRecord(formatPlain, page), nil
	}
	sealed, err := wallet.Encrypt(page, s.password, key, s.params)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", key, err)
	}
	return encodeRecord(formatSealed, sealed), nil
}

func (s *Store) newBatch() storage.Batch {
	if b, ok := s.db.(storage.Batcher); ok {
		return b.NewBatch()
	}
	return storage.NewPrefixDB(s.db, nil).NewBatch()
}

// encodeRecord lays out format || body || tag(format || body).
func encodeRecord(format byte, body []byte) []byte {
	rec := make([]byte, 0, 1+len(body)+crypto.TagSize)
	rec = append(rec, format)
	rec = append(rec, body...)
	tag := crypto.Tag(rec)
	return append(rec, tag[:]...)
}

// decodeRecord checks the integrity tag and splits a record. The body
// aliases rec.
func decodeRecord(rec []byte) (byte, []byte, error) {
	if len(rec) < 1+crypto.TagSize {
		return 0, nil, fmt.Errorf("%w: record is %d bytes", ErrCorrupt, len(rec))
	}
	n := len(rec) - crypto.TagSize
	want := crypto.Tag(rec[:n])
	if !bytes.Equal(want[:], rec[n:]) {
		return 0, nil, fmt.Errorf("%w: integrity tag mismatch", ErrCorrupt)
	}
	return rec[0], rec[1:n], nil
}

func erasedPage(size int) []byte {
	return bytes.Repeat([]byte{0xFF}, size)
}

func isErased(page []byte) bool {
	for _, b := range page {
		if b != 0xFF {
			return false
		}
	}
	return true
}
