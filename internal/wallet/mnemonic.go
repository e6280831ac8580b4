// Package wallet implements the key-management core of the signer:
// BIP-39 mnemonics, BIP-32 derivation, digest signing and address encoding.
//
// Every function that handles mnemonic text, seeds or private keys works
// on byte slices so the material can be wiped once it is no longer
// needed. Buffers created internally are zeroed on all return paths;
// buffers returned to the caller are the caller's to wipe.
package wallet

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"slices"
	"unicode"

	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"
)

// Mnemonic sizing constants.
const (
	// WordlistSize is the number of words in the BIP-39 dictionary.
	WordlistSize = 2048

	// MaxWordLength is the longest word in the English wordlist.
	MaxWordLength = 8

	// MaxMnemonicWords is the longest supported phrase.
	MaxMnemonicWords = 24

	// DefaultStrength is the entropy size for newly generated mnemonics.
	DefaultStrength = 256

	// ErasedIndex fills every slot of an erased mnemonic index page.
	ErasedIndex = 0xFFFF
)

// wordIndex maps each word to its 0-based position. Lookups with
// string(b) conversions do not allocate, so candidate words never get
// copied into immutable strings.
var wordIndex map[string]uint16

func init() {
	bip39.SetWordList(wordlists.English)
	wordIndex = make(map[string]uint16, len(wordlists.English))
	for i, w := range wordlists.English {
		wordIndex[w] = uint16(i)
	}
}

// Wordlist returns a copy of the 2048-word English BIP-39 dictionary.
func Wordlist() []string {
	return slices.Clone(wordlists.English)
}

// NewEntropy returns strength bits of fresh entropy from the system CSPRNG.
func NewEntropy(strength int) ([]byte, error) {
	if err := CheckStrength(strength); err != nil {
		return nil, err
	}
	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return nil, fmt.Errorf("generate entropy: %w", err)
	}
	return entropy, nil
}

// CheckStrength reports whether strength is a valid entropy size in bits.
func CheckStrength(strength int) error {
	if strength%32 != 0 || strength < 128 || strength > 256 {
		return fmt.Errorf("%w: got %d", ErrInvalidStrength, strength)
	}
	return nil
}

// MnemonicFromEntropy encodes entropy as a space separated BIP-39 phrase.
// The entropy must be 16, 20, 24, 28 or 32 bytes long.
func MnemonicFromEntropy(entropy []byte) ([]byte, error) {
	n := len(entropy)
	if n%4 != 0 || n < 16 || n > 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidEntropyLength, n)
	}

	var bits [33]byte
	defer Zero(bits[:])
	sum := sha256.Sum256(entropy)
	defer Zero(sum[:])

	copy(bits[:], entropy)
	bits[n] = sum[0]

	words := n * 3 / 4
	// Sized for the longest possible phrase so append never reallocates
	// and leaves a stale copy behind.
	out := make([]byte, 0, words*(MaxWordLength+1))
	for i := 0; i < words; i++ {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, wordlists.English[wordAt(bits[:], i)]...)
	}
	return out, nil
}

// MnemonicIndices converts a phrase into its 1-based word indices, the
// persisted form of a mnemonic. Words may be separated by whitespace or
// commas. An unknown word is an error; it is never skipped.
func MnemonicIndices(text []byte) ([]uint16, error) {
	words := splitWords(text)
	if len(words) > MaxMnemonicWords {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWordCount, len(words))
	}

	idx := make([]uint16, 0, len(words))
	for i, w := range words {
		k, ok := lookupWord(w)
		if !ok {
			ZeroIndices(idx)
			return nil, fmt.Errorf("%w: word %d", ErrWordNotInDictionary, i+1)
		}
		idx = append(idx, k+1)
	}
	return idx, nil
}

// MnemonicFromIndices converts 1-based word indices back into a phrase.
// Conversion stops at the first zero index. An empty sequence or an
// erased index page yields ErrNoMnemonic.
func MnemonicFromIndices(idx []uint16) ([]byte, error) {
	if len(idx) == 0 || idx[0] == 0 || IsErasedIndices(idx) {
		return nil, ErrNoMnemonic
	}

	out := make([]byte, 0, len(idx)*(MaxWordLength+1))
	for i, k := range idx {
		if k == 0 {
			break
		}
		if int(k) > WordlistSize {
			Zero(out)
			return nil, fmt.Errorf("%w: index %d at position %d", ErrWordNotInDictionary, k, i+1)
		}
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, wordlists.English[k-1]...)
	}
	return out, nil
}

// IsErasedIndices reports whether idx is the erased page pattern.
func IsErasedIndices(idx []uint16) bool {
	if len(idx) == 0 {
		return false
	}
	for _, k := range idx {
		if k != ErasedIndex {
			return false
		}
	}
	return true
}

// ValidateMnemonic checks the word count, the dictionary membership of
// every word and the BIP-39 checksum of a phrase.
func ValidateMnemonic(text []byte) error {
	var bits [33]byte
	defer Zero(bits[:])
	_, err := decodeMnemonic(text, &bits)
	return err
}

// EntropyFromMnemonic validates a phrase and returns the entropy it encodes.
func EntropyFromMnemonic(text []byte) ([]byte, error) {
	var bits [33]byte
	defer Zero(bits[:])
	n, err := decodeMnemonic(text, &bits)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(bits[:n]), nil
}

// decodeMnemonic unpacks the 11-bit word indices of text into bits and
// verifies the checksum. It returns the entropy length in bytes.
func decodeMnemonic(text []byte, bits *[33]byte) (int, error) {
	words := splitWords(text)
	n := len(words)
	if n != 12 && n != 18 && n != 24 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWordCount, n)
	}

	for i, w := range words {
		k, ok := lookupWord(w)
		if !ok {
			return 0, fmt.Errorf("%w: word %d", ErrWordNotInDictionary, i+1)
		}
		for b := 0; b < 11; b++ {
			if k&(1<<(10-b)) != 0 {
				pos := i*11 + b
				bits[pos/8] |= 1 << (7 - pos%8)
			}
		}
	}

	entLen := n * 4 / 3
	sum := sha256.Sum256(bits[:entLen])
	defer Zero(sum[:])

	// 12, 18 and 24 words carry 4, 6 and 8 checksum bits.
	mask := byte(0xFF << (8 - n/3))
	if sum[0]&mask != bits[entLen]&mask {
		return 0, ErrChecksumMismatch
	}
	return entLen, nil
}

// wordAt extracts the i-th 11-bit group of bits.
func wordAt(bits []byte, i int) uint16 {
	var idx uint16
	for j := 0; j < 11; j++ {
		pos := i*11 + j
		idx <<= 1
		if bits[pos/8]&(1<<(7-pos%8)) != 0 {
			idx |= 1
		}
	}
	return idx
}

// splitWords tokenizes text on whitespace and commas. The returned
// slices alias text.
func splitWords(text []byte) [][]byte {
	return bytes.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func lookupWord(w []byte) (uint16, bool) {
	if len(w) > MaxWordLength {
		return 0, false
	}
	k, ok := wordIndex[string(w)]
	return k, ok
}
