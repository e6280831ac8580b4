package wallet

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SeedSize is the length of a derived seed in bytes (512 bits).
	SeedSize = 64

	// PBKDF2Rounds is the BIP-39 key stretching iteration count.
	PBKDF2Rounds = 2048

	// progressInterval is how many rounds pass between progress reports.
	progressInterval = 256

	saltPrefix = "mnemonic"
)

// ProgressFunc observes key stretching. It is called synchronously from
// within SeedFromMnemonic and must not re-enter the wallet.
type ProgressFunc func(current, total uint32)

// SeedFromMnemonic derives a 512-bit seed from a mnemonic and optional
// passphrase using PBKDF2-HMAC-SHA512 as specified in BIP-39.
// The phrase is stretched in its canonical single-space form, so any
// separators accepted by ValidateMnemonic yield the same seed.
// progress may be nil. The caller owns the returned seed and must wipe it.
func SeedFromMnemonic(mnemonic, passphrase []byte, progress ProgressFunc) ([]byte, error) {
	canonical, err := canonicalMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	defer Zero(canonical)

	salt := make([]byte, 0, len(saltPrefix)+len(passphrase))
	salt = append(salt, saltPrefix...)
	salt = append(salt, passphrase...)
	defer Zero(salt)

	if progress == nil {
		return pbkdf2.Key(canonical, salt, PBKDF2Rounds, SeedSize, sha512.New), nil
	}
	return stretch(canonical, salt, progress), nil
}

// canonicalMnemonic validates text and re-encodes the entropy it carries
// as a single-space separated phrase.
func canonicalMnemonic(text []byte) ([]byte, error) {
	entropy, err := EntropyFromMnemonic(text)
	if err != nil {
		return nil, err
	}
	defer Zero(entropy)
	return MnemonicFromEntropy(entropy)
}

// stretch computes the single-block PBKDF2-HMAC-SHA512 output, reporting
// progress every progressInterval rounds. A SHA-512 block is exactly
// SeedSize bytes so only block 1 is needed.
func stretch(password, salt []byte, progress ProgressFunc) []byte {
	mac := hmac.New(sha512.New, password)
	mac.Write(salt)
	mac.Write([]byte{0, 0, 0, 1})

	u := mac.Sum(nil)
	defer Zero(u)
	out := make([]byte, SeedSize)
	copy(out, u)

	for round := uint32(2); round <= PBKDF2Rounds; round++ {
		mac.Reset()
		mac.Write(u)
		u = mac.Sum(u[:0])
		for i := range out {
			out[i] ^= u[i]
		}
		if round%progressInterval == 0 {
			progress(round, PBKDF2Rounds)
		}
	}
	return out
}
