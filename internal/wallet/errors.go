package wallet

import "errors"

// Validation and derivation errors. Callers match them with errors.Is;
// most are returned wrapped with additional context.
var (
	ErrInvalidEntropyLength        = errors.New("entropy length must be a multiple of 4 bytes between 16 and 32")
	ErrInvalidWordCount            = errors.New("mnemonic must have 12, 18, or 24 words")
	ErrWordNotInDictionary         = errors.New("word not in bip39 wordlist")
	ErrChecksumMismatch            = errors.New("invalid mnemonic: checksum error")
	ErrNoMnemonic                  = errors.New("no mnemonic")
	ErrInvalidStrength             = errors.New("strength must be a multiple of 32 between 128 and 256")
	ErrInvalidSeedLength           = errors.New("invalid seed length")
	ErrInvalidPrivateKey           = errors.New("invalid private key")
	ErrInvalidPath                 = errors.New("invalid key path")
	ErrInvalidChildKey             = errors.New("derived key is invalid")
	ErrMasterKeyNotSet             = errors.New("a bip32 master private key is not set")
	ErrInvalidDigestLength         = errors.New("digest must be 32 bytes")
	ErrSigningFailure              = errors.New("could not sign data")
	ErrInvalidPublicKey            = errors.New("invalid public key")
	ErrSerializationBufferTooSmall = errors.New("serialization buffer too small")
)
