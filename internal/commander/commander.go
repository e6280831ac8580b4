package commander

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingsign/internal/device"
	"github.com/Klingon-tech/klingsign/internal/log"
	"github.com/Klingon-tech/klingsign/internal/securestore"
	"github.com/Klingon-tech/klingsign/internal/wallet"
)

// Command names.
const (
	CmdSeed    = "seed"
	CmdXPub    = "xpub"
	CmdSign    = "sign"
	CmdPubKey  = "pubkey"
	CmdAddress = "address"
	CmdBackup  = "backup"
	CmdErase   = "erase"
)

// Wallet is the operation surface the commander drives.
type Wallet interface {
	Seed(req device.SeedRequest) error
	XPub(path string) (string, error)
	Sign(hexDigest, path string) ([wallet.SignatureSize]byte, [wallet.PublicKeySize]byte, error)
	SignDER(hexDigest, path string) ([]byte, [wallet.PublicKeySize]byte, error)
	Address(path string) (string, error)
	Mnemonic() ([]byte, error)
	Erase() error
}

// Commander parses JSON command objects and runs them against a Wallet.
type Commander struct {
	wallet  Wallet
	bufSize int
}

// New creates a Commander. bufSize bounds the rendered reply of Dispatch;
// a non-positive value selects DefaultBufferSize.
func New(w Wallet, bufSize int) *Commander {
	return &Commander{wallet: w, bufSize: bufSize}
}

// Dispatch runs every command of a JSON object such as
// {"xpub": "m/0'"} and returns the rendered reports.
func (c *Commander) Dispatch(input []byte) ([]byte, error) {
	buf := NewBuffer(c.bufSize)
	c.Execute(input, buf)
	return buf.JSON(), buf.Err()
}

// Execute runs every command of a JSON object, in order, filling r with
// the results.
func (c *Commander) Execute(input []byte, r Reporter) {
	dec := json.NewDecoder(bytes.NewReader(input))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		r.Fill("input", "JSON parse error.", StatusError)
		return
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			r.Fill("input", "JSON parse error.", StatusError)
			return
		}
		cmd, _ := tok.(string)

		var arg json.RawMessage
		if err := dec.Decode(&arg); err != nil {
			r.Fill("input", "JSON parse error.", StatusError)
			return
		}
		c.run(cmd, arg, r)
		wallet.Zero(arg)
	}
}

func (c *Commander) run(cmd string, arg json.RawMessage, r Reporter) {
	log.Commander.Debug().Str("cmd", cmd).Msg("Command received")

	switch cmd {
	case CmdSeed:
		c.seed(arg, r)
	case CmdXPub:
		c.xpub(arg, r)
	case CmdSign:
		c.sign(arg, r)
	case CmdAddress:
		c.address(arg, r)
	case CmdBackup:
		c.backup(r)
	case CmdErase:
		if err := c.wallet.Erase(); err != nil {
			fail(r, CmdErase, err)
			return
		}
		r.Fill(CmdErase, "success", StatusSuccess)
	default:
		r.Fill(cmd, "Command not recognized.", StatusError)
	}
}

type seedArgs struct {
	Mnemonic   json.RawMessage `json:"mnemonic"`
	Passphrase json.RawMessage `json:"passphrase"`
	Salt       json.RawMessage `json:"salt"`
	Strength   int             `json:"strength"`
}

func (c *Commander) seed(arg json.RawMessage, r Reporter) {
	var args seedArgs
	if err := json.Unmarshal(arg, &args); err != nil {
		r.Fill(CmdSeed, "JSON parse error.", StatusError)
		return
	}
	defer wallet.ZeroAll(args.Mnemonic, args.Passphrase, args.Salt)

	req := device.SeedRequest{Strength: args.Strength}
	defer req.Wipe()

	var err error
	if req.Mnemonic, err = secretString(args.Mnemonic); err != nil {
		r.Fill(CmdSeed, "JSON parse error.", StatusError)
		return
	}
	pass := args.Passphrase
	if len(pass) == 0 {
		pass = args.Salt
	}
	if req.Passphrase, err = secretString(pass); err != nil {
		r.Fill(CmdSeed, "JSON parse error.", StatusError)
		return
	}
	if string(bytes.TrimSpace(args.Mnemonic)) == `""` {
		r.Fill(CmdSeed, "Empty mnemonic.", StatusError)
		return
	}

	if err := c.wallet.Seed(req); err != nil {
		fail(r, CmdSeed, err)
		return
	}
	r.Fill(CmdSeed, "success", StatusSuccess)
}

func (c *Commander) xpub(arg json.RawMessage, r Reporter) {
	var path string
	if err := json.Unmarshal(arg, &path); err != nil {
		r.Fill(CmdXPub, "JSON parse error.", StatusError)
		return
	}
	xpub, err := c.wallet.XPub(path)
	if err != nil {
		fail(r, CmdXPub, err)
		return
	}
	r.Fill(CmdXPub, xpub, StatusSuccess)
}

type signArgs struct {
	Data    string `json:"data"`
	KeyPath string `json:"keypath"`
	Format  string `json:"format"`
}

func (c *Commander) sign(arg json.RawMessage, r Reporter) {
	var args signArgs
	if err := json.Unmarshal(arg, &args); err != nil {
		r.Fill(CmdSign, "JSON parse error.", StatusError)
		return
	}

	switch strings.ToLower(args.Format) {
	case "", "compact":
		sig, pub, err := c.wallet.Sign(args.Data, args.KeyPath)
		if err != nil {
			fail(r, CmdSign, err)
			return
		}
		r.Fill(CmdSign, hex.EncodeToString(sig[:]), StatusSuccess)
		r.Fill(CmdPubKey, hex.EncodeToString(pub[:]), StatusSuccess)
	case "der":
		der, pub, err := c.wallet.SignDER(args.Data, args.KeyPath)
		if err != nil {
			fail(r, CmdSign, err)
			return
		}
		r.Fill(CmdSign, hex.EncodeToString(der), StatusSuccess)
		r.Fill(CmdPubKey, hex.EncodeToString(pub[:]), StatusSuccess)
	default:
		r.Fill(CmdSign, "Unknown signature format.", StatusError)
	}
}

func (c *Commander) address(arg json.RawMessage, r Reporter) {
	var path string
	if err := json.Unmarshal(arg, &path); err != nil {
		r.Fill(CmdAddress, "JSON parse error.", StatusError)
		return
	}
	addr, err := c.wallet.Address(path)
	if err != nil {
		fail(r, CmdAddress, err)
		return
	}
	r.Fill(CmdAddress, addr, StatusSuccess)
}

func (c *Commander) backup(r Reporter) {
	mnemonic, err := c.wallet.Mnemonic()
	if err != nil {
		fail(r, CmdBackup, err)
		return
	}
	defer wallet.Zero(mnemonic)

	if s, ok := r.(interface{ markSecret() }); ok {
		s.markSecret()
	}
	r.Fill(CmdBackup, string(mnemonic), StatusSuccess)
}

// fail reports err under cmd with its user-facing message.
func fail(r Reporter, cmd string, err error) {
	msg := Message(err)
	log.Commander.Debug().Str("cmd", cmd).Err(err).Msg("Command failed")
	r.Fill(cmd, msg, StatusError)
}

// Message maps an operation error to the message shown to the user.
func Message(err error) string {
	switch {
	case errors.Is(err, wallet.ErrMasterKeyNotSet):
		return "A BIP32 master private key is not set."
	case errors.Is(err, wallet.ErrInvalidDigestLength):
		return "Incorrect data length. A 32-byte hexadecimal value (64 characters) is expected."
	case errors.Is(err, device.ErrInvalidHex):
		return "Data must be a hexadecimal value."
	case errors.Is(err, wallet.ErrInvalidWordCount):
		return "Mnemonic must have 12, 18, or 24 words."
	case errors.Is(err, wallet.ErrWordNotInDictionary):
		return "Word not in bip39 wordlist."
	case errors.Is(err, wallet.ErrChecksumMismatch):
		return "Invalid mnemonic: checksum error."
	case errors.Is(err, wallet.ErrInvalidStrength):
		return "Strength must be a multiple of 32 between 128 and 256."
	case errors.Is(err, wallet.ErrSigningFailure):
		return "Could not sign data."
	case errors.Is(err, device.ErrSaveFailed):
		return "Problem saving BIP32 master key."
	case errors.Is(err, wallet.ErrNoMnemonic):
		return "A mnemonic is not set."
	case errors.Is(err, wallet.ErrInvalidPath):
		return "Invalid key path."
	case errors.Is(err, wallet.ErrInvalidChildKey):
		return "Derived key is invalid. Use a different index."
	case errors.Is(err, securestore.ErrPasswordRequired):
		return "Key storage is locked."
	case errors.Is(err, securestore.ErrCorrupt):
		return "Key storage is corrupt."
	case errors.Is(err, wallet.ErrSerializationBufferTooSmall):
		return bufferTooSmallMessage
	default:
		return fmt.Sprintf("Command failed: %v", err)
	}
}

// secretString decodes a JSON string into a fresh byte slice. Strings
// without escapes are copied directly so the secret never becomes an
// immutable Go string.
func secretString(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return nil, errors.New("expected a JSON string")
	}
	body := raw[1 : len(raw)-1]
	if bytes.IndexByte(body, '\\') < 0 {
		return bytes.Clone(body), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}
