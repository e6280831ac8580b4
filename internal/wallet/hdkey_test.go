package wallet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tyler-smith/go-bip32"
)

var (
	xpubVersion = []byte{0x04, 0x88, 0xB2, 0x1E}
	tpubVersion = []byte{0x04, 0x35, 0x87, 0xCF}
)

// testSeed returns a deterministic seed for testing.
// Uses the BIP-39 test vector: "abandon" x11 + "about" with passphrase "TREZOR".
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic([]byte(testMnemonic12), []byte("TREZOR"), nil)
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func testMaster(t *testing.T) *HDNode {
	t.Helper()
	node, err := NodeFromSeed(testSeed(t))
	if err != nil {
		t.Fatalf("NodeFromSeed() error: %v", err)
	}
	return node
}

func TestNodeFromSeed(t *testing.T) {
	master := testMaster(t)

	if master.Depth != 0 || master.ChildNum != 0 || master.Fingerprint != 0 {
		t.Errorf("master header = depth %d child %d fp %08x, want zeros",
			master.Depth, master.ChildNum, master.Fingerprint)
	}
	if master.PublicKey[0] != 0x02 && master.PublicKey[0] != 0x03 {
		t.Errorf("public key prefix = 0x%02x, want compressed", master.PublicKey[0])
	}
	if master.ChainCode == [32]byte{} {
		t.Error("chain code should not be zero")
	}
}

func TestNodeFromSeed_InvalidSeedLength(t *testing.T) {
	tests := []struct {
		name string
		seed []byte
	}{
		{"empty", []byte{}},
		{"too short", make([]byte, 15)},
		{"too long", make([]byte, 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NodeFromSeed(tt.seed); !errors.Is(err, ErrInvalidSeedLength) {
				t.Errorf("error = %v, want ErrInvalidSeedLength", err)
			}
		})
	}
}

func TestNodeFromMaster(t *testing.T) {
	master := testMaster(t)

	node, err := NodeFromMaster(master.PrivateKey[:], master.ChainCode[:])
	if err != nil {
		t.Fatalf("NodeFromMaster() error: %v", err)
	}
	if *node != *master {
		t.Error("node rebuilt from stored master differs from seed master")
	}
}

func TestNodeFromMaster_Invalid(t *testing.T) {
	order := mustHex(t, "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	chain := make([]byte, 32)

	tests := []struct {
		name  string
		priv  []byte
		chain []byte
	}{
		{"zero key", make([]byte, 32), chain},
		{"curve order", order, chain},
		{"short key", make([]byte, 31), chain},
		{"short chain code", bytes.Repeat([]byte{1}, 32), make([]byte, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NodeFromMaster(tt.priv, tt.chain); err == nil {
				t.Error("NodeFromMaster() should fail")
			}
		})
	}
}

// BIP-32 test vector 1.
func TestDerivePath_BIP32Vector1(t *testing.T) {
	seed := mustHex(t, "000102030405060708090a0b0c0d0e0f")

	tests := []struct {
		path string
		xpub string
	}{
		{"m", "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"},
		{"m/0'", "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"},
		{"m/0'/1", "xpub6ASuArnXKPbfEwhqN6e3mwBcDTgzisQN1wXN9BJcM47sSikHjJf3UFHKkNAWbWMiGj7Wf5uMash7SyYq527Hqck2AxYysAA7xmALppuCkwQ"},
		{"m/0'/1/2'", "xpub6D4BDPcP2GT577Vvch3R8wDkScZWzQzMMUm3PWbmWvVJrZwQY4VUNgqFJPMM3No2dFDFGTsxxpG5uJh7n7epu4trkrX7x7DogT5Uv6fcLW5"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			node, err := NodeFromSeed(seed)
			if err != nil {
				t.Fatalf("NodeFromSeed() error: %v", err)
			}
			defer node.Zero()

			if err := node.DerivePath(mustParsePath(t, tt.path)); err != nil {
				t.Fatalf("DerivePath(%s) error: %v", tt.path, err)
			}
			got, err := node.SerializePublic(xpubVersion)
			if err != nil {
				t.Fatalf("SerializePublic() error: %v", err)
			}
			if got != tt.xpub {
				t.Errorf("xpub = %s, want %s", got, tt.xpub)
			}
		})
	}
}

func TestDeriveChild_MatchesBIP32Library(t *testing.T) {
	seed := testSeed(t)

	ref, err := bip32.NewMasterKey(seed)
	if err != nil {
		t.Fatalf("bip32.NewMasterKey() error: %v", err)
	}
	node, err := NodeFromSeed(seed)
	if err != nil {
		t.Fatalf("NodeFromSeed() error: %v", err)
	}

	if !bytes.Equal(node.PrivateKey[:], ref.Key) {
		t.Fatal("master private key differs from reference")
	}

	for _, c := range mustParsePath(t, "m/44'/0'/0'/0/7") {
		ref, err = ref.NewChildKey(c.ChildNumber())
		if err != nil {
			t.Fatalf("reference NewChildKey(%d) error: %v", c.ChildNumber(), err)
		}
		if err := node.DeriveChild(c.Index, c.Hardened); err != nil {
			t.Fatalf("DeriveChild(%d) error: %v", c.ChildNumber(), err)
		}

		if !bytes.Equal(node.ChainCode[:], ref.ChainCode) {
			t.Errorf("child %d: chain code differs from reference", c.ChildNumber())
		}
		if !bytes.Equal(node.PublicKey[:], ref.PublicKey().Key) {
			t.Errorf("child %d: public key differs from reference", c.ChildNumber())
		}
	}
}

func TestDerivePath_StepwiseEqualsDirect(t *testing.T) {
	direct := testMaster(t)
	if err := direct.DerivePath(mustParsePath(t, "m/44'/0'/0'/0/0")); err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}

	step := testMaster(t)
	for _, p := range []string{"44'", "0'", "0'", "0", "0"} {
		if err := step.DerivePath(mustParsePath(t, p)); err != nil {
			t.Fatalf("DerivePath(%s) error: %v", p, err)
		}
	}

	if *step != *direct {
		t.Error("stepwise derivation differs from direct derivation")
	}
	if step.Depth != 5 {
		t.Errorf("depth = %d, want 5", step.Depth)
	}
}

func TestDerivePath_Deterministic(t *testing.T) {
	a := testMaster(t)
	b := testMaster(t)
	path := mustParsePath(t, "m/0'/1/2'")

	if err := a.DerivePath(path); err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if err := b.DerivePath(path); err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if *a != *b {
		t.Error("same seed and path should derive the same node")
	}
}

func TestDeriveChild_HardenedDiffersFromNormal(t *testing.T) {
	normal := testMaster(t)
	hardened := testMaster(t)

	if err := normal.DeriveChild(0, false); err != nil {
		t.Fatalf("DeriveChild() error: %v", err)
	}
	if err := hardened.DeriveChild(0, true); err != nil {
		t.Fatalf("DeriveChild() error: %v", err)
	}

	if normal.PrivateKey == hardened.PrivateKey {
		t.Error("hardened and normal children should differ")
	}
	if normal.ChildNum != 0 || hardened.ChildNum != HardenedOffset {
		t.Errorf("child numbers = %#x / %#x, want 0 / %#x", normal.ChildNum, hardened.ChildNum, HardenedOffset)
	}
}

func TestDeriveChild_Fingerprint(t *testing.T) {
	master := testMaster(t)
	parentPub := master.PublicKey

	if err := master.DeriveChild(3, false); err != nil {
		t.Fatalf("DeriveChild() error: %v", err)
	}

	h, err := PubKeyHash(parentPub[:])
	if err != nil {
		t.Fatalf("PubKeyHash() error: %v", err)
	}
	want := uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
	if master.Fingerprint != want {
		t.Errorf("fingerprint = %08x, want %08x", master.Fingerprint, want)
	}
}

func TestDeriveChild_IndexOutOfRange(t *testing.T) {
	master := testMaster(t)
	before := *master

	if err := master.DeriveChild(HardenedOffset, false); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("error = %v, want ErrInvalidPath", err)
	}
	if *master != before {
		t.Error("node should be unchanged after a failed derivation")
	}
}

func TestDerivePath_TooDeep(t *testing.T) {
	master := testMaster(t)
	master.Depth = 250

	path := make(Path, 6)
	if err := master.DerivePath(path); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("error = %v, want ErrInvalidPath", err)
	}
}

func TestSerializePublic(t *testing.T) {
	master := testMaster(t)

	xpub, err := master.SerializePublic(xpubVersion)
	if err != nil {
		t.Fatalf("SerializePublic() error: %v", err)
	}
	if xpub[:4] != "xpub" {
		t.Errorf("mainnet prefix = %q, want xpub", xpub[:4])
	}

	tpub, err := master.SerializePublic(tpubVersion)
	if err != nil {
		t.Fatalf("SerializePublic() error: %v", err)
	}
	if tpub[:4] != "tpub" {
		t.Errorf("testnet prefix = %q, want tpub", tpub[:4])
	}

	parsed, err := bip32.B58Deserialize(xpub)
	if err != nil {
		t.Fatalf("B58Deserialize() error: %v", err)
	}
	if parsed.IsPrivate {
		t.Error("serialized key should be public")
	}
	if !bytes.Equal(parsed.Key, master.PublicKey[:]) || !bytes.Equal(parsed.ChainCode, master.ChainCode[:]) {
		t.Error("deserialized key does not match node")
	}

	if _, err := master.SerializePublic([]byte{1, 2}); err == nil {
		t.Error("SerializePublic with a short version should fail")
	}
}

func TestHDNode_Zero(t *testing.T) {
	node := testMaster(t)
	node.Zero()

	if *node != (HDNode{}) {
		t.Error("Zero() should wipe every field")
	}
}
