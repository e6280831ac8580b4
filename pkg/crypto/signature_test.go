package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func keyOne(t *testing.T) *PrivateKey {
	t.Helper()
	b := make([]byte, 32)
	b[31] = 1
	key, err := PrivateKeyFromBytes(b)
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}
	return key
}

func TestPrivateKeyFromBytes(t *testing.T) {
	key := keyOne(t)

	want := "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	if got := hex.EncodeToString(key.PublicKey()); got != want {
		t.Errorf("PublicKey() = %s, want %s", got, want)
	}
}

func TestPrivateKeyFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", make([]byte, 16)},
		{"too long", make([]byte, 64)},
		{"zero", make([]byte, 32)},
		{"curve order", mustHex(t, "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")},
		{"all ones", bytes.Repeat([]byte{0xff}, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PrivateKeyFromBytes(tt.data); err == nil {
				t.Error("expected error for invalid key bytes")
			}
		})
	}
}

// RFC 6979 vector for private key 1 over SHA-256("Satoshi Nakamoto").
func TestSign_KnownVector(t *testing.T) {
	key := keyOne(t)
	hash := sha256.Sum256([]byte("Satoshi Nakamoto"))

	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	want := "934b1ea10a4b3c1757e2b0c017d0b6143ce3c9a7e6a4a49860d7a6ab210ee3d8" +
		"2442ce9d2b916064108014783e923ec36b49743e2ffa1c4496f01a512aafd9e5"
	if got := hex.EncodeToString(sig[:]); got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}

	der, err := SignatureToDER(sig[:])
	if err != nil {
		t.Fatalf("SignatureToDER() error: %v", err)
	}
	wantDER := "3045022100934b1ea10a4b3c1757e2b0c017d0b6143ce3c9a7e6a4a49860d7a6ab210ee3d8" +
		"02202442ce9d2b916064108014783e923ec36b49743e2ffa1c4496f01a512aafd9e5"
	if got := hex.EncodeToString(der); got != wantDER {
		t.Errorf("DER = %s, want %s", got, wantDER)
	}
}

func TestSign_Verify(t *testing.T) {
	key := keyOne(t)
	hash := sha256.Sum256([]byte("verify me"))

	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !VerifySignature(hash[:], sig[:], key.PublicKey()) {
		t.Error("valid signature should verify")
	}
}

func TestSign_Deterministic(t *testing.T) {
	key := keyOne(t)
	hash := sha256.Sum256([]byte("deterministic"))

	sig1, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	sig2, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if sig1 != sig2 {
		t.Error("signing the same hash twice should give the same signature")
	}
}

func TestSign_LowS(t *testing.T) {
	key := keyOne(t)
	halfOrder := mustHex(t, "7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0")

	for i := 0; i < 16; i++ {
		hash := sha256.Sum256([]byte{byte(i)})
		sig, err := key.Sign(hash[:])
		if err != nil {
			t.Fatalf("Sign() error: %v", err)
		}
		if bytes.Compare(sig[32:], halfOrder) > 0 {
			t.Errorf("hash %d: s is not in the lower half of the order", i)
		}
	}
}

func TestSign_InvalidHashLength(t *testing.T) {
	key := keyOne(t)
	for _, n := range []int{0, 31, 33, 64} {
		if _, err := key.Sign(make([]byte, n)); err == nil {
			t.Errorf("Sign with %d-byte hash should fail", n)
		}
	}
}

func TestVerify_WrongHash(t *testing.T) {
	key := keyOne(t)
	hash := sha256.Sum256([]byte("original"))
	other := sha256.Sum256([]byte("tampered"))

	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if VerifySignature(other[:], sig[:], key.PublicKey()) {
		t.Error("signature should not verify against a different hash")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	key := keyOne(t)
	b := make([]byte, 32)
	b[31] = 2
	other, err := PrivateKeyFromBytes(b)
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}

	hash := sha256.Sum256([]byte("message"))
	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if VerifySignature(hash[:], sig[:], other.PublicKey()) {
		t.Error("signature should not verify with another key")
	}
}

func TestVerify_InvalidInputs(t *testing.T) {
	key := keyOne(t)
	hash := sha256.Sum256([]byte("message"))
	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	tests := []struct {
		name string
		sig  []byte
		pub  []byte
	}{
		{"short signature", sig[:63], key.PublicKey()},
		{"zero signature", make([]byte, 64), key.PublicKey()},
		{"bad public key", sig[:], []byte{0x02, 0x01}},
		{"empty public key", sig[:], nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(hash[:], tt.sig, tt.pub) {
				t.Error("verification should fail")
			}
		})
	}
}

func TestSignatureToDER_Invalid(t *testing.T) {
	if _, err := SignatureToDER(make([]byte, 10)); err == nil {
		t.Error("SignatureToDER with short input should fail")
	}
	if _, err := SignatureToDER(make([]byte, 64)); err == nil {
		t.Error("SignatureToDER with zero r and s should fail")
	}
}
