package commander

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingsign/internal/log"
	"github.com/Klingon-tech/klingsign/internal/wallet"
)

func TestStatus_String(t *testing.T) {
	if StatusSuccess.String() != "SUCCESS" || StatusError.String() != "ERROR" {
		t.Errorf("statuses = %s/%s, want SUCCESS/ERROR", StatusSuccess, StatusError)
	}
}

func TestBuffer_JSON(t *testing.T) {
	b := NewBuffer(0)
	b.Fill("sign", "abcd", StatusSuccess)
	b.Fill("pubkey", "02ff", StatusSuccess)

	if got, want := string(b.JSON()), `{"sign":"abcd","pubkey":"02ff"}`; got != want {
		t.Errorf("JSON() = %s, want %s", got, want)
	}
	if b.Err() != nil {
		t.Errorf("Err() = %v, want nil", b.Err())
	}
	if len(b.Reports()) != 2 || b.Reports()[1].Command != "pubkey" {
		t.Errorf("Reports() = %+v", b.Reports())
	}
}

func TestBuffer_ErrorReport(t *testing.T) {
	b := NewBuffer(0)
	b.Fill("xpub", "A BIP32 master private key is not set.", StatusError)

	want := `{"error":"A BIP32 master private key is not set."}`
	if got := string(b.JSON()); got != want {
		t.Errorf("JSON() = %s, want %s", got, want)
	}
}

func TestBuffer_Escaping(t *testing.T) {
	b := NewBuffer(0)
	b.Fill("msg", `quote " and \ slash`, StatusSuccess)

	if got, want := string(b.JSON()), `{"msg":"quote \" and \\ slash"}`; got != want {
		t.Errorf("JSON() = %s, want %s", got, want)
	}
}

func TestBuffer_Empty(t *testing.T) {
	if got := string(NewBuffer(0).JSON()); got != "{}" {
		t.Errorf("JSON() = %s, want {}", got)
	}
}

func TestBuffer_Overflow(t *testing.T) {
	// {"a":"xxxx"} is exactly 12 bytes.
	b := NewBuffer(12)
	b.Fill("a", "xxxx", StatusSuccess)
	if b.Err() != nil {
		t.Fatalf("report that fits exactly should be kept: %v", b.Err())
	}

	b.Fill("b", "y", StatusSuccess)
	if !errors.Is(b.Err(), wallet.ErrSerializationBufferTooSmall) {
		t.Fatalf("Err() = %v, want ErrSerializationBufferTooSmall", b.Err())
	}
	if len(b.Reports()) != 1 {
		t.Errorf("overflowing report should be dropped, have %d", len(b.Reports()))
	}
	if got := string(b.JSON()); !strings.Contains(got, "Serialization buffer too small.") {
		t.Errorf("JSON() = %s", got)
	}

	b.Reset()
	if b.Err() != nil || len(b.Reports()) != 0 {
		t.Error("Reset() should clear reports and overflow")
	}
}

func TestBuffer_SecretNotLogged(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs, "debug")
	defer log.SetOutput(&bytes.Buffer{}, "info")

	b := NewBuffer(0)
	b.Fill("xpub", "public-value", StatusSuccess)
	b.markSecret()
	b.Fill("backup", "secret words here", StatusSuccess)

	if !strings.Contains(logs.String(), "public-value") {
		t.Error("non-secret message should be logged at debug level")
	}
	if strings.Contains(logs.String(), "secret words") {
		t.Error("secret message must not be logged")
	}
}
