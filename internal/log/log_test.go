package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf, level)
	t.Cleanup(func() { SetOutput(os.Stderr, "info") })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentLoggers(t *testing.T) {
	buf := captureLogs(t, "debug")

	Device.Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q is not JSON: %v", buf.String(), err)
	}
	if entry["component"] != "device" || entry["message"] != "hello" || entry["level"] != "info" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetOutput_Level(t *testing.T) {
	buf := captureLogs(t, "warn")

	Wallet.Info().Msg("quiet")
	Storage.Warn().Msg("loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Error("warn line should be written")
	}
}

func TestSetOutput_Disabled(t *testing.T) {
	buf := captureLogs(t, "disabled")
	Device.Error().Msg("nothing")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestWithNetwork(t *testing.T) {
	buf := captureLogs(t, "info")
	l := WithNetwork("testnet")
	l.Info().Msg("x")
	if !strings.Contains(buf.String(), `"network":"testnet"`) {
		t.Errorf("log = %s", buf.String())
	}
}

func TestInit_JSONConsole(t *testing.T) {
	if err := Init("debug", true, ""); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { SetOutput(os.Stderr, "info") })

	if got := Logger.GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	if got := Storage.GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("component level = %v, want debug", got)
	}
}

func TestBenchmark(t *testing.T) {
	buf := captureLogs(t, "debug")
	done := Benchmark("stretch")
	done()
	if !strings.Contains(buf.String(), `"operation":"stretch"`) || !strings.Contains(buf.String(), `"duration"`) {
		t.Errorf("log = %s", buf.String())
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klingsign.log")
	if err := Init("info", true, path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { SetOutput(os.Stderr, "info") })

	Commander.Info().Msg("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("file log = %q", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("log file mode = %o, want 0600", perm)
	}
}

func TestInit_BadPath(t *testing.T) {
	if err := Init("info", false, filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("Init() with unwritable path should fail")
	}
}
