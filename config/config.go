// Package config handles signer configuration.
//
// Settings come from three layers, in increasing precedence: network
// defaults, the config file and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// StorageBackend selects the key-value store behind the key pages.
type StorageBackend string

const (
	BackendBadger StorageBackend = "badger" // Persistent store under the keystore dir (default)
	BackendMemory StorageBackend = "memory" // Volatile store, lost on exit
)

// Config holds the signer's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Key page storage
	Storage StorageConfig

	// Key derivation and encoding
	Wallet WalletConfig

	// Logging
	Log LogConfig
}

// StorageConfig holds key page storage settings.
type StorageConfig struct {
	Backend StorageBackend `conf:"storage.backend"`
	Encrypt bool           `conf:"storage.encrypt"` // Seal pages with a password

	// Argon2id parameters for sealed pages.
	KDFMemory      uint32 `conf:"storage.kdf.memory"` // KiB
	KDFIterations  uint32 `conf:"storage.kdf.iterations"`
	KDFParallelism uint8  `conf:"storage.kdf.parallelism"`
}

// WalletConfig holds mnemonic and encoding settings.
type WalletConfig struct {
	Strength       int    `conf:"wallet.strength"` // Bits of entropy for generated mnemonics
	AddressVersion byte   `conf:"wallet.addrversion"`
	WIFVersion     byte   `conf:"wallet.wifversion"`
	XPubVersion    uint32 `conf:"wallet.xpubversion"`
	ReplyBuffer    int    `conf:"wallet.replybuffer"` // Byte limit of a dispatch reply
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingsign
//	macOS:   ~/Library/Application Support/Klingsign
//	Windows: %APPDATA%\Klingsign
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingsign"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingsign")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Klingsign")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingsign")
	default:
		return filepath.Join(home, ".klingsign")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the key page database directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingsign.conf")
}
