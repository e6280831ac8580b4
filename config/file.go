package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = StorageBackend(strings.ToLower(value))
	case "storage.encrypt":
		cfg.Storage.Encrypt = parseBool(value)
	case "storage.kdf.memory":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Storage.KDFMemory = uint32(n)
	case "storage.kdf.iterations":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Storage.KDFIterations = uint32(n)
	case "storage.kdf.parallelism":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return err
		}
		cfg.Storage.KDFParallelism = uint8(n)

	// Wallet
	case "wallet.strength":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Wallet.Strength = n
	case "wallet.addrversion":
		n, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return err
		}
		cfg.Wallet.AddressVersion = byte(n)
	case "wallet.wifversion":
		n, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return err
		}
		cfg.Wallet.WIFVersion = byte(n)
	case "wallet.xpubversion":
		n, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.XPubVersion = uint32(n)
	case "wallet.replybuffer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Wallet.ReplyBuffer = n

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	d := Default(network)
	content := `# Klingsign Configuration
#
# Encoding versions default to the network's standard values and only
# need to be set for non-Bitcoin chains.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingsign)
# datadir = ~/.klingsign

# ============================================================================
# Key Storage
# ============================================================================

# Backend: badger (persistent) or memory (lost on exit)
storage.backend = badger

# Seal key pages with a password (Argon2id + XChaCha20-Poly1305)
storage.encrypt = false
# storage.kdf.memory = 65536
# storage.kdf.iterations = 3
# storage.kdf.parallelism = 4

# ============================================================================
# Wallet
# ============================================================================

# Entropy bits for generated mnemonics: 128, 160, 192, 224 or 256
wallet.strength = 256

# wallet.addrversion = ` + fmt.Sprintf("0x%02x", d.Wallet.AddressVersion) + `
# wallet.wifversion = ` + fmt.Sprintf("0x%02x", d.Wallet.WIFVersion) + `
# wallet.xpubversion = ` + fmt.Sprintf("0x%08x", d.Wallet.XPubVersion) + `

# Byte limit of a dispatch reply
# wallet.replybuffer = 4096

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}
