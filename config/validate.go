package config

import (
	"fmt"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendBadger
	}
	switch cfg.Storage.Backend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendBadger, BackendMemory)
	}
	if cfg.Storage.Encrypt {
		if cfg.Storage.KDFIterations == 0 {
			return fmt.Errorf("storage.kdf.iterations must be positive")
		}
		if cfg.Storage.KDFParallelism == 0 {
			return fmt.Errorf("storage.kdf.parallelism must be positive")
		}
		if cfg.Storage.KDFMemory < 8*uint32(cfg.Storage.KDFParallelism) {
			return fmt.Errorf("storage.kdf.memory must be at least %d KiB", 8*uint32(cfg.Storage.KDFParallelism))
		}
	}

	s := cfg.Wallet.Strength
	if s < 128 || s > 256 || s%32 != 0 {
		return fmt.Errorf("wallet.strength must be a multiple of 32 in range [128, 256]")
	}
	if cfg.Wallet.AddressVersion == cfg.Wallet.WIFVersion {
		return fmt.Errorf("wallet.addrversion and wallet.wifversion must differ")
	}
	if cfg.Wallet.XPubVersion == 0 {
		return fmt.Errorf("wallet.xpubversion must be set")
	}
	if cfg.Wallet.ReplyBuffer < 0 {
		return fmt.Errorf("wallet.replybuffer must not be negative")
	}

	return nil
}
