package config

// Encoding versions per network.
const (
	MainnetAddressVersion = 0x00
	MainnetWIFVersion     = 0x80
	MainnetXPubVersion    = 0x0488B21E // xpub

	TestnetAddressVersion = 0x6f
	TestnetWIFVersion     = 0xef
	TestnetXPubVersion    = 0x043587CF // tpub
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Storage: StorageConfig{
			Backend:        BackendBadger,
			Encrypt:        false,
			KDFMemory:      64 * 1024,
			KDFIterations:  3,
			KDFParallelism: 4,
		},
		Wallet: WalletConfig{
			Strength:       256,
			AddressVersion: MainnetAddressVersion,
			WIFVersion:     MainnetWIFVersion,
			XPubVersion:    MainnetXPubVersion,
			ReplyBuffer:    4096,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Wallet.AddressVersion = TestnetAddressVersion
	cfg.Wallet.WIFVersion = TestnetWIFVersion
	cfg.Wallet.XPubVersion = TestnetXPubVersion
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
