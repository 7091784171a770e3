package params

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Node struct {
	APIAddr string // REST/WebSocket listen address
	DBPath  string // Pebble database directory
	LogFile string // Structured log file path
}

type Ledger struct {
	// Admin manages the asset allow-list, the enforcement flag, and the
	// settlement-engine registration.
	Admin common.Address

	// RestrictAssets enables asset-admission enforcement at startup.
	// The runtime flag can still be toggled by the admin afterwards.
	RestrictAssets bool

	// NativeAsset reserves zero-address native-value orders. Not wired
	// yet; creation with the zero asset fails asset resolution.
	NativeAsset bool
}

type Dev struct {
	// Genesis lists tokens to register and fund at startup, for devnets.
	// Format: "TKA,TKB" (one standard token per symbol).
	Genesis []string
}

type Config struct {
	Node   Node
	Ledger Ledger
	Dev    Dev
}

func Default() Config {
	return Config{
		Node: Node{
			APIAddr: ":8080",
			DBPath:  "data/ledger.db",
			LogFile: "data/node.log",
		},
		Ledger: Ledger{
			RestrictAssets: true,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Node.APIAddr = addr
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Node.DBPath = path
	}
	if path := os.Getenv("LOG_FILE"); path != "" {
		cfg.Node.LogFile = path
	}

	if admin := os.Getenv("ADMIN_ADDRESS"); common.IsHexAddress(admin) {
		cfg.Ledger.Admin = common.HexToAddress(admin)
	}
	if restrict := os.Getenv("RESTRICT_ASSETS"); restrict != "" {
		cfg.Ledger.RestrictAssets = restrict == "true"
	}
	if native := os.Getenv("NATIVE_ASSET"); native != "" {
		cfg.Ledger.NativeAsset = native == "true"
	}

	// Dev genesis tokens from comma-separated symbols
	// Example: "TKA,TKB"
	if genesis := os.Getenv("DEV_GENESIS"); genesis != "" {
		for _, sym := range strings.Split(genesis, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				cfg.Dev.Genesis = append(cfg.Dev.Genesis, sym)
			}
		}
	}

	return cfg
}
