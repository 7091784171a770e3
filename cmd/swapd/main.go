package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/altv2/swapledger/params"
	"github.com/altv2/swapledger/pkg/api"
	"github.com/altv2/swapledger/pkg/asset"
	"github.com/altv2/swapledger/pkg/escrow"
	"github.com/altv2/swapledger/pkg/events"
	"github.com/altv2/swapledger/pkg/settle"
	"github.com/altv2/swapledger/pkg/util"
)

// Module identities are derived, not configured: hashing a fixed label
// gives every deployment the same custody/engine addresses, the same way
// contract addresses are stable per deployment salt.
func moduleAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("swapledger/" + label))[12:])
}

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	admin := cfg.Ledger.Admin
	if admin == (common.Address{}) {
		// Devnet fallback so admin endpoints are usable out of the box
		admin = moduleAddress("dev-admin")
		sugar.Warnw("admin_address_not_set", "dev_admin", admin.Hex())
	}

	// ---- Storage ----
	store, err := escrow.OpenStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Event sinks: log, journal, websocket hub ----
	hub := api.NewHub(sugar)
	sink := events.MultiSink{events.LogSink{Logger: sugar}, store, hub}

	// ---- Asset layer ----
	bank := asset.NewBank()
	registry := asset.NewRegistry(admin, sink)

	for _, sym := range cfg.Dev.Genesis {
		id := moduleAddress("token/" + sym)
		tok := asset.NewStandardToken(id, "Dev "+sym, sym, admin)
		if err := bank.Register(tok); err != nil {
			sugar.Fatalw("genesis_token_register_failed", "symbol", sym, "err", err)
		}
		if err := registry.AddAsset(admin, id); err != nil {
			sugar.Fatalw("genesis_token_admit_failed", "symbol", sym, "err", err)
		}
		sugar.Infow("genesis_token", "symbol", sym, "id", id.Hex())
	}

	// ---- Escrow ledger ----
	custody := moduleAddress("custody")
	ledger, err := escrow.NewLedger(escrow.Config{
		Admin:   admin,
		Custody: custody,
		Tokens:  bank,
		Assets:  registry,
		Store:   store,
		Sink:    sink,
	})
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}
	if cfg.Ledger.RestrictAssets && !ledger.RestrictionEnabled() {
		if err := ledger.ToggleRestriction(admin, true); err != nil {
			sugar.Fatalw("restriction_enable_failed", "err", err)
		}
	}

	// ---- Settlement engine ----
	engineID := moduleAddress("engine")
	engine := settle.NewEngine(engineID, ledger, bank)
	if ledger.SettlementEngine() != engineID {
		if err := ledger.SetSettlementEngine(admin, engineID); err != nil {
			sugar.Fatalw("engine_register_failed", "err", err)
		}
	}

	sugar.Infow("ledger_ready",
		"admin", admin.Hex(),
		"custody", custody.Hex(),
		"engine", engineID.Hex(),
		"orders", ledger.OrderCount(),
		"restrict_assets", ledger.RestrictionEnabled(),
	)

	// ---- API ----
	server := api.NewServer(ledger, engine, registry, bank, store, hub, sugar)

	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sugar.Info("shutting down")
}
