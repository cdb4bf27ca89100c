// Command triviad starts a triviachain node.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tolelom/triviachain/archive"
	"github.com/tolelom/triviachain/config"
	"github.com/tolelom/triviachain/node"
	"github.com/tolelom/triviachain/storage"
	"github.com/tolelom/triviachain/wallet"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "signer.key", "path to keystore file (genkey mode)")
	genKey := flag.Bool("genkey", false, "generate a new key into -key, print its address and exit")
	flag.Parse()

	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	if *genKey {
		if err := generateKey(*keyPath); err != nil {
			fmt.Fprintln(os.Stderr, "genkey:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("node stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	n, err := node.New(cfg, db, nil, logger)
	if err != nil {
		return err
	}
	head := n.Executor.Head()
	logger.Info("chain ready",
		zap.String("chain_id", cfg.ChainID),
		zap.Uint64("height", head.Height),
		zap.Stringer("owner", cfg.Owner),
		zap.Stringer("backend_signer", cfg.BackendSigner))

	if cfg.DatabaseURL != "" {
		arc, err := archive.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		if err := arc.Migrate(); err != nil {
			arc.Close()
			return err
		}
		arc.Attach(ctx, n.Emitter)
		defer arc.Close()
	}

	if err := n.Server.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	logger.Info("rpc listening", zap.Int("port", cfg.RPCPort), zap.Bool("auth", cfg.RPCAuthToken != ""))

	<-ctx.Done()
	logger.Info("shutting down")
	// Deferred calls run in LIFO: archive.Close → db.Close.
	return n.Server.Stop()
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = config.DefaultConfig()
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// generateKey writes a fresh key encrypted with TRIVIA_PASSWORD. Passwords
// come from the environment because CLI flags leak via ps.
func generateKey(path string) error {
	password := os.Getenv("TRIVIA_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "WARNING: TRIVIA_PASSWORD not set, keystore will use an empty password")
	}
	w, err := wallet.Generate("")
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(path, password, w.PrivKey()); err != nil {
		return err
	}
	fmt.Printf("Generated key. Address: %s\nSaved to: %s\n", w.Address().Hex(), path)
	return nil
}
