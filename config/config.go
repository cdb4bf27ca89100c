package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tolelom/triviachain/crypto"
	"github.com/tolelom/triviachain/identity"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	Alloc map[string]string `json:"alloc"` // address hex → whole-token amount, e.g. "25.5"
	Names map[string]string `json:"names"` // handle → address hex
}

// Config holds all node configuration.
type Config struct {
	ChainID        string          `json:"chain_id"`
	DataDir        string          `json:"data_dir"`
	RPCPort        int             `json:"rpc_port"`
	RPCAuthToken   string          `json:"rpc_auth_token"` // guards /ws; empty → open
	DatabaseURL    string          `json:"database_url"`   // PostgreSQL event archive; empty → disabled
	LogLevel       string          `json:"log_level"`      // debug | info | warn | error
	Development    bool            `json:"development"`    // human-readable logs
	Owner          common.Address  `json:"owner"`
	BackendSigner  common.Address  `json:"backend_signer"`
	Platform       common.Address  `json:"platform"`
	IdentityPolicy identity.Policy `json:"identity_policy"`
	Genesis        GenesisConfig   `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration. Owner,
// backend signer and platform must still be filled in.
func DefaultConfig() *Config {
	return &Config{
		ChainID:        "triviachain-dev",
		DataDir:        "./data",
		RPCPort:        8545,
		LogLevel:       "info",
		IdentityPolicy: identity.ResolverOrSignedAlternate,
		Genesis: GenesisConfig{
			Alloc: map[string]string{},
			Names: map[string]string{},
		},
	}
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from TRIVIA_* environment variables. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TRIVIA_DATA_DIR"); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup("TRIVIA_RPC_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRIVIA_RPC_PORT: %w", err)
		}
		c.RPCPort = port
	}
	if v, ok := lookup("TRIVIA_RPC_TOKEN"); ok {
		c.RPCAuthToken = v
	}
	if v, ok := lookup("TRIVIA_DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := lookup("TRIVIA_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("TRIVIA_BACKEND_SIGNER"); ok && v != "" {
		addr, err := crypto.ParseAddress(v)
		if err != nil {
			return fmt.Errorf("TRIVIA_BACKEND_SIGNER: %w", err)
		}
		c.BackendSigner = addr
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.ChainID == "" {
		return errors.New("chain_id is required")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port %d out of range", c.RPCPort)
	}
	if c.Owner == (common.Address{}) {
		return errors.New("owner is required")
	}
	if c.BackendSigner == (common.Address{}) {
		return errors.New("backend_signer is required")
	}
	if c.Platform == (common.Address{}) {
		return errors.New("platform is required")
	}
	if _, err := identity.ParsePolicy(string(c.IdentityPolicy)); err != nil {
		return err
	}
	if _, err := c.Genesis.allocations(); err != nil {
		return err
	}
	if _, err := c.Genesis.names(); err != nil {
		return err
	}
	return nil
}
