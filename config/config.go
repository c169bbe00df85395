// Package config loads the validator node configuration.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/corks/dispatcher"
	"github.com/smartcontractkit/corks/quorum"
	"github.com/smartcontractkit/corks/types"
)

const (
	EnvPrivateKey = "PRIVATE_KEY"
	EnvRPCURL     = "RPC_URL"
)

// Config is the configuration of a validator node.
type Config struct {
	// Quorum is the endorsement threshold as a fraction of total voting power.
	Quorum quorum.Threshold `yaml:"quorum"`
	// ValidatorSet is the set active from the start height until the feed reports another one.
	ValidatorSet types.ValidatorSet `yaml:"validatorSet"`
	// StartHeight is the final consensus height the node starts from.
	StartHeight uint64 `yaml:"startHeight"`
	// Concurrency bounds the corks re-evaluated in parallel on a height event.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`

	Store     StoreConfig       `yaml:"store"`
	Execution ExecutionConfig   `yaml:"execution"`
	Feed      FeedConfig        `yaml:"feed"`
	Dispatch  dispatcher.Config `yaml:"dispatch"`
}

type StoreConfig struct {
	// Path of the bolt database file. Empty keeps corks in memory only.
	Path string `yaml:"path"`
}

type ExecutionConfig struct {
	ChainSelector types.ChainSelector `yaml:"chainSelector" validate:"required"`
	RPCURL        string              `yaml:"rpcURL" validate:"omitempty,url"`
	// GasLimit fixes the gas of cork transactions. Zero estimates it.
	GasLimit uint64 `yaml:"gasLimit"`
}

type FeedConfig struct {
	// RPCURL of the node providing heights, defaults to the execution RPC.
	RPCURL       string         `yaml:"rpcURL" validate:"omitempty,url"`
	PollInterval types.Duration `yaml:"pollInterval"`
	// Confirmations derives finality from the head instead of the finalized block tag.
	Confirmations *uint64 `yaml:"confirmations"`
}

// Secrets are read from the environment or a .env file, never from the config file.
type Secrets struct {
	PrivateKey *ecdsa.PrivateKey
	RPCURL     string
}

// Default returns a configuration with every optional value set.
func Default() Config {
	return Config{
		Quorum:      quorum.DefaultThreshold,
		Concurrency: 8,
		Feed: FeedConfig{
			PollInterval: types.MustParseDuration("5s"),
		},
		Dispatch: dispatcher.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags, the quorum threshold, the validator set and that the execution
// chain is an EVM chain.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if err := c.Quorum.Validate(); err != nil {
		return err
	}
	if err := c.ValidatorSet.Validate(); err != nil {
		return err
	}
	if _, err := types.EVMChainID(c.Execution.ChainSelector); err != nil {
		return err
	}

	return nil
}

// ExecutionRPCURL returns the RPC URL of the execution chain, the secret taking precedence.
func (c *Config) ExecutionRPCURL(s Secrets) string {
	if s.RPCURL != "" {
		return s.RPCURL
	}

	return c.Execution.RPCURL
}

// FeedRPCURL returns the RPC URL of the height feed.
func (c *Config) FeedRPCURL(s Secrets) string {
	if c.Feed.RPCURL != "" {
		return c.Feed.RPCURL
	}

	return c.ExecutionRPCURL(s)
}

// LoadSecrets loads envFile, when it exists, into the environment and reads the secrets.
// Variables already set in the environment win.
func LoadSecrets(envFile string) (Secrets, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Secrets{}, err
	}

	s := Secrets{RPCURL: os.Getenv(EnvRPCURL)}

	if pk := os.Getenv(EnvPrivateKey); pk != "" {
		key, err := crypto.HexToECDSA(pk)
		if err != nil {
			return Secrets{}, fmt.Errorf("invalid %s: %w", EnvPrivateKey, err)
		}
		s.PrivateKey = key
	}

	return s, nil
}

// RequirePrivateKey fails when no private key was configured.
func (s Secrets) RequirePrivateKey() (*ecdsa.PrivateKey, error) {
	if s.PrivateKey == nil {
		return nil, fmt.Errorf("%s not found in the environment or .env file", EnvPrivateKey)
	}

	return s.PrivateKey, nil
}
