// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the settings of the hello tools from flags,
// environment variables and an optional YAML or JSON file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/hello/backend"
	"github.com/luxfi/hello/bridge"
	"github.com/luxfi/hello/program"
	"github.com/luxfi/hello/relay"
)

const (
	defaultLogLevel            = "info"
	defaultOutput              = "yaml"
	defaultMaxConcurrentRelays = 4
	defaultPlanCacheSize       = 1024
	defaultRetryInterval       = 100 * time.Millisecond
	defaultRetryTimeout        = 10 * time.Second
	defaultChainID             = 1

	// DefaultProgramID and DefaultBridgeProgramID are the ids of a local
	// deployment.
	DefaultProgramID       = "AVoinNc8k4Vx91otjhj5xdPmNGQ146MucM1jZ3iByPKj"
	DefaultBridgeProgramID = "m2UVK3YMhUZQzb3HkmS86Q8a1dWjFiZoXnZw16M8s42"
)

var (
	outputs = []string{"yaml", "json"}

	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the resolved configuration
type Config struct {
	LogLevel string `mapstructure:"log-level" json:"log-level" yaml:"log-level"`
	// Database is the SQLite file accounts are kept in. Empty keeps them in
	// memory.
	Database          string `mapstructure:"database" json:"database" yaml:"database"`
	ChainID           uint16 `mapstructure:"chain-id" json:"chain-id" yaml:"chain-id"`
	ProgramID         string `mapstructure:"program-id" json:"program-id" yaml:"program-id"`
	BridgeProgramID   string `mapstructure:"bridge-program-id" json:"bridge-program-id" yaml:"bridge-program-id"`
	ExecutorProgramID string `mapstructure:"executor-program-id" json:"executor-program-id" yaml:"executor-program-id"`
	MessageFee        uint64 `mapstructure:"message-fee" json:"message-fee" yaml:"message-fee"`
	Output            string `mapstructure:"output" json:"output" yaml:"output"`

	MaxConcurrentRelays int           `mapstructure:"max-concurrent-relays" json:"max-concurrent-relays" yaml:"max-concurrent-relays"`
	PlanCacheSize       int           `mapstructure:"plan-cache-size" json:"plan-cache-size" yaml:"plan-cache-size"`
	RetryInterval       time.Duration `mapstructure:"retry-interval" json:"retry-interval" yaml:"retry-interval"`
	RetryTimeout        time.Duration `mapstructure:"retry-timeout" json:"retry-timeout" yaml:"retry-timeout"`
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("%w: %s %q, want one of %v", ErrInvalidConfig, OutputKey, c.Output, outputs)
	}
	if c.ChainID == 0 {
		return fmt.Errorf("%w: %s must be set", ErrInvalidConfig, ChainIDKey)
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.MaxConcurrentRelays <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, MaxConcurrentRelaysKey)
	}
	if c.PlanCacheSize <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, PlanCacheSizeKey)
	}
	if c.RetryInterval <= 0 || c.RetryTimeout < c.RetryInterval {
		return fmt.Errorf("%w: %s %s must be positive and at most %s %s",
			ErrInvalidConfig, RetryIntervalKey, c.RetryInterval, RetryTimeoutKey, c.RetryTimeout)
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() (log.Level, error) {
	lvl, err := log.ToLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, LogLevelKey, err)
	}
	return lvl, nil
}

// Logger returns a plain text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) (log.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	core := log.NewWrappedCore(lvl, zapcore.AddSync(w), log.Plain.ConsoleEncoder())
	return log.NewLogger("hello", *core), nil
}

// Verbose reports whether transaction logs should be shown
func (c *Config) Verbose() bool {
	return c.LogLevel == "trace" || c.LogLevel == "debug"
}

// Program returns the program configuration
func (c *Config) Program() (*program.Config, error) {
	programID, err := publicKey(ProgramIDKey, c.ProgramID)
	if err != nil {
		return nil, err
	}
	bridgeID, err := publicKey(BridgeProgramIDKey, c.BridgeProgramID)
	if err != nil {
		return nil, err
	}
	executorID, err := publicKey(ExecutorProgramIDKey, c.ExecutorProgramID)
	if err != nil {
		return nil, err
	}
	return &program.Config{
		ProgramID:         programID,
		BridgeProgramID:   bridgeID,
		ExecutorProgramID: executorID,
	}, nil
}

// Bridge returns the configuration of the bridge program at programID
func (c *Config) Bridge(programID solana.PublicKey) *bridge.Config {
	return &bridge.Config{
		ProgramID: programID,
		ChainID:   c.ChainID,
	}
}

// Relayer returns the relayer configuration paid by payer
func (c *Config) Relayer(payer solana.PublicKey) relay.Config {
	return relay.Config{
		ChainID:             c.ChainID,
		Payer:               payer,
		MaxConcurrentRelays: c.MaxConcurrentRelays,
		PlanCacheSize:       c.PlanCacheSize,
		RetryInterval:       c.RetryInterval,
		RetryTimeout:        c.RetryTimeout,
	}
}

// OpenBackend opens the configured account store
func (c *Config) OpenBackend(ctx context.Context) (backend.Backend, error) {
	if c.Database == "" {
		return backend.NewMemoryBackend(), nil
	}
	return backend.OpenSQLiteBackend(ctx, c.Database)
}

func publicKey(key, value string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s %q: %w", ErrInvalidConfig, key, value, err)
	}
	return pk, nil
}
