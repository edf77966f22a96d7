// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/hello/executor"
)

// AddFlags registers the configuration flags on fs
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFileKey, "", "YAML or JSON configuration file")
	fs.String(LogLevelKey, defaultLogLevel, "log level: verbo, debug, trace, info, warn, error, fatal or off")
	fs.String(DatabaseKey, "", "SQLite database of accounts, in memory if empty")
	fs.Uint16(ChainIDKey, defaultChainID, "chain id of the local bridge")
	fs.String(ProgramIDKey, DefaultProgramID, "hello program id")
	fs.String(BridgeProgramIDKey, DefaultBridgeProgramID, "bridge program id")
	fs.String(ExecutorProgramIDKey, executor.DefaultProgramID.String(), "executor program id")
	fs.Uint64(MessageFeeKey, 0, "bridge message fee in lamports")
	fs.StringP(OutputKey, "o", defaultOutput, fmt.Sprintf("output format, one of %v", outputs))
	fs.Int(MaxConcurrentRelaysKey, defaultMaxConcurrentRelays, "relays in flight at once")
	fs.Int(PlanCacheSizeKey, defaultPlanCacheSize, "delivery plans kept by the relayer")
	fs.Duration(RetryIntervalKey, defaultRetryInterval, "first wait for an unobserved message")
	fs.Duration(RetryTimeoutKey, defaultRetryTimeout, "total wait for an unobserved message")
}

// BuildViper binds fs and the environment. The config file, when given by
// flag or HELLO_CONFIG_FILE, is read as YAML or JSON by its extension.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	filename := os.ExpandEnv(v.GetString(ConfigFileKey))
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(filename)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(ChainIDKey, defaultChainID)
	v.SetDefault(ProgramIDKey, DefaultProgramID)
	v.SetDefault(BridgeProgramIDKey, DefaultBridgeProgramID)
	v.SetDefault(ExecutorProgramIDKey, executor.DefaultProgramID.String())
	v.SetDefault(OutputKey, defaultOutput)
	v.SetDefault(MaxConcurrentRelaysKey, defaultMaxConcurrentRelays)
	v.SetDefault(PlanCacheSizeKey, defaultPlanCacheSize)
	v.SetDefault(RetryIntervalKey, defaultRetryInterval)
	v.SetDefault(RetryTimeoutKey, defaultRetryTimeout)
}

// BuildConfig constructs the config using Viper.
// The following precedence order is used. Each item takes precedence over the item below it:
//  1. Flags
//  2. Environment variables
//  3. Config file
//  4. Defaults
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}

// NewConfig builds and validates the config
func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}
