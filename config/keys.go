// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variables are the upper-cased keys with this prefix,
	// hyphens replaced by underscores: HELLO_PROGRAM_ID.
	EnvPrefix = "HELLO"

	// Top-level configuration keys
	LogLevelKey          = "log-level"
	DatabaseKey          = "database"
	ChainIDKey           = "chain-id"
	ProgramIDKey         = "program-id"
	BridgeProgramIDKey   = "bridge-program-id"
	ExecutorProgramIDKey = "executor-program-id"
	MessageFeeKey        = "message-fee"
	OutputKey            = "output"

	// Relayer keys
	MaxConcurrentRelaysKey = "max-concurrent-relays"
	PlanCacheSizeKey       = "plan-cache-size"
	RetryIntervalKey       = "retry-interval"
	RetryTimeoutKey        = "retry-timeout"
)
