// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/hello/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the resolved configuration to the commands
type app struct {
	cfg config.Config
	log log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "hellocli",
		Short: "Hello - cross-chain greeting program tools",
		Long: `hellocli encodes and inspects greeting messages and envelopes, derives
program accounts, builds delivery plans and relay requests, and runs an
in-process two chain network that delivers a greeting end to end.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.BuildViper(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg, err = config.NewConfig(v)
			if err != nil {
				return err
			}
			a.log, err = a.cfg.Logger(cmd.ErrOrStderr())
			return err
		},
	}
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		a.encodeCmd(),
		a.decodeCmd(),
		a.parseCmd(),
		a.deriveCmd(),
		a.resolveCmd(),
		a.requestCmd(),
		a.devnetCmd(),
	)
	return rootCmd
}

// print writes v in the configured output format
func (a *app) print(w io.Writer, v any) error {
	switch a.cfg.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

// decodeHex accepts hex with or without a 0x prefix
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
