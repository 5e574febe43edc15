// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-wssec.
//
// go-wssec is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables bound to CLI flags.
const EnvPrefix = "WSSEC"

// rootCmd represents the base command
var rootCmd = NewRootCommand()

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// NewRootCommand builds the wssec command tree. Every flag can also be set
// through a WSSEC_ environment variable, e.g. WSSEC_OUTPUT=json.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := NewConfig()
	cmd := &cobra.Command{
		Use:   "wssec",
		Short: "go-wssec CLI - WS-Security configuration resolution tool",
		Long: `go-wssec CLI resolves the WS-Security configuration an interceptor
would hand to the message security engine for one exchange.

It merges the static interceptor options with per-exchange overrides,
resolves the password callback handler and encryptor, and loads the
signature and encryption keystores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.bind(v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "interceptor configuration file (YAML)")
	flags.StringP("output", "o", string(OutputFormatText), "output format (text, json)")
	flags.BoolP("verbose", "v", false, "verbose output")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(newVersionCmd(cfg))
	cmd.AddCommand(newResolveCmd(cfg))
	cmd.AddCommand(newCheckCmd(cfg))
	cmd.AddCommand(newPolicyCmd(cfg))
	cmd.AddCommand(newEncryptPasswordCmd(cfg, v))
	return cmd
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, cfg *Config, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
