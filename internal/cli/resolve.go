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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-wssec/pkg/policy"
)

func newResolveCmd(cfg *Config) *cobra.Command {
	var (
		sets       []string
		policyFile string
		requestor  bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the security configuration of one exchange",
		Long: `Build one exchange on the configured endpoint and resolve its
security configuration.

Message properties are given with --set key=value and override the
endpoint properties and static options of the configuration file, e.g.

  wssec resolve --config wssec.yaml \
    --set security.timestamp.timeToLive=600 \
    --set security.subject.cert.constraints="CN=Alice.*, CN=Bob"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseSets(sets)
			if err != nil {
				return err
			}
			if policyFile != "" {
				aim, err := readPolicy(policyFile)
				if err != nil {
					return err
				}
				props[policy.AssertionMapKey] = aim
			}

			fileCfg, err := cfg.Load()
			if err != nil {
				return err
			}
			rt, err := NewRuntime(fileCfg, cmd.ErrOrStderr(), cfg.Verbose)
			if err != nil {
				return err
			}

			ex := rt.NewExchange(props, requestor)
			printVerbose(cmd, cfg, "resolving exchange %s on endpoint %q", ex.ID(), rt.Endpoint.Name())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			resolved, err := rt.Interceptor.Build(ctx, ex)
			if err != nil {
				return fmt.Errorf("failed to resolve security configuration: %w", err)
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSecurityProperties(resolved.View())
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "message property as key=value (repeatable)")
	cmd.Flags().StringVar(&policyFile, "policy", "", "WS-SecurityPolicy document applied to the exchange")
	cmd.Flags().BoolVar(&requestor, "requestor", false, "resolve on the client side of the exchange")
	return cmd
}

// parseSets turns key=value pairs into message properties.
func parseSets(sets []string) (map[string]any, error) {
	props := make(map[string]any, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", s)
		}
		props[key] = value
	}
	return props, nil
}

func readPolicy(path string) (*policy.AssertionMap, error) {
	// #nosec G304 - Policy file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return policy.Parse(data)
}
