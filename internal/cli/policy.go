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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-wssec/pkg/policy"
)

func newPolicyCmd(cfg *Config) *cobra.Command {
	var (
		file string
		name string
	)

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Look up an assertion in a WS-SecurityPolicy document",
		Long: `Parse a WS-SecurityPolicy document and find the first assertion with
the given local name. SP 1.1 assertions are preferred over SP 1.2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			aim, err := readPolicy(file)
			if err != nil {
				return err
			}
			found := policy.FirstByLocalName(aim, name)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintAssertion(name, found, aim.Names())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "policy document (XML)")
	cmd.Flags().StringVarP(&name, "name", "n", policy.IncludeTimestamp, "assertion local name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
