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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-wssec/pkg/callback"
	"github.com/jeremyhahn/go-wssec/pkg/password"
)

func newEncryptPasswordCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	var decrypt bool

	cmd := &cobra.Command{
		Use:   "encrypt-password <password>",
		Short: "Encrypt a keystore password for a crypto properties file",
		Long: `Encrypt a password with the master password and print it in the
ENC(...) form accepted by keystore and truststore password properties.
With --decrypt, an ENC(...) value is decrypted instead.

The master password is read from --master-password or
WSSEC_MASTER_PASSWORD.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			master := v.GetString("master-password")
			if master == "" {
				return fmt.Errorf("master password is required (--master-password or %s_MASTER_PASSWORD)", EnvPrefix)
			}
			enc := password.NewCallbackEncryptor(callback.NewPasswordHandler(master))
			printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if decrypt {
				value := args[0]
				if !password.IsEncrypted(value) {
					value = password.Wrap(value)
				}
				plain, err := password.Reveal(ctx, enc, value)
				if err != nil {
					return fmt.Errorf("failed to decrypt password: %w", err)
				}
				return printer.PrintPassword("password", plain)
			}

			encrypted, err := enc.Encrypt(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to encrypt password: %w", err)
			}
			return printer.PrintPassword("encrypted", password.Wrap(encrypted))
		},
	}

	cmd.Flags().String("master-password", "", "master password used to derive the encryption key")
	cmd.Flags().BoolVar(&decrypt, "decrypt", false, "decrypt an ENC(...) value instead")
	_ = v.BindPFlag("master-password", cmd.Flags().Lookup("master-password"))
	return cmd
}
