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

	"github.com/jeremyhahn/go-wssec/pkg/health"
	"github.com/jeremyhahn/go-wssec/pkg/message"
	"github.com/jeremyhahn/go-wssec/pkg/wss"
)

// Check names.
const (
	CheckConfiguration    = "configuration"
	CheckSignatureCrypto  = "signature-crypto"
	CheckEncryptionCrypto = "encryption-crypto"
	CheckPassword         = "password"
)

func newCheckCmd(cfg *Config) *cobra.Command {
	var (
		sets      []string
		requestor bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that the configured actions can be served",
		Long: `Resolve one exchange and report whether the configured actions have
the crypto and password material they need. Exits non-zero when the
configuration cannot be resolved at all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseSets(sets)
			if err != nil {
				return err
			}
			fileCfg, err := cfg.Load()
			if err != nil {
				return err
			}
			rt, err := NewRuntime(fileCfg, cmd.ErrOrStderr(), cfg.Verbose)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ex := rt.NewExchange(props, requestor)
			report := rt.Checker(ctx, ex).Report(ctx)
			if err := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintReport(report); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("check failed: %s", report.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "message property as key=value (repeatable)")
	cmd.Flags().BoolVar(&requestor, "requestor", false, "check the client side of the exchange")
	return cmd
}

// Checker resolves ex once and returns checks over the result.
func (r *Runtime) Checker(ctx context.Context, ex *message.Exchange) *health.Checker {
	resolved, buildErr := r.Interceptor.Build(ctx, ex)

	c := health.NewChecker()
	c.RegisterCheck(CheckConfiguration, func(context.Context) health.CheckResult {
		if buildErr != nil {
			return health.Unhealthy(CheckConfiguration, "security configuration could not be resolved", buildErr)
		}
		return health.Healthy(CheckConfiguration, "actions: "+orNone(actionList(resolved)))
	})
	c.RegisterCheck(CheckSignatureCrypto, func(context.Context) health.CheckResult {
		if buildErr != nil {
			return health.Unhealthy(CheckSignatureCrypto, "skipped", buildErr)
		}
		if resolved.SignatureCrypto != nil {
			return health.Healthy(CheckSignatureCrypto, resolved.SignatureCrypto.Name())
		}
		if a := firstAction(resolved, wss.ActionSignature, wss.ActionSignatureDerived, wss.ActionSAMLTokenSigned); a != "" {
			return health.Degraded(CheckSignatureCrypto, fmt.Sprintf("%s configured without signature crypto", a))
		}
		return health.Healthy(CheckSignatureCrypto, "not configured")
	})
	c.RegisterCheck(CheckEncryptionCrypto, func(context.Context) health.CheckResult {
		if buildErr != nil {
			return health.Unhealthy(CheckEncryptionCrypto, "skipped", buildErr)
		}
		if resolved.EncryptionCrypto != nil {
			return health.Healthy(CheckEncryptionCrypto, resolved.EncryptionCrypto.Name())
		}
		if a := firstAction(resolved, wss.ActionEncrypt, wss.ActionEncryptDerived); a != "" {
			return health.Degraded(CheckEncryptionCrypto, fmt.Sprintf("%s configured without encryption crypto", a))
		}
		return health.Healthy(CheckEncryptionCrypto, "not configured")
	})
	c.RegisterCheck(CheckPassword, func(context.Context) health.CheckResult {
		if buildErr != nil {
			return health.Unhealthy(CheckPassword, "skipped", buildErr)
		}
		if resolved.CallbackHandler != nil {
			return health.Healthy(CheckPassword, fmt.Sprintf("callback handler %T", resolved.CallbackHandler))
		}
		if a := firstAction(resolved, wss.ActionUsernameToken, wss.ActionUsernameTokenSignature, wss.ActionSignature); a != "" {
			return health.Degraded(CheckPassword, fmt.Sprintf("%s configured without a callback handler or password", a))
		}
		return health.Healthy(CheckPassword, "not required")
	})
	return c
}

func firstAction(p *wss.SecurityProperties, actions ...wss.Action) wss.Action {
	for _, a := range actions {
		if p.HasAction(a) {
			return a
		}
	}
	return ""
}

func actionList(p *wss.SecurityProperties) string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, " ")
}
