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

package main

import (
	"os"

	"github.com/jeremyhahn/go-wssec/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		printer := cli.NewPrinter(os.Getenv(cli.EnvPrefix+"_OUTPUT"), os.Stderr)
		_ = printer.PrintError(err) // Error printing to stderr is best-effort
		os.Exit(1)
	}
}
