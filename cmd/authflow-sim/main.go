// Command authflow-sim drives scripted identity flows against the reference
// Redis backend, one host per simulated device, and reports latencies and
// flow metrics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "authflow-sim",
		Short:   "Run scripted identity flows against the reference backend",
		Version: version,
		Long: `authflow-sim runs sign-in and sign-up flows end to end. Each flow gets its
own host and event loop; all flows share one Redis-backed identity manager.

Examples:
  # 200 mixed flows on an in-process miniredis
  authflow-sim run --flows 200

  # Only deep-link resumption against a real Redis
  authflow-sim run --scenario deeplink --redis-addr localhost:6379

  # Classify a redirect URL
  authflow-sim parse 'authflow://validate?code=123456&context=signup'`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "authflow YAML config file (AUTHFLOW_* env overrides apply)")
	root.AddCommand(newRunCmd(), newParseCmd())
	return root
}

func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
