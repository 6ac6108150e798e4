package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"steadyrate/internal/target"
)

const defaultSecret = "steadyrate-dev-secret"

var (
	targetAddr  string
	targetScale float64
	secret      string
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Run a local server to aim load tests at",
	Long: `Serves GET /api/info behind JWT bearer auth (mint a token with
"steadyrate token"), plus /fast, /slow, /spike and /error demo endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return target.Serve(ctx, target.ServerConfig{
			Addr:   targetAddr,
			Secret: secretValue(),
			Scale:  targetScale,
		}, logger)
	},
}

// secretValue prefers the flag, then STEADYRATE_TARGET_SECRET.
func secretValue() string {
	if secret != "" {
		return secret
	}
	if s := v.GetString("target.secret"); s != "" {
		return s
	}
	return defaultSecret
}

func init() {
	targetCmd.Flags().StringVarP(&targetAddr, "addr", "a", ":8080", "listen address")
	targetCmd.Flags().Float64Var(&targetScale, "scale", 1, "multiplier for the artificial delays")
	targetCmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (env STEADYRATE_TARGET_SECRET)")
}
