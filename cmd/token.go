package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"steadyrate/internal/target"
)

var (
	tokenUserID   int
	tokenUsername string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token accepted by the local target",
	Example: `  export STEADYRATE_TOKEN=$(steadyrate token)
  steadyrate run -H "Authorization: Bearer ${STEADYRATE_TOKEN}"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := target.MintToken(secretValue(), tokenUserID, tokenUsername, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().IntVar(&tokenUserID, "user-id", 1, "user_id claim")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "loadtest", "username claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (env STEADYRATE_TARGET_SECRET)")
}
