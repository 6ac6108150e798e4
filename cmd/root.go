package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"steadyrate/internal/banner"
	"steadyrate/internal/config"
	"steadyrate/internal/logging"
	"steadyrate/internal/report"
)

var (
	cfgFile  string
	logLevel string

	v      *viper.Viper
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "steadyrate",
	Short: "steadyrate - constant arrival-rate HTTP load generator",
	Long: `
steadyrate issues HTTP requests at a fixed arrival rate from a bounded pool
of virtual callers, then grades the run against pass/fail thresholds.

Exit codes: 0 pass, 99 thresholds failed, 104 invalid configuration,
105 aborted by an abortOnFail threshold, 1 anything else.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if logger, err = logging.Setup(logLevel); err != nil {
			return &report.ExitErr{Code: report.ExitInvalidConfig, Err: err}
		}
		v = config.NewViper()
		if err := config.ReadFile(v, cfgFile); err != nil {
			return &report.ExitErr{Code: report.ExitInvalidConfig, Err: err}
		}
		return nil
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		_ = cmd.Usage()
	})

	err := rootCmd.Execute()
	if err == nil {
		return
	}
	code := report.ExitError
	var exitErr *report.ExitErr
	if errors.As(err, &exitErr) {
		code = exitErr.Code
		err = exitErr.Err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "scenario file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd, validateCmd, targetCmd, tokenCmd, historyCmd)
}
