package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"steadyrate/internal/config"
	"steadyrate/internal/report"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario without sending any request",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(v, runCmd.Flags())
		if err != nil {
			return &report.ExitErr{Code: report.ExitInvalidConfig, Err: err}
		}
		for _, w := range cfg.ExpandEnv(nil) {
			logger.Warn(w)
		}
		if err := cfg.Validate(); err != nil {
			return &report.ExitErr{Code: report.ExitInvalidConfig, Err: err}
		}
		set, err := cfg.ThresholdSet()
		if err != nil {
			return &report.ExitErr{Code: report.ExitInvalidConfig, Err: err}
		}

		s := cfg.Scenario
		fmt.Println("✅ configuration valid")
		fmt.Printf("   %s %s\n", cfg.Request.Method, cfg.Request.URL)
		if s.Executor == config.ExecutorConstantVUs {
			fmt.Printf("   %s: %d VUs for %s\n", s.Executor, s.VUs, s.Duration)
		} else {
			fmt.Printf("   %s: %d per %s for %s, %d expected iterations, %d-%d VUs\n",
				s.Executor, s.Rate, s.TimeUnit, s.Duration, s.ExpectedIterations(), s.PreAllocatedVUs, s.MaxVUs)
		}
		for _, t := range set {
			abort := ""
			if t.AbortOnFail {
				abort = " (abortOnFail)"
			}
			fmt.Printf("   threshold %s: %s%s\n", t.Metric, t.Source, abort)
		}
		return nil
	},
}

func init() {
	// validate reads the same flags as run
	validateCmd.Flags().AddFlagSet(runCmd.Flags())
}
