package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"steadyrate/internal/cli"
	"steadyrate/internal/config"
	"steadyrate/internal/promexport"
	"steadyrate/internal/report"
	"steadyrate/internal/runner"
	"steadyrate/internal/storage"
)

var (
	headers     []string
	thresholds  []string
	outPrefix   string
	metricsAddr string
	saveHistory bool
	historyPath string
	useTUI      bool
)

// flag name -> config key
var runBindings = map[string]string{
	"executor":          "scenario.executor",
	"rate":              "scenario.rate",
	"time-unit":         "scenario.timeUnit",
	"duration":          "scenario.duration",
	"pre-allocated-vus": "scenario.preAllocatedVUs",
	"max-vus":           "scenario.maxVUs",
	"vus":               "scenario.vus",
	"graceful-stop":     "scenario.gracefulStop",
	"url":               "request.url",
	"method":            "request.method",
	"body":              "request.body",
	"timeout":           "request.timeout",
	"insecure":          "request.insecureSkipVerify",
	"sleep":             "sleep",
	"eval-interval":     "evaluationInterval",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test",
	Example: `  steadyrate run --url http://localhost:8080/api/info --rate 1000 --duration 10s \
    -H "Authorization: Bearer ${STEADYRATE_TOKEN}" \
    --threshold "http_req_duration:p(95)<50" --threshold "http_req_failed:rate<0.0001"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(v, cmd.Flags())
		if err != nil {
			return &report.ExitErr{Code: report.ExitInvalidConfig, Err: err}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep, err := execute(ctx, cfg)
		if rep != nil {
			persist(rep)
		}
		if code := report.ExitCode(rep, err); code != report.ExitOK {
			return &report.ExitErr{Code: code, Err: err}
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	d := config.Default()

	f.String("executor", d.Scenario.Executor, "constant-arrival-rate or constant-vus")
	f.IntP("rate", "r", d.Scenario.Rate, "iterations started per time unit")
	f.Duration("time-unit", d.Scenario.TimeUnit, "period the rate is expressed in")
	f.DurationP("duration", "d", d.Scenario.Duration, "how long to keep scheduling")
	f.Int("pre-allocated-vus", d.Scenario.PreAllocatedVUs, "callers created up front")
	f.Int("max-vus", d.Scenario.MaxVUs, "upper bound the pool may grow to")
	f.Int("vus", d.Scenario.VUs, "callers for constant-vus")
	f.Duration("graceful-stop", d.Scenario.GracefulStop, "time in-flight iterations get after the duration ends")
	f.StringP("url", "u", d.Request.URL, "target URL")
	f.StringP("method", "X", d.Request.Method, "HTTP method")
	f.StringP("body", "b", "", "request body")
	f.Duration("timeout", d.Request.Timeout, "per-request timeout")
	f.Bool("insecure", false, "skip TLS verification")
	f.Duration("sleep", d.Sleep, "pause after each iteration")
	f.Duration("eval-interval", d.EvaluationInterval, "how often abortOnFail thresholds are checked")

	f.StringArrayVarP(&headers, "header", "H", nil, `HTTP header, "Key: Value" (repeatable)`)
	f.StringArrayVar(&thresholds, "threshold", nil, `threshold, "metric:expression" (repeatable)`)
	f.StringVarP(&outPrefix, "out", "o", "", "write prefix.csv, prefix.json and prefix_summary.json")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	f.BoolVar(&saveHistory, "history", false, "save the run summary to the history database")
	f.StringVar(&historyPath, "history-db", "", "history database path (default ~/.steadyrate/history.db)")
	f.BoolVar(&useTUI, "tui", false, "show the interactive live view")
}

// loadConfig layers flags over env over the scenario file over defaults.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet) (config.Config, error) {
	for name, key := range runBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return config.Config{}, fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}

	extra, err := config.ParseHeaders(headers)
	if err != nil {
		return config.Config{}, err
	}
	for k, val := range extra {
		cfg.Request.Headers[k] = val
	}
	cfg.ThresholdFlags = thresholds
	cfg.KeepSamples = outPrefix != ""
	return cfg, nil
}

func execute(ctx context.Context, cfg config.Config) (*runner.Report, error) {
	r, err := runner.NewRunner(cfg, make(runner.StatsUpdateChan, 100), logger)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	expCtx, stopExporter := context.WithCancel(gctx)
	defer stopExporter()

	if metricsAddr != "" {
		exp := promexport.New()
		r.Stats.AddObserver(exp)
		g.Go(func() error { return exp.Serve(expCtx, metricsAddr, logger) })
	}

	var rep *runner.Report
	g.Go(func() error {
		defer stopExporter()
		var err error
		if useTUI {
			rep, err = cli.Interactive(gctx, r)
		} else {
			rep, err = cli.Headless(gctx, r, os.Stdout)
		}
		return err
	})
	err = g.Wait()
	return rep, err
}

// persist writes exports and history. Failures here do not change the verdict.
func persist(rep *runner.Report) {
	if outPrefix != "" {
		if err := report.ExportAll(rep, outPrefix); err != nil {
			logger.Error("export failed", "prefix", outPrefix, "err", err)
		} else {
			fmt.Printf("💾 Reports saved to %s.{csv,json} and %s_summary.json\n", outPrefix, outPrefix)
		}
	}
	if !saveHistory {
		return
	}
	store, err := openHistory()
	if err != nil {
		logger.Error("open history", "err", err)
		return
	}
	defer store.Close()
	item := storage.HistoryItem{ID: rep.ID, Timestamp: rep.Started, Summary: report.Summarize(rep)}
	if err := store.Save(item); err != nil {
		logger.Error("save history", "id", rep.ID, "err", err)
	}
}

func openHistory() (*storage.Store, error) {
	path := historyPath
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return storage.NewStore(path)
}
