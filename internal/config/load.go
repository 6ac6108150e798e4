package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. STEADYRATE_SCENARIO_RATE.
const EnvPrefix = "STEADYRATE"

// NewViper returns a viper instance preloaded with defaults and env bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("scenario.executor", d.Scenario.Executor)
	v.SetDefault("scenario.rate", d.Scenario.Rate)
	v.SetDefault("scenario.timeUnit", d.Scenario.TimeUnit)
	v.SetDefault("scenario.duration", d.Scenario.Duration)
	v.SetDefault("scenario.preAllocatedVUs", d.Scenario.PreAllocatedVUs)
	v.SetDefault("scenario.maxVUs", d.Scenario.MaxVUs)
	v.SetDefault("scenario.vus", d.Scenario.VUs)
	v.SetDefault("scenario.gracefulStop", d.Scenario.GracefulStop)
	v.SetDefault("request.method", d.Request.Method)
	v.SetDefault("request.url", d.Request.URL)
	v.SetDefault("request.timeout", d.Request.Timeout)
	v.SetDefault("sleep", d.Sleep)
	v.SetDefault("evaluationInterval", d.EvaluationInterval)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads path into v. An empty path is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// Load decodes v into a Config. Checks fall back to the default "status is
// 200" only when the key is absent.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	cfg.Checks = nil
	cfg.Request.Headers = nil
	cfg.Thresholds = nil

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	if !v.IsSet("checks") {
		cfg.Checks = Default().Checks
	}
	if cfg.Request.Headers == nil {
		cfg.Request.Headers = map[string]string{}
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = map[string][]any{}
	}
	cfg.Request.Method = strings.ToUpper(cfg.Request.Method)
	return cfg, nil
}
