// Command tourney ranks candidate texts with an Elo tournament judged by an
// LLM.
//
// Usage:
//
//	tourney -candidates proposals.yaml
//	tourney -config tourney.yaml -candidates proposals.yaml -strategy swiss -format yaml
//	TOURNEY_JUDGE__PROVIDER=openai TOURNEY_JUDGE__MODEL=gpt-4o-mini \
//	    TOURNEY_JUDGE__API_KEY=sk-... tourney -candidates proposals.yaml -metrics-file run.prom
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tourney/infrastructure/judge"
	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/infrastructure/middleware"
	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "tourney: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line flags.
type options struct {
	configPath     string
	candidatesPath string
	strategy       string
	seed           uint64
	format         string
	metricsFile    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("tourney", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (default $"+application.EnvConfigPath+")")
	fs.StringVar(&opts.candidatesPath, "candidates", "", "YAML list of candidate texts (required)")
	fs.StringVar(&opts.strategy, "strategy", "", "pairing strategy: random, round_robin or swiss")
	fs.Uint64Var(&opts.seed, "seed", 0, "seed for random pairing")
	fs.StringVar(&opts.format, "format", "json", "output format: json or yaml")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.candidatesPath == "" {
		return opts, errors.New("-candidates is required")
	}
	if opts.format != "json" && opts.format != "yaml" {
		return opts, fmt.Errorf("-format must be json or yaml, got %q", opts.format)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := application.LoadConfig(ctx, opts.configPath)
	if err != nil {
		return err
	}
	if opts.strategy != "" {
		cfg.Tournament.Strategy = opts.strategy
	}
	if opts.seed != 0 {
		cfg.Tournament.Seed = opts.seed
	}
	if opts.metricsFile != "" {
		cfg.Metrics.File = opts.metricsFile
	}
	if err := application.ValidateConfig(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	var metrics ports.MetricsCollector = ports.NopMetrics{}
	if cfg.Metrics.Enabled || cfg.Metrics.File != "" {
		registry.MustRegister(collectors.NewGoCollector())
		metrics = middleware.NewPrometheusMetrics(middleware.WithRegisterer(registry))
	}

	candidates, err := application.LoadCandidates(opts.candidatesPath)
	if err != nil {
		return err
	}

	j, err := buildJudge(cfg, metrics, logger)
	if err != nil {
		return err
	}

	tourOpts, err := cfg.Tournament.TournamentOptions()
	if err != nil {
		return err
	}
	tourOpts = append(tourOpts, application.WithLogger(logger), application.WithMetrics(metrics))

	tour, err := application.NewTournament(j, tourOpts...)
	if err != nil {
		return err
	}
	res := tour.Run(ctx, candidates)

	if err := writeReport(stdout, opts.format, newReport(cfg.Tournament.Strategy, res)); err != nil {
		return err
	}

	if cfg.Metrics.File != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.File, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		logger.Info("metrics written", zap.String("path", cfg.Metrics.File))
	}
	return nil
}

// newLogger builds a zap logger writing to w at the configured level.
func newLogger(cfg application.LogConfig, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(ec)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// buildJudge assembles provider client, middleware, LLM judge, budget and
// position swap, innermost first.
func buildJudge(cfg *application.Config, metrics ports.MetricsCollector, logger *zap.Logger) (ports.Judge, error) {
	jc := cfg.Judge

	middlewares := []llm.Middleware{
		llm.TracingMiddleware(jc.Provider),
		llm.MetricsMiddleware(metrics, jc.Provider),
	}
	if jc.Retry.MaxAttempts > 0 {
		middlewares = append(middlewares, llm.RetryMiddleware(
			jc.Retry.MaxAttempts,
			time.Duration(jc.Retry.InitialWaitMS)*time.Millisecond,
			time.Duration(jc.Retry.MaxWaitMS)*time.Millisecond,
		))
	}
	if jc.CircuitBreaker.MaxFailures > 0 {
		middlewares = append(middlewares, llm.CircuitBreakerMiddlewareWithMetrics(
			jc.CircuitBreaker.MaxFailures,
			time.Duration(jc.CircuitBreaker.CooldownSeconds)*time.Second,
			middleware.NewCircuitBreakerMetrics(metrics, jc.Provider),
		))
	}
	if jc.RateLimit.RequestsPerSecond > 0 {
		middlewares = append(middlewares, llm.RateLimitMiddleware(rate.Limit(jc.RateLimit.RequestsPerSecond), jc.RateLimit.Burst))
	}
	timeout := time.Duration(jc.TimeoutSeconds) * time.Second
	middlewares = append(middlewares, llm.TimeoutMiddleware(timeout))

	temperature := jc.Temperature
	client, err := llm.NewClient(jc.Provider, llm.ClientConfig{
		APIKey:      jc.APIKey,
		Model:       jc.Model,
		BaseURL:     jc.BaseURL,
		Timeout:     timeout,
		MaxTokens:   jc.MaxTokens,
		Temperature: &temperature,
		Middleware:  middlewares,
	})
	if err != nil {
		return nil, err
	}

	var j ports.Judge
	j, err = judge.NewLLMJudge(client, judge.Config{
		Mode:        judge.Mode(jc.Mode),
		Temperature: jc.Temperature,
		MaxTokens:   jc.MaxTokens,
	}, logger)
	if err != nil {
		return nil, err
	}

	budget := middleware.BudgetFromConfig(jc.Budget)
	if budget.MaxCalls > 0 || budget.MaxTokens > 0 {
		observer := middleware.NewOTelBudgetObserver(metrics, client.Model())
		j, err = middleware.NewBudgetJudge(j, budget, client, observer)
		if err != nil {
			return nil, err
		}
	}

	if jc.PositionSwap {
		weights, err := cfg.Tournament.DimensionWeights()
		if err != nil {
			return nil, err
		}
		j, err = middleware.NewPositionSwapJudge(j,
			middleware.WithSwapWeights(weights),
			middleware.WithSwapLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	return j, nil
}

// report is the printed result of a run.
type report struct {
	RunID    string            `json:"run_id" yaml:"run_id"`
	Strategy string            `json:"strategy" yaml:"strategy"`
	Ranking  []map[string]any  `json:"ranking" yaml:"ranking"`
	Stats    domain.MatchStats `json:"stats" yaml:"stats"`
}

func newReport(strategy string, res application.Result) report {
	ranking := make([]map[string]any, len(res.Ranked))
	for i, c := range res.Ranked {
		entry := domain.CandidateMap(c)
		entry["rank"] = i + 1
		ranking[i] = entry
	}
	return report{
		RunID:    res.RunID,
		Strategy: strategy,
		Ranking:  ranking,
		Stats:    res.Stats,
	}
}

func writeReport(w io.Writer, format string, r report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
