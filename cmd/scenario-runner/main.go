package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/realty-voice-platform/cmd/mainconfig"
	"github.com/wolfman30/realty-voice-platform/internal/api/router"
	"github.com/wolfman30/realty-voice-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/realty-voice-platform/internal/config"
	"github.com/wolfman30/realty-voice-platform/internal/http/handlers"
	"github.com/wolfman30/realty-voice-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-voice-platform/internal/prompts"
	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/internal/voiceagent"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

func main() {
	cfg := mainconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scenario runner",
		"env", cfg.Env,
		"port", cfg.Port,
		"scenarios_dir", cfg.ScenariosDir,
		"prompts_dir", cfg.PromptsDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scenario runner failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	model, err := bootstrap.BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("build llm: %w", err)
	}
	defer model.Close()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	hist := bootstrap.BuildHistoryStore(pool)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	library := prompts.NewLibrary(cfg.PromptsDir)
	catalog, err := scenario.NewFileStore(cfg.ScenariosDir, logger.Component("catalog"))
	if err != nil {
		return err
	}

	var agents scenario.AgentFactory = voiceagent.NewScriptedFactory(library, logger.Component("agent"))
	if model.Client != nil {
		agents = voiceagent.NewLLMFactory(model.Client, model.Model, library, cfg.MaxToolIterations, logger.Component("agent"))
	}
	judge, err := scenario.NewIntentJudge(cfg.IntentJudgeStrategy, model.Client, model.Model, logger.Component("judge"))
	if err != nil {
		return err
	}

	runner := scenario.NewRunner(catalog, agents, logger.Component("runner"),
		scenario.WithJudge(judge),
		scenario.WithHistory(hist),
		scenario.WithReportSink(bootstrap.BuildReportPublisher(cfg, awsCfg, logger.Component("reports"))),
		scenario.WithRunnerMetrics(metrics.NewScenarioMetrics(reg)),
		scenario.WithTimeout(cfg.ScenarioTimeout),
	)

	handler := handlers.NewRunnerHandler(handlers.RunnerDeps{
		Catalog:   catalog,
		Runner:    runner,
		Generator: scenario.NewGenerator(model.Client, model.Model, library, logger.Component("generator")),
		Prompts:   library,
		History:   hist,
		Logger:    logger,
	})

	var staticTokens []string
	if cfg.RunnerToken != "" {
		staticTokens = append(staticTokens, cfg.RunnerToken)
	}
	r := router.New(ctx, &router.Config{
		Logger:             logger,
		Runner:             handler,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		ServiceJWTSecret:   cfg.ServiceJWTSecret,
		ServiceTokens:      staticTokens,
	})

	// run-all can take minutes, so the write timeout follows the scenario timeout
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ScenarioTimeout*10 + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
