package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"template-validator/internal/classifier"
	"template-validator/internal/common/camunda"
	"template-validator/internal/common/config"
	"template-validator/internal/common/database"
	"template-validator/internal/common/logger"
	"template-validator/internal/common/observability"
	"template-validator/internal/common/validation"
	"template-validator/internal/ratelimit"
	"template-validator/internal/validate"
	"template-validator/internal/validate/api"
	validatetemplate "template-validator/internal/workers/template/validate-template"

	kitmetrics "github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the Zeebe job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file (default: configs/config.yaml)")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	appVersion := cfg.App.Version
	if appVersion == "" {
		appVersion = version
	}

	zapLog.Info("Starting template validator...",
		zap.String("version", appVersion),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	if cfg.Tracing.Enabled {
		tracer, err := observability.NewTracer(observability.TracingOptions{
			ServiceName:    cfg.App.Name,
			Version:        appVersion,
			Environment:    cfg.App.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("tracing setup failed: %w", err)
		}
		defer func() {
			if err := tracer.Shutdown(); err != nil {
				zapLog.Error("Error flushing spans", zap.Error(err))
			}
		}()
	}

	validator, err := validation.LoadSchemaValidator(cfg.Validation.SchemaPath)
	if err != nil {
		return fmt.Errorf("schema load failed: %w", err)
	}

	classifierClient, err := classifier.NewClient(classifier.ClientOptions{
		Config:        classifier.ConfigFromApp(cfg.Classifier),
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		return err
	}

	checks := map[string]api.Checker{"classifier": classifierClient}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			if err := redis.Ping(ctx); err != nil {
				_ = redis.Close()
				return err
			}
			return nil
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return err
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")

		limiter, err = ratelimit.NewRedisLimiter(redis.GetClient(), &ratelimit.Config{
			Requests:  cfg.RateLimit.Requests,
			Window:    config.GetDuration(cfg.RateLimit.Window),
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		})
		if err != nil {
			return err
		}
		checks["redis"] = redis
	}

	counter, latency := makeMetrics("template_validator", "api")

	var svc validate.Service = validate.NewService(classifierClient)
	svc = validate.LoggingMiddleware(svc, log)
	svc = validate.MetricsMiddleware(svc, counter, latency)

	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ClientConfigFromApp(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			return err
		}
		defer func() {
			if err := zeebe.Close(); err != nil {
				zapLog.Error("Error closing Zeebe client", zap.Error(err))
			}
		}()
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe

		handler, err := validatetemplate.NewHandler(validatetemplate.HandlerOptions{
			AppConfig:     cfg,
			Camunda:       zeebe,
			Service:       svc,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			return err
		}
		if err := handler.Register(); err != nil {
			return err
		}
		defer handler.Close()
	}

	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.MakeHandler(svc, api.Options{
			ServiceName:   cfg.App.Name,
			Version:       appVersion,
			Validator:     validator,
			Limiter:       limiter,
			Checks:        checks,
			Logger:        log,
			Observability: obs,
		}),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		zapLog.Info("Shutdown signal received, stopping...")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	zapLog.Info("Template validator stopped gracefully")
	return nil
}

// makeMetrics returns the request counter and latency summary used by the service middleware.
func makeMetrics(namespace, subsystem string) (kitmetrics.Counter, kitmetrics.Histogram) {
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, []string{"method"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_latency_seconds",
		Help:      "Total duration of requests in seconds.",
	}, []string{"method"})

	return counter, latency
}
