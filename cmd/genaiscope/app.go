package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/genaiscope/config"
	"github.com/BaSui01/genaiscope/internal/metrics"
	"github.com/BaSui01/genaiscope/internal/server"
	"github.com/BaSui01/genaiscope/internal/telemetry"
	"github.com/BaSui01/genaiscope/llm/observability"
	"github.com/BaSui01/genaiscope/llm/providers/openai"
)

const shutdownTimeout = 5 * time.Second

// app 持有一次命令执行所需的全部组件。
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers
	registry  *prometheus.Registry
	client    *openai.Client
	metrics   *server.Manager
}

// telemetryOptions 供测试替换，例如把 stdout 导出器重定向到缓冲区。
var telemetryOptions []telemetry.Option

// newApp 加载配置并装配 logger、OTel providers、Prometheus registry 与客户端。
func newApp(ctx context.Context, configPath string) (*app, error) {
	loader := config.NewLoader().WithValidator(func(c *config.Config) error { return c.Validate() })
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logger := initLogger(cfg.Log)
	logger.Debug("starting GenAIScope",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger, telemetryOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	recorder, err := observability.NewMetricRecorder(providers.MeterProvider())
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("create metric recorder: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry, cfg.Metrics.Namespace, logger)

	client, err := openai.New(openai.Config{
		BaseURL:      cfg.Client.BaseURL,
		APIKey:       cfg.Client.APIKey,
		Organization: cfg.Client.Organization,
		Timeout:      cfg.Client.Timeout,
		RateLimit:    cfg.Client.RateLimit,
		Burst:        cfg.Client.Burst,
		MaxRetries:   cfg.Client.MaxRetries,
	}, logger,
		openai.WithObservability(observability.Options{
			Tracer:        observability.NewTracer(providers.TracerProvider()),
			Recorder:      recorder,
			RecordEvents:  cfg.Telemetry.RecordEvents,
			RecordContent: cfg.Telemetry.RecordContent,
			Logger:        logger,
		}),
		openai.WithCollector(collector),
	)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		providers: providers,
		registry:  registry,
		client:    client,
	}
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.ListenAddr
		a.metrics = server.NewManager(mux, srvCfg, logger)
	}
	return a, nil
}

// execute 运行 fn；启用指标时同时在后台提供 /metrics，fn 结束后关闭服务。
func (a *app) execute(ctx context.Context, fn func(context.Context) error) error {
	if a.metrics == nil {
		return fn(ctx)
	}

	if err := a.metrics.Start(); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	defer func() {
		if err := a.metrics.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}()

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return fn(gctx)
	})
	g.Go(func() error {
		select {
		case err := <-a.metrics.Errors():
			return fmt.Errorf("metrics server: %w", err)
		case <-done:
			return nil
		}
	})
	return g.Wait()
}

// close 刷新遥测数据并同步日志。
func (a *app) close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := a.providers.Shutdown(shutdownCtx)
	_ = a.logger.Sync()
	return err
}
