package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nokia/srlinux-ndk-go/ndk"
	"github.com/openconfig/gnmic/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	agent "github.com/karimra/srl-bfd-agent"
	"github.com/karimra/srl-bfd-agent/config"
	"github.com/karimra/srl-bfd-agent/hclconf"
	"github.com/karimra/srl-bfd-agent/nb"
)

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func run(ctx context.Context) error {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	coordOpts := []nb.Option{nb.WithMetrics(nb.NewMetrics(reg))}

	var app *agent.Agent
	if cfg.StrictInterfaces {
		coordOpts = append(coordOpts, nb.WithInterfaceChecker(func(ifname string) bool {
			return app.HasInterface(ifname)
		}))
	}
	var actx context.Context
CRAGENT:
	app, actx, err = agent.New(ctx, cfg.AgentName,
		agent.WithGRPCAddress(cfg.NDKAddress),
		agent.WithRetryTimer(cfg.RetryInterval),
		agent.WithLogger(logger),
		agent.WithTelemetryPath(cfg.TelemetryPath),
		agent.WithCoordinatorOptions(coordOpts...),
	)
	if err != nil {
		logger.Warn("failed to create agent", "error", err, "retry-in", cfg.RetryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
		goto CRAGENT
	}
	ctx = actx
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to unregister agent", "error", err)
		}
	}()

	if cfg.GNMI.Address != "" || cfg.StrictInterfaces {
		if err := connectGNMI(ctx, app, cfg); err != nil {
			return err
		}
	}

	if cfg.StartupConfig != "" {
		tree, err := hclconf.Load(cfg.StartupConfig)
		if err != nil {
			return err
		}
		res, err := app.Commit(ctx, tree)
		if err != nil {
			return fmt.Errorf("startup configuration %s: %w", cfg.StartupConfig, err)
		}
		logger.Info("startup configuration loaded", "file", cfg.StartupConfig, "transaction", res.ID, "changes", len(res.Changes))
	}

	configCh, err := app.StartConfigNotificationStream(ctx)
	if err != nil {
		return err
	}
	bfdCh, err := app.StartBFDSessionNotificationStream(ctx, nil, nil, nil)
	if err != nil {
		return err
	}
	intfCh, err := app.StartInterfaceNotificationStream(ctx, "")
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.KeepAlive(gctx, cfg.KeepAliveInterval)
		return nil
	})
	for _, ch := range []chan *ndk.NotificationStreamResponse{configCh, bfdCh, intfCh} {
		g.Go(func() error {
			consume(gctx, app, logger, ch)
			return nil
		})
	}
	if cfg.MetricsAddress != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           router(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", "address", cfg.MetricsAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	return g.Wait()
}

func connectGNMI(ctx context.Context, app *agent.Agent, cfg *config.Config) error {
	tc := &types.TargetConfig{
		Name:     cfg.AgentName,
		Address:  cfg.GNMI.Address,
		Username: &cfg.GNMI.Username,
		Password: &cfg.GNMI.Password,
		Timeout:  cfg.GNMI.Timeout,
	}
	if err := app.CreateGNMIClient(ctx, tc); err != nil {
		return fmt.Errorf("gnmi client: %w", err)
	}
	if _, err := app.GetSystemInfo(ctx); err != nil {
		slog.Warn("failed to get system info", "error", err)
	}
	return app.SyncInterfaces(ctx)
}

// consume hands every notification received on ch to the agent until ch
// is closed or ctx is done.
func consume(ctx context.Context, app *agent.Agent, logger *slog.Logger, ch chan *ndk.NotificationStreamResponse) {
	for {
		select {
		case <-ctx.Done():
			return
		case rsp, ok := <-ch:
			if !ok {
				return
			}
			for _, n := range rsp.GetNotification() {
				if err := app.HandleNotification(ctx, n); err != nil {
					logger.Warn("notification handling failed", "error", err)
				}
			}
		}
	}
}

func router(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
