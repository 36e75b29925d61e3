package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"srv6lab/internal/controller"
	"srv6lab/internal/lifecycle"
	"srv6lab/internal/metrics"
	"srv6lab/internal/session"
)

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	g, diags, err := buildGraph(cfg)
	if err != nil {
		return err
	}
	for _, d := range diags {
		logger.Warn(d.Message, "node", d.Node)
	}

	reg := metrics.NewRegistry()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		atexit.Register(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	orch := lifecycle.New(g, lifecycle.Options{
		Engine: engine,
		Attacher: &controller.ONOS{
			NetcfgPath: cfg.Netcfg(),
			Logger:     logger,
		},
		Session:  session.NewConsole(os.Stdin, os.Stdout, &session.NSExecutor{}, logger),
		Endpoint: controller.EndpointFromConfig(cfg.Controller),
		Metrics:  reg,
		Logger:   logger,
	})

	err = orch.Execute(context.Background())
	var ie *lifecycle.EngineInstantiationError
	if errors.As(err, &ie) {
		atexit.Fatalf("Error: %v\nLeftover entities can be removed with 'srv6lab cleanup'.\n", ie)
	}
	return err
}

func metricsMux(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	return mux
}
