package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deepcision/deepcision/internal/agents"
	"github.com/deepcision/deepcision/internal/core"
	prov "github.com/deepcision/deepcision/internal/providers"
	ds "github.com/deepcision/deepcision/internal/providers/deepseek"
	or "github.com/deepcision/deepcision/internal/providers/openrouter"
	tv "github.com/deepcision/deepcision/internal/providers/tavily"
	"github.com/deepcision/deepcision/internal/server"
	"github.com/deepcision/deepcision/internal/telemetry"
)

var version = "1.0.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := core.LoadConfig(os.Getenv("DEEPCISION_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	reg := prov.NewRegistry()
	if cfg.Providers.DeepSeek.APIKey != "" {
		reg.Register(ds.New(cfg))
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		p, err := or.New(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		reg.Register(p)
	}
	if len(reg.Names()) == 0 {
		fmt.Fprintln(os.Stderr, "no providers configured; set DEEPSEEK_API_KEY or OPENROUTER_API_KEY")
		os.Exit(1)
	}

	var searcher prov.Searcher
	if cfg.Providers.Tavily.APIKey != "" {
		searcher = tv.New(cfg)
	}

	roles := agents.NewManager(cfg.Roles.TemplatePath)
	if err := roles.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store, err := core.NewStore(cfg.Cache.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	cache, err := core.NewCache(store, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	engine := core.NewEngine(cfg, reg, searcher, roles, cache, store)

	telemetry.InitGlobal(cfg.Telemetry.Enabled, cfg.Telemetry.OTLPEndpoint)
	perfMon := telemetry.NewPerformanceMonitor(telemetry.GetGlobal(), cfg.Telemetry.Enabled)
	engine.SetPerformanceMonitor(perfMon)

	var monitoring *telemetry.MonitoringServer
	if cfg.Telemetry.Enabled {
		addr := fmt.Sprintf(":%d", cfg.Telemetry.MonitoringPort)
		monitoring = telemetry.NewMonitoringServer(addr, telemetry.GetGlobal(), perfMon)
		for name, check := range telemetry.DefaultHealthChecks() {
			monitoring.RegisterHealthCheck(name, check)
		}
		monitoring.RegisterHealthCheck("providers", func() telemetry.HealthCheck {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			details := map[string]string{}
			status := telemetry.HealthStatusHealthy
			for name, err := range engine.Health(ctx) {
				if err != nil {
					details[name] = err.Error()
					status = telemetry.HealthStatusDegraded
				} else {
					details[name] = "ok"
				}
			}
			return telemetry.HealthCheck{
				Name:    "providers",
				Status:  status,
				Message: fmt.Sprintf("%d providers registered", len(reg.Names())),
				Details: details,
			}
		})
		go func() {
			if err := monitoring.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("monitoring server failed")
			}
		}()
	}

	srv := server.New(version, engine, cache, roles, cfg.Server.AuthToken)
	mtls := server.LoadMTLSConfig()

	go func() {
		var err error
		if mtls.ServerCert != "" && mtls.ServerKey != "" {
			err = srv.ListenAndServeTLS(cfg.Server.Addr, mtls)
		} else {
			err = srv.ListenAndServe(cfg.Server.Addr)
		}
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}()
	log.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("deepcisiond listening")

	// Periodic cache sweep keeps the store from accumulating expired rows.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n, err := cache.Sweep(sweepCtx); err != nil {
					log.Warn().Err(err).Msg("cache sweep failed")
				} else if n > 0 {
					log.Info().Int64("removed", n).Msg("cache sweep")
				}
				if entries, bytes, err := store.CacheUsage(sweepCtx); err == nil {
					perfMon.RecordCacheMetrics(entries, bytes)
				}
			}
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("deepcisiond shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if monitoring != nil {
		_ = monitoring.Shutdown(ctx)
	}
	perfMon.Shutdown()
	_ = telemetry.Shutdown()
}
