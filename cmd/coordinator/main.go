package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huddlewire/huddle/internal/config"
	"github.com/huddlewire/huddle/internal/coordinator"
	"github.com/huddlewire/huddle/internal/diag"
	"github.com/huddlewire/huddle/internal/logging"
	"github.com/huddlewire/huddle/internal/server"
)

func main() {
	logging.Init()
	log := slog.Default()

	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.LoadCoordinator(*configPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	rec := diag.NewRecorder()
	rec.Observe(func(ev diag.Event) {
		log.Debug("message dropped", "reason", ev.Reason, "participant", ev.Participant, "room", ev.Room)
	})

	hub := coordinator.NewHub(log, rec)
	pairHub := coordinator.NewPairHub(log, rec)
	go pairHub.Run()

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           server.Mux(hub, pairHub, cfg.HTTP.AllowedOrigin),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("coordinator listening", "addr", cfg.HTTP.Address, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("shutdown incomplete", "err", err)
		}
	}
}
