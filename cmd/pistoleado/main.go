// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/opslatam/pistoleado/internal/api"
	"github.com/opslatam/pistoleado/internal/audio"
	"github.com/opslatam/pistoleado/internal/bus"
	"github.com/opslatam/pistoleado/internal/config"
	"github.com/opslatam/pistoleado/internal/journal"
	plog "github.com/opslatam/pistoleado/internal/log"
	"github.com/opslatam/pistoleado/internal/pipeline"
	"github.com/opslatam/pistoleado/internal/session"
	"github.com/opslatam/pistoleado/internal/shipment"
	"github.com/opslatam/pistoleado/internal/stats"
)

var (
	version   = "v1.2.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		plog.Configure(plog.Config{Level: "info", Version: version})
		logger := plog.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str(plog.FieldPath, *configPath).
			Msg("failed to load configuration")
	}

	plog.Configure(plog.Config{
		Level:   cfg.LogLevel,
		Version: version,
	})
	logger := plog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str(plog.FieldPath, cfg.DataDir).Msg("cannot create data directory")
	}

	backend, err := session.OpenBackend(session.BackendConfig{
		Backend:   cfg.Store.Backend,
		Path:      cfg.SessionPath(),
		RedisAddr: cfg.Store.RedisAddr,
		RedisDB:   cfg.Store.RedisDB,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(plog.FieldBackend, cfg.Store.Backend).
			Msg("cannot open session backend")
	}
	store := session.NewStore(backend)
	defer func() { _ = store.Close() }()

	jour, err := journal.Open(cfg.JournalPath())
	if err != nil {
		// The journal is an audit aid, not a dependency. Scan handling
		// continues without it.
		logger.Warn().Err(err).Str(plog.FieldPath, cfg.JournalPath()).Msg("journal disabled")
		jour = nil
	} else {
		defer func() { _ = jour.Close() }()
	}

	client := shipment.New(cfg.RemoteURL)
	b := bus.New()
	refresher := stats.NewRefresher(client)
	pipe := pipeline.New(store, client, b, refresher, jour, cfg.Operator)

	if cfg.Provider != "" && store.Provider() == "" {
		pipe.SelectProvider(ctx, cfg.Provider)
	}

	holder := config.NewHolder(cfg, *configPath)
	changes := make(chan config.Config, 1)
	holder.Subscribe(changes)

	// Audio mute combines the per-session toggle with the static config
	// switch. Both are read on every cue.
	player := audio.NewPlayer(cfg.Audio.Dir, &audio.ExecSink{
		Binary: cfg.Audio.Player,
		Args:   cfg.Audio.Args,
	})
	enabled := func() bool {
		return store.AudioEnabled() && holder.Get().Audio.Enabled
	}
	outcomes := b.Subscribe(bus.TopicOutcomes)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(pipe, store, refresher, client).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("addr", cfg.Listen).
		Str(plog.FieldBackend, cfg.Store.Backend).
		Str(plog.FieldBaseURL, cfg.RemoteURL).
		Msg("starting pistoleado")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		audio.NewSubscriber(player, enabled).Run(outcomes)
		return nil
	})

	g.Go(func() error {
		return holder.Watch(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case next := <-changes:
				if lvl, err := zerolog.ParseLevel(next.LogLevel); err == nil {
					zerolog.SetGlobalLevel(lvl)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		_ = outcomes.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Msg("server exiting")
}
