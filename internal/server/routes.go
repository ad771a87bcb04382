package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"swapforfood/internal/broadcast"
	"swapforfood/internal/candidates"
	"swapforfood/internal/config"
	"swapforfood/internal/db"
	"swapforfood/internal/dispatch"
	"swapforfood/internal/events"
	"swapforfood/internal/metrics"
	"swapforfood/internal/publish"
	"swapforfood/internal/rooms"
	"swapforfood/internal/voting"
	"swapforfood/internal/wshub"
)

const (
	shutdownTimeout = 10 * time.Second
	sinkTimeout     = 5 * time.Second
)

// Run wires the service from cfg and serves until SIGINT or SIGTERM.
func Run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	bus := events.NewBus()
	broadcaster := broadcast.NewBroadcaster(bus)

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	registry := rooms.NewRegistry(rooms.Options{
		Metrics: m,
		Game: voting.Config{
			TimePerCandidate: cfg.TimePerCandidate(),
			Bus:              bus,
			Metrics:          m,
		},
	})
	hub := wshub.NewHub()

	srv := &Server{
		Registry:       registry,
		Dispatcher:     dispatch.New(registry, provider, nil, m),
		Hub:            hub,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Optional database archive
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database, running without archive")
		} else {
			defer database.Close()
			if err := database.Migrate(ctx); err != nil {
				log.Error().Err(err).Msg("migration failed")
			}
			srv.Games = database
			sink := broadcaster.Subscribe()
			g.Go(func() error {
				archiveGames(gctx, database, sink)
				return nil
			})
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, running without archive")
	}

	// Optional NATS announcements
	if cfg.NATSURL != "" {
		pcfg := publish.DefaultConfig()
		pcfg.URL = cfg.NATSURL
		pcfg.SubjectPrefix = cfg.NATSSubject
		pub, err := publish.NewPublisher(pcfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to NATS, running without announcements")
		} else {
			defer pub.Close()
			sink := broadcaster.Subscribe()
			g.Go(func() error {
				publishGames(gctx, pub, sink)
				return nil
			})
		}
	}

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.CloseAll()
		err := httpServer.Shutdown(shutdownCtx)
		broadcaster.Close()
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newProvider(cfg config.Config) (candidates.Provider, error) {
	switch {
	case cfg.CandidatesFile != "":
		p, err := candidates.LoadFile(cfg.CandidatesFile)
		if err != nil {
			return nil, err
		}
		log.Info().Str("file", cfg.CandidatesFile).Msg("serving candidates from file")
		return p, nil
	case cfg.GoogleMapsAPIKey != "":
		log.Info().Int("radius", cfg.PlacesRadius).Str("keyword", cfg.PlacesKeyword).Msg("serving candidates from Google Places")
		return candidates.NewPlaces(candidates.PlacesConfig{
			APIKey:  cfg.GoogleMapsAPIKey,
			Radius:  cfg.PlacesRadius,
			Keyword: cfg.PlacesKeyword,
		}), nil
	}
	log.Info().Msg("no candidate source configured, serving built-in fixtures")
	return candidates.NewStatic(candidates.Fixtures()), nil
}

type gameRecorder interface {
	RecordGame(ctx context.Context, ev events.GameEndedEvent) (int64, error)
}

// archiveGames stores every finished round until ctx ends or the sink is
// closed.
func archiveGames(ctx context.Context, store gameRecorder, sink <-chan events.GameEndedEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sink:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, sinkTimeout)
			id, err := store.RecordGame(wctx, ev)
			cancel()
			if err != nil {
				log.Error().Err(err).Str("room_code", ev.RoomCode).Msg("archiving game")
				continue
			}
			log.Debug().Int64("game_id", id).Str("room_code", ev.RoomCode).Msg("game archived")
		}
	}
}

type gamePublisher interface {
	Publish(ctx context.Context, ev events.GameEndedEvent) error
}

func publishGames(ctx context.Context, pub gamePublisher, sink <-chan events.GameEndedEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sink:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, sinkTimeout)
			err := pub.Publish(wctx, ev)
			cancel()
			if err != nil {
				log.Error().Err(err).Str("room_code", ev.RoomCode).Msg("publishing game")
			}
		}
	}
}
