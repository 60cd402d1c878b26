package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/content"
	"github.com/mcdev12/quizrush/go/internal/dbconfig"
	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/gateway"
	"github.com/mcdev12/quizrush/go/internal/registry"
	"github.com/mcdev12/quizrush/go/internal/results"
	"github.com/mcdev12/quizrush/go/internal/room"
)

type Services struct {
	Gateway  *gateway.Service
	Rooms    *registry.Registry
	Results  *results.Dispatcher
	NATS     *results.NATSPublisher
	Postgres *results.PostgresStore
}

// setupServices wires the process:
// content bank → registry (rooms publish to gateway + NATS, results to sinks) → gateway.
func setupServices(ctx context.Context, config Config) (*Services, error) {
	bank, err := content.LoadYAMLBank(config.QuestionBank)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	sets, _ := bank.Sets(ctx)
	log.Info().Str("path", config.QuestionBank).Int("sets", len(sets)).Msg("question bank loaded")

	s := &Services{}
	recorders := results.Multi{results.LogRecorder{}}
	publishers := events.Fanout{}

	if config.ResultsDB {
		dbCfg := dbconfig.NewConfigFromEnv()
		store, err := results.NewPostgresStore(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("setup results store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("setup results schema: %w", err)
		}
		log.Info().Str("database", dbCfg.Database).Str("host", dbCfg.Host).Msg("results store connected")
		s.Postgres = store
		recorders = append(recorders, store)
	}

	if config.NATSURL != "" {
		natsCfg := results.DefaultNATSConfig()
		natsCfg.URL = config.NATSURL
		publisher, err := results.NewNATSPublisher(ctx, natsCfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("setup NATS publisher: %w", err)
		}
		s.NATS = publisher
		recorders = append(recorders, publisher)
	}

	s.Results = results.NewDispatcher(recorders, 0)

	gwConfig := gateway.DefaultConfig()
	gwConfig.DefaultSettings = config.Room
	gwConfig.DefaultQuestionSet = config.DefaultQuestionSet
	gwConfig.CreateRateLimit = config.CreateRateLimit
	gwConfig.JWTSecret = config.JWTSecret

	cm := gateway.NewConnectionManager(gwConfig.Connection)
	publishers = append(publishers, cm)
	if s.NATS != nil {
		publishers = append(publishers, s.NATS)
	}

	s.Rooms = registry.New(room.Options{
		Clock:      clockwork.NewRealClock(),
		Publisher:  publishers,
		OnFinished: s.Results.Dispatch,
	})
	s.Gateway = gateway.NewService(gwConfig, cm, s.Rooms, bank)
	return s, nil
}

// Close releases the sinks. Rooms must already be closed so no further
// results are dispatched.
func (s *Services) Close() {
	if s.Results != nil {
		s.Results.Wait()
	}
	if s.NATS != nil {
		if err := s.NATS.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS connection")
		}
	}
	if s.Postgres != nil {
		s.Postgres.Close()
	}
}
