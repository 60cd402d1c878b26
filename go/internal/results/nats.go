package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

const eventTypeGameFinished = "GameFinished"

// NATSConfig holds configuration for the NATS publisher.
type NATSConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // e.g. "quiz"
	MaxAge        time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
}

// DefaultNATSConfig returns default NATS publisher configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		StreamName:    "QUIZ_EVENTS",
		SubjectPrefix: "quiz",
		MaxAge:        7 * 24 * time.Hour,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// coreConn is the part of *nats.Conn used to mirror room events.
type coreConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher records finished games on a JetStream stream and mirrors
// room broadcasts onto core NATS subjects for dashboards.
type NATSPublisher struct {
	nc     *nats.Conn
	js     streamPublisher
	core   coreConn
	config NATSConfig
}

// Envelope is the message format on the results stream.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomCode  string          `json:"roomCode"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewNATSPublisher connects to NATS and makes sure the results stream exists.
func NewNATSPublisher(ctx context.Context, config NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("quizrush"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        config.StreamName,
		Description: "Finished quiz games",
		Subjects:    []string{config.SubjectPrefix + ".events.>"},
		Storage:     jetstream.FileStorage,
		MaxAge:      config.MaxAge,
		Duplicates:  time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", config.StreamName).
		Msg("connected to NATS")

	return &NATSPublisher{nc: nc, js: js, core: nc, config: config}, nil
}

// Record publishes a GameFinished event. The game id doubles as the JetStream
// message id so retries are de-duplicated by the server.
func (p *NATSPublisher) Record(ctx context.Context, res models.GameResults) error {
	data, err := gameFinishedEnvelope(res, uuid.NewString(), time.Now())
	if err != nil {
		return err
	}
	subject := p.config.SubjectPrefix + ".events.game_finished"
	return p.publishWithRetry(ctx, subject, data, res.GameID)
}

func (p *NATSPublisher) publishWithRetry(ctx context.Context, subject string, data []byte, msgID string) error {
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}

		ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("subject", subject).
				Int("attempt", attempt+1).
				Msg("failed to publish results, retrying")
			continue
		}

		log.Debug().
			Str("subject", subject).
			Str("stream", ack.Stream).
			Uint64("seq", ack.Sequence).
			Bool("duplicate", ack.Duplicate).
			Msg("published results")
		return nil
	}

	return fmt.Errorf("publish to %s failed after %d attempts: %w", subject, p.config.MaxRetries+1, lastErr)
}

// Publish mirrors a room broadcast onto quiz.rooms.<code>.<event>. Private
// events and time updates are not mirrored.
func (p *NATSPublisher) Publish(env events.Envelope) {
	if !env.Broadcast() || env.Event.Type == events.TypeQuestionTimeUpdate {
		return
	}
	data, err := json.Marshal(env.Event)
	if err != nil {
		log.Error().Err(err).Str("event", string(env.Event.Type)).Msg("failed to marshal event for NATS")
		return
	}
	if err := p.core.Publish(roomSubject(p.config.SubjectPrefix, env), data); err != nil {
		log.Warn().Err(err).Str("room_code", env.RoomCode).Msg("failed to mirror event to NATS")
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

func roomSubject(prefix string, env events.Envelope) string {
	return fmt.Sprintf("%s.rooms.%s.%s", prefix, env.RoomCode, env.Event.Type)
}

func gameFinishedEnvelope(res models.GameResults, eventID string, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	data, err := json.Marshal(Envelope{
		EventID:   eventID,
		EventType: eventTypeGameFinished,
		RoomCode:  res.RoomCode,
		Timestamp: at.UTC(),
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}
