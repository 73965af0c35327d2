// Package nats publishes outbox events to a NATS JetStream stream.
package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"escrow-marketplace/config"
	"escrow-marketplace/internal/core/domain"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// streamPublisher is the part of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher implements ports.EventPublisher on JetStream. Subjects are
// "<prefix>.<topic>", e.g. "marketplace.order.state_changed". The outbox
// event id is sent as the message id, so a relay retry after a lost ack is
// deduplicated by the stream.
type Publisher struct {
	js      streamPublisher
	prefix  string
	timeout time.Duration
	log     zerolog.Logger
}

// Connect dials NATS with reconnect logging.
func Connect(cfg config.NATSConfig, log zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("escrow-marketplace"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	log.Info().Str("url", cfg.URL).Msg("NATS connection established")
	return conn, nil
}

// NewPublisher ensures the stream exists and returns a publisher for it.
func NewPublisher(ctx context.Context, conn *nats.Conn, cfg config.NATSConfig, log zerolog.Logger) (*Publisher, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	prefix := subjectPrefix(cfg)
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Marketplace domain events",
		Subjects:    []string{prefix + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stream %s: %w", cfg.Stream, err)
	}
	log.Info().Str("stream", cfg.Stream).Str("subjects", prefix+".>").Msg("JetStream stream ready")

	return newPublisher(js, prefix, log), nil
}

func newPublisher(js streamPublisher, prefix string, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:      js,
		prefix:  prefix,
		timeout: 5 * time.Second,
		log:     log.With().Str("component", "nats_publisher").Logger(),
	}
}

func subjectPrefix(cfg config.NATSConfig) string {
	p := strings.Trim(cfg.SubjectPrefix, ".")
	if p == "" {
		return "marketplace"
	}
	return p
}

// Subject returns the subject an event topic is published on.
func (p *Publisher) Subject(topic string) string {
	return p.prefix + "." + topic
}

// Publish waits for the stream to acknowledge the event.
func (p *Publisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ack, err := p.js.Publish(ctx, p.Subject(event.Topic), event.Payload, jetstream.WithMsgID(event.ID.String()))
	if err != nil {
		return fmt.Errorf("jetstream publish: %w", err)
	}
	if ack.Duplicate {
		p.log.Debug().Str("event_id", event.ID.String()).Msg("event already in stream")
	}
	return nil
}

// Name returns the publisher name.
func (p *Publisher) Name() string {
	return "nats"
}

// HealthCheck implements ports.HealthChecker for the NATS connection.
type HealthCheck struct {
	conn *nats.Conn
}

// NewHealthCheck creates a NATS health checker.
func NewHealthCheck(conn *nats.Conn) *HealthCheck {
	return &HealthCheck{conn: conn}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if status := h.conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "nats"
}
