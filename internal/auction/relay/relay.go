package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/gavelhouse/gavel/internal/auction/events"
)

// Config holds NATS relay settings.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default relay configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher mirrors broadcast auction events onto a NATS subject so
// out-of-process consumers (dashboards, analytics) can follow the auction
// without holding a WebSocket connection. Local delivery never depends on
// the relay.
type Publisher struct {
	nc  *nats.Conn
	cfg Config
}

// New connects to NATS.
func New(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", cfg.URL).Str("subject_prefix", cfg.SubjectPrefix).Msg("event relay connected")
	return &Publisher{nc: nc, cfg: cfg}, nil
}

// Publish mirrors one event onto the relay subject for its type.
func (p *Publisher) Publish(event *events.Event) error {
	subject := fmt.Sprintf("%s.%s", p.cfg.SubjectPrefix, subjectToken(event.Type))

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("failed to drain NATS connection")
	}
}

func subjectToken(t events.Type) string {
	return strings.ReplaceAll(string(t), ":", ".")
}
