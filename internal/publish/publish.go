// Package publish announces finished voting rounds on NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/events"
)

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "swapforfood.games",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// GameMessage is the payload published for every finished round.
type GameMessage struct {
	RoomCode    string              `json:"roomCode"`
	Reason      string              `json:"reason"`
	StartedAt   time.Time           `json:"startedAt"`
	EndedAt     time.Time           `json:"endedAt"`
	Candidates  []string            `json:"candidates"`
	Likes       map[string][]string `json:"likes"`
	VotesCast   int                 `json:"votesCast"`
	VotesNeeded int                 `json:"votesNeeded"`
}

type Publisher struct {
	nc     *nats.Conn
	config Config
}

func NewPublisher(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("swapforfood"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
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

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")
	return &Publisher{nc: nc, config: cfg}, nil
}

// Subject returns the subject a round from roomCode is published on.
func (p *Publisher) Subject(roomCode string) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, roomCode)
}

func (p *Publisher) Publish(ctx context.Context, ev events.GameEndedEvent) error {
	data, err := Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.Subject(ev.RoomCode), data); err != nil {
		return fmt.Errorf("publish game %s: %w", ev.RoomCode, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Marshal encodes ev as a GameMessage.
func Marshal(ev events.GameEndedEvent) ([]byte, error) {
	names := make([]string, len(ev.Candidates))
	for i, c := range ev.Candidates {
		names[i] = c.Name
	}
	likes := ev.Likes
	if likes == nil {
		likes = map[string][]string{}
	}
	data, err := json.Marshal(GameMessage{
		RoomCode:    ev.RoomCode,
		Reason:      string(ev.Reason),
		StartedAt:   ev.StartedAt.UTC(),
		EndedAt:     ev.EndedAt.UTC(),
		Candidates:  names,
		Likes:       likes,
		VotesCast:   ev.VotesCast,
		VotesNeeded: ev.VotesNeeded,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal game: %w", err)
	}
	return data, nil
}
