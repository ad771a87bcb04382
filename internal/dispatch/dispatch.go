// Package dispatch turns inbound client frames into registry operations and
// builds the numbered reply for each one.
package dispatch

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/candidates"
	"swapforfood/internal/metrics"
	"swapforfood/internal/protocol"
	"swapforfood/internal/rooms"
)

type Dispatcher struct {
	registry *rooms.Registry
	provider candidates.Provider
	clock    clockwork.Clock
	metrics  *metrics.Metrics
}

func New(registry *rooms.Registry, provider candidates.Provider, clock clockwork.Clock, m *metrics.Metrics) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		registry: registry,
		provider: provider,
		clock:    clock,
		metrics:  m,
	}
}

// Session is the dispatcher state of one connection. Handle must not be
// called concurrently for the same session.
type Session struct {
	d      *Dispatcher
	conn   rooms.Conn
	nextID int
}

func (d *Dispatcher) NewSession(conn rooms.Conn) *Session {
	return &Session{d: d, conn: conn, nextID: 1}
}

// Handle processes one raw inbound frame. It returns the encoded reply, or
// false when the frame was malformed and must be dropped without a reply.
func (s *Session) Handle(ctx context.Context, raw []byte) ([]byte, bool) {
	in, err := protocol.DecodeInbound(raw)
	if err != nil {
		log.Debug().Str("connection_id", s.conn.ID()).Msg("dropping malformed frame")
		return nil, false
	}

	cmd := protocol.ParseCommand(in.Content)
	reply, err := s.execute(ctx, in.Sender, cmd)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		reply = protocol.FailureReply(err)

		var pe *protocol.Error
		if !errors.As(err, &pe) {
			log.Error().
				Err(err).
				Str("connection_id", s.conn.ID()).
				Stringer("command", cmd.Kind).
				Msg("command failed")
		}
	}
	s.d.metrics.Command(cmd.Kind.String(), outcome)

	id := s.nextID
	s.nextID++
	return protocol.Encode(id, reply, s.d.clock.Now()), true
}

// Close runs the disconnect cleanup for the session's connection.
func (s *Session) Close() {
	s.d.registry.Leave(s.conn)
}

func (s *Session) execute(ctx context.Context, sender string, cmd protocol.Command) (string, error) {
	reg := s.d.registry
	switch cmd.Kind {
	case protocol.CommandCreate:
		code, err := reg.Create(s.conn, cmd.Username)
		if err != nil {
			return "", err
		}
		return protocol.CreatedReply(code, cmd.Username), nil

	case protocol.CommandJoin:
		members, err := reg.Join(s.conn, cmd.RoomCode, cmd.Username)
		if err != nil {
			return "", err
		}
		return protocol.JoinedReply(members), nil

	case protocol.CommandKick:
		if err := reg.Kick(s.conn, cmd.Username); err != nil {
			return "", err
		}
		return protocol.StatusOK, nil

	case protocol.CommandChat:
		if err := reg.Chat(s.conn, sender, cmd.Text); err != nil {
			return "", err
		}
		return protocol.StatusOK, nil

	case protocol.CommandStartGame:
		if err := reg.StartGame(ctx, s.conn, cmd.Location, s.d.provider); err != nil {
			return "", err
		}
		return protocol.ReplyGameStarted, nil

	case protocol.CommandVote:
		if err := reg.Vote(s.conn, cmd.Vote, cmd.CandidateID); err != nil {
			return "", err
		}
		return protocol.ReplyVoteRegistered, nil
	}
	return "", protocol.ErrUnknownCommand
}
