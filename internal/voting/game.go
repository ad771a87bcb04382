// Package voting implements the timed group decision a room leader can
// launch. A round ends either when every eligible member has voted every
// candidate (quorum) or when its deadline elapses, whichever happens first.
//
// A Game has no lock of its own. Every method except the deadline goroutine
// must be called with the host's lock held; the deadline goroutine takes
// that same lock before touching the game, so quorum and deadline can never
// both tally.
package voting

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/candidates"
	"swapforfood/internal/events"
	"swapforfood/internal/metrics"
	"swapforfood/internal/protocol"
)

var (
	ErrAlreadyStarted = errors.New("game already started")
	ErrEmptyRoom      = errors.New("room has no members")
)

type State int

const (
	StateInit State = iota
	StateRunning
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Host is the room that owns a game.
type Host interface {
	sync.Locker
	Code() string
	// Members returns current usernames in join order.
	Members() []string
	// Broadcast sends a server event to every member.
	Broadcast(message string)
	// Detach clears g as the host's active game.
	Detach(g *Game)
}

type Config struct {
	TimePerCandidate time.Duration
	Clock            clockwork.Clock
	Bus              *events.Bus
	Metrics          *metrics.Metrics
}

func DefaultConfig() Config {
	return Config{
		TimePerCandidate: 10 * time.Second,
		Clock:            clockwork.NewRealClock(),
	}
}

type Game struct {
	host  Host
	cfg   Config
	state State

	candidates []candidates.Candidate
	byID       map[string]int

	// electorate holds the distinct usernames present at start, in join order.
	electorate []string
	eligible   map[string]bool
	// votes maps candidate id -> username -> vote flag.
	votes map[string]map[string]string

	startedAt time.Time
	timer     clockwork.Timer
	stop      chan struct{}
}

func NewGame(host Host, cfg Config) *Game {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TimePerCandidate <= 0 {
		cfg.TimePerCandidate = DefaultConfig().TimePerCandidate
	}
	return &Game{
		host:  host,
		cfg:   cfg,
		state: StateInit,
	}
}

func (g *Game) State() State {
	return g.state
}

func (g *Game) Candidates() []candidates.Candidate {
	return g.candidates
}

// Start moves the game to running with the given candidates. An empty list
// is allowed: the game then ends straight away with empty results.
func (g *Game) Start(list []candidates.Candidate) error {
	if g.state != StateInit {
		return ErrAlreadyStarted
	}
	members := g.host.Members()
	if len(members) == 0 {
		return ErrEmptyRoom
	}

	g.eligible = make(map[string]bool, len(members))
	for _, name := range members {
		if !g.eligible[name] {
			g.eligible[name] = true
			g.electorate = append(g.electorate, name)
		}
	}

	g.byID = make(map[string]int, len(list))
	g.candidates = make([]candidates.Candidate, 0, len(list))
	g.votes = make(map[string]map[string]string, len(list))
	for _, c := range list {
		if _, dup := g.byID[c.ID]; dup {
			continue
		}
		g.byID[c.ID] = len(g.candidates)
		g.candidates = append(g.candidates, c)
		g.votes[c.ID] = make(map[string]string)
	}

	g.state = StateRunning
	g.startedAt = g.cfg.Clock.Now()
	g.cfg.Metrics.GameStarted()

	g.host.Broadcast(protocol.Event(protocol.EventGameStart, ""))
	g.host.Broadcast(protocol.Event(protocol.EventNewRestaurant, mustJSON(g.candidates)))

	log.Info().
		Str("room_code", g.host.Code()).
		Int("candidates", len(g.candidates)).
		Int("votes_needed", g.VotesNeeded()).
		Msg("voting round started")

	if len(g.candidates) == 0 {
		g.end(events.EndQuorum)
		return nil
	}
	g.armDeadline(time.Duration(len(g.candidates)) * g.cfg.TimePerCandidate)
	return nil
}

// RegisterVote records the first vote of username for candidateID and ends
// the round if that completes the quorum. Votes for unknown candidates,
// repeated votes and votes from users outside the electorate are ignored;
// the return value reports whether the vote was recorded.
func (g *Game) RegisterVote(username, candidateID, vote string) bool {
	if g.state != StateRunning {
		return false
	}
	byUser, ok := g.votes[candidateID]
	if !ok || !g.eligible[username] {
		return false
	}
	if _, voted := byUser[username]; voted {
		return false
	}
	byUser[username] = vote
	g.cfg.Metrics.VoteRegistered()

	g.checkQuorum()
	return true
}

// Reevaluate re-checks the quorum after the membership changed.
func (g *Game) Reevaluate() {
	if g.state == StateRunning {
		g.checkQuorum()
	}
}

// Abort ends the round without announcing results. Used when the room
// closes underneath it.
func (g *Game) Abort() {
	if g.state == StateRunning {
		g.end(events.EndAborted)
	}
}

// VotesNeeded is the number of votes that completes the quorum: every
// eligible user still in the room times every candidate.
func (g *Game) VotesNeeded() int {
	return len(g.presentElectorate()) * len(g.candidates)
}

// VotesCast counts the recorded votes of eligible users still in the room.
func (g *Game) VotesCast() int {
	cast := 0
	for _, name := range g.presentElectorate() {
		for _, byUser := range g.votes {
			if _, ok := byUser[name]; ok {
				cast++
			}
		}
	}
	return cast
}

func (g *Game) presentElectorate() []string {
	present := make(map[string]bool)
	for _, name := range g.host.Members() {
		present[name] = true
	}
	out := make([]string, 0, len(g.electorate))
	for _, name := range g.electorate {
		if present[name] {
			out = append(out, name)
		}
	}
	return out
}

func (g *Game) checkQuorum() {
	if g.VotesCast() >= g.VotesNeeded() {
		g.end(events.EndQuorum)
	}
}

// end runs the tally exactly once; later calls see StateEnded and return.
func (g *Game) end(reason events.EndReason) {
	if g.state == StateEnded {
		return
	}
	cast, needed := g.VotesCast(), g.VotesNeeded()
	g.state = StateEnded
	g.cancelDeadline()

	likes := g.tally()
	if reason != events.EndAborted {
		g.host.Broadcast(protocol.Event(protocol.EventGameResults, mustJSON(likes)))
	}
	g.host.Detach(g)
	g.cfg.Metrics.GameEnded(string(reason))

	ev := events.GameEndedEvent{
		RoomCode:    g.host.Code(),
		Reason:      reason,
		StartedAt:   g.startedAt,
		EndedAt:     g.cfg.Clock.Now(),
		Candidates:  g.candidates,
		Likes:       likes,
		VotesCast:   cast,
		VotesNeeded: needed,
	}
	if g.cfg.Bus != nil && !g.cfg.Bus.PublishGameEnded(ev) {
		log.Warn().Str("room_code", ev.RoomCode).Msg("event bus full, game result not archived")
	}

	log.Info().
		Str("room_code", ev.RoomCode).
		Str("reason", string(reason)).
		Int("votes_cast", cast).
		Int("votes_needed", needed).
		Msg("voting round ended")
}

// tally maps each candidate name to the users who liked it, in join order.
func (g *Game) tally() map[string][]string {
	likes := make(map[string][]string, len(g.candidates))
	for _, c := range g.candidates {
		if _, ok := likes[c.Name]; !ok {
			likes[c.Name] = []string{}
		}
		for _, name := range g.electorate {
			if g.votes[c.ID][name] == protocol.LikeVote {
				likes[c.Name] = append(likes[c.Name], name)
			}
		}
	}
	return likes
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
