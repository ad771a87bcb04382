package rooms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/candidates"
	"swapforfood/internal/metrics"
	"swapforfood/internal/protocol"
	"swapforfood/internal/voting"
)

const maxCodeAttempts = 100

type Options struct {
	Clock   clockwork.Clock
	Game    voting.Config
	Metrics *metrics.Metrics
}

// Registry owns every live room and the connection -> room mapping.
//
// Lock order is room before registry: a room lock may be held while taking
// the registry lock, never the reverse. Rooms are independent of each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[Conn]string

	clock    clockwork.Clock
	gameCfg  voting.Config
	metrics  *metrics.Metrics
	generate func() (string, error)
}

func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Game.Clock == nil {
		opts.Game.Clock = opts.Clock
	}
	if opts.Game.Metrics == nil {
		opts.Game.Metrics = opts.Metrics
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		conns:    make(map[Conn]string),
		clock:    opts.Clock,
		gameCfg:  opts.Game,
		metrics:  opts.Metrics,
		generate: GenerateCode,
	}
}

// Create opens a room with c as its only member and leader.
func (r *Registry) Create(c Conn, username string) (string, error) {
	if username == "" {
		return "", protocol.ErrInvalidUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.conns[c]; ok {
		return "", protocol.Errorf(protocol.ErrAlreadyInRoom, "connection already belongs to room %s", code)
	}

	for range maxCodeAttempts {
		code, err := r.generate()
		if err != nil {
			return "", fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := r.rooms[code]; exists {
			continue
		}

		room := newRoom(code, r.clock)
		room.AddUser(&User{Conn: c, Username: username, IsLeader: true})
		r.rooms[code] = room
		r.conns[c] = code
		r.metrics.RoomOpened()

		log.Info().
			Str("room_code", code).
			Str("connection_id", c.ID()).
			Str("username", username).
			Msg("room created")
		return code, nil
	}
	return "", fmt.Errorf("failed to generate unique room code after %d attempts", maxCodeAttempts)
}

// Join adds c to the room as a regular member and returns the member list.
// Joining again from the same connection changes nothing.
func (r *Registry) Join(c Conn, code, username string) ([]string, error) {
	room := r.Get(code)
	if room == nil {
		return nil, protocol.Errorf(protocol.ErrRoomNotFound, "room %s does not exist", code)
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() {
		return nil, protocol.Errorf(protocol.ErrRoomNotFound, "room %s does not exist", code)
	}
	if room.UserByConn(c) != nil {
		return room.Members(), nil
	}
	if username == "" {
		return nil, protocol.ErrInvalidUsername
	}

	r.mu.Lock()
	if other, ok := r.conns[c]; ok {
		r.mu.Unlock()
		return nil, protocol.Errorf(protocol.ErrAlreadyInRoom, "connection already belongs to room %s", other)
	}
	r.conns[c] = code
	r.mu.Unlock()

	room.AddUser(&User{Conn: c, Username: username})
	room.NotifyNewUser(username, c)

	log.Info().
		Str("room_code", code).
		Str("connection_id", c.ID()).
		Str("username", username).
		Msg("user joined room")
	return room.Members(), nil
}

// Leave is the disconnect cleanup for c. It is a no-op if c is not in a room.
func (r *Registry) Leave(c Conn) {
	room := r.Lookup(c)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	user := room.UserByConn(c)
	if user == nil {
		r.forget(c, room.Code())
		return
	}

	promoted := room.RemoveUser(user)
	r.forget(c, room.Code())

	log.Info().
		Str("room_code", room.Code()).
		Str("connection_id", c.ID()).
		Str("username", user.Username).
		Msg("user left room")

	if room.Empty() {
		r.closeRoom(room)
		return
	}
	room.NotifyUserLeft(user.Username)
	r.afterDeparture(room, promoted)
}

// Kick removes target from the room of the acting connection, which must
// belong to the leader.
func (r *Registry) Kick(c Conn, target string) error {
	room := r.Lookup(c)
	if room == nil {
		return protocol.Errorf(protocol.ErrRoomNotFound, "connection is not in a room")
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() {
		return protocol.Errorf(protocol.ErrRoomNotFound, "room %s does not exist", room.Code())
	}
	if err := requireLeader(room, c); err != nil {
		return err
	}
	user := room.UserByName(target)
	if user == nil {
		return protocol.Errorf(protocol.ErrUserNotFound, "user %s is not in room %s", target, room.Code())
	}

	room.Broadcast(protocol.Event(protocol.EventUserRemoved, user.Username))
	room.NotifyUserRemoved(user)
	promoted := room.RemoveUser(user)
	r.forget(user.Conn, room.Code())

	log.Info().
		Str("room_code", room.Code()).
		Str("username", user.Username).
		Msg("user kicked from room")

	if room.Empty() {
		r.closeRoom(room)
		return nil
	}
	r.afterDeparture(room, promoted)
	return nil
}

// Chat broadcasts a free-text message from sender to the room of c.
func (r *Registry) Chat(c Conn, sender, text string) error {
	room := r.Lookup(c)
	if room == nil {
		return protocol.Errorf(protocol.ErrRoomNotFound, "connection is not in a room")
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() || room.UserByConn(c) == nil {
		return protocol.Errorf(protocol.ErrRoomNotFound, "connection is not in a room")
	}
	room.Broadcast(protocol.ChatMessage(sender, text))
	return nil
}

// StartGame lets the leader launch a voting round on the candidates found
// around location. The provider is called without the room lock held, so
// leadership and the room itself are checked again afterwards. A failing or
// empty provider still starts a (degenerate) game.
func (r *Registry) StartGame(ctx context.Context, c Conn, location string, provider candidates.Provider) error {
	room := r.Lookup(c)
	if room == nil {
		return protocol.Errorf(protocol.ErrRoomNotFound, "connection is not in a room")
	}

	room.Lock()
	err := checkStartable(room, c)
	room.Unlock()
	if err != nil {
		return err
	}

	list, err := provider.FetchCandidates(ctx, location)
	if err != nil {
		r.metrics.CandidateFetch("error")
		log.Warn().
			Err(err).
			Str("room_code", room.Code()).
			Str("location", location).
			Msg("candidate fetch failed, starting with no candidates")
		list = nil
	} else {
		r.metrics.CandidateFetch("ok")
	}

	room.Lock()
	defer room.Unlock()

	if err := checkStartable(room, c); err != nil {
		return err
	}

	g := voting.NewGame(room, r.gameCfg)
	room.game = g
	if err := g.Start(list); err != nil {
		room.game = nil
		return fmt.Errorf("starting game in room %s: %w", room.Code(), err)
	}
	return nil
}

// Vote records a vote of c's user in the active game. Ignored votes
// (unknown candidate, repeated vote) are not errors.
func (r *Registry) Vote(c Conn, flag, candidateID string) error {
	room := r.Lookup(c)
	if room == nil {
		return protocol.Errorf(protocol.ErrNoActiveGame, "connection is not in a room")
	}

	room.Lock()
	defer room.Unlock()

	g := room.Game()
	if room.Closed() || g == nil {
		return protocol.ErrNoActiveGame
	}
	user := room.UserByConn(c)
	if user == nil {
		return protocol.ErrUserNotFound
	}
	g.RegisterVote(user.Username, candidateID, flag)
	return nil
}

// Lookup returns the room c belongs to, or nil.
func (r *Registry) Lookup(c Conn) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.conns[c]
	if !ok {
		return nil
	}
	return r.rooms[code]
}

func (r *Registry) Get(code string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code]
}

// Remove detaches a room and every connection mapped to it.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; !ok {
		return
	}
	delete(r.rooms, code)
	for c, rc := range r.conns {
		if rc == code {
			delete(r.conns, c)
		}
	}
	r.metrics.RoomClosed()
}

// RoomInfo is a point-in-time view of one room.
type RoomInfo struct {
	Code        string    `json:"code"`
	Members     int       `json:"members"`
	Leader      string    `json:"leader"`
	GameRunning bool      `json:"game_running"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	list := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		list = append(list, room)
	}
	r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(list))
	for _, room := range list {
		room.Lock()
		if !room.Closed() {
			info := RoomInfo{
				Code:        room.Code(),
				Members:     len(room.users),
				GameRunning: room.game != nil,
				CreatedAt:   room.CreatedAt(),
			}
			if l := room.Leader(); l != nil {
				info.Leader = l.Username
			}
			infos = append(infos, info)
		}
		room.Unlock()
	}
	return infos
}

func (r *Registry) forget(c Conn, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c] == code {
		delete(r.conns, c)
	}
}

// closeRoom tears down an empty room. Caller holds the room lock.
func (r *Registry) closeRoom(room *Room) {
	room.closed = true
	room.NotifyRoomClosed()
	if g := room.Game(); g != nil {
		g.Abort()
	}
	r.Remove(room.Code())
	log.Info().Str("room_code", room.Code()).Msg("room closed")
}

// afterDeparture announces a promoted leader and lets a running game
// re-check its quorum. Caller holds the room lock.
func (r *Registry) afterDeparture(room *Room, promoted *User) {
	if promoted != nil {
		room.NotifyNewLeader(promoted.Username)
		log.Info().
			Str("room_code", room.Code()).
			Str("username", promoted.Username).
			Msg("leadership handed off")
	}
	if g := room.Game(); g != nil {
		g.Reevaluate()
	}
}

func requireLeader(room *Room, c Conn) error {
	u := room.UserByConn(c)
	if u == nil || !u.IsLeader {
		return protocol.ErrNotLeader
	}
	return nil
}

func checkStartable(room *Room, c Conn) error {
	if room.Closed() {
		return protocol.Errorf(protocol.ErrRoomNotFound, "room %s does not exist", room.Code())
	}
	if err := requireLeader(room, c); err != nil {
		return err
	}
	if room.Game() != nil {
		return protocol.ErrGameInProgress
	}
	return nil
}
