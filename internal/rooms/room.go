package rooms

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/protocol"
	"swapforfood/internal/voting"
)

// Room is an ordered member list with a single leader and at most one
// active voting game. Every method below expects the caller to hold the
// room lock; the lock is the only serialization point for the room and its
// game.
type Room struct {
	mu        sync.Mutex
	code      string
	createdAt time.Time
	clock     clockwork.Clock

	users  []*User
	game   *voting.Game
	closed bool
}

func newRoom(code string, clock clockwork.Clock) *Room {
	return &Room{
		code:      code,
		createdAt: clock.Now(),
		clock:     clock,
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) Code() string {
	return r.code
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// Closed reports whether the room was torn down after its last member left.
func (r *Room) Closed() bool {
	return r.closed
}

func (r *Room) Empty() bool {
	return len(r.users) == 0
}

// Members returns the usernames in join order.
func (r *Room) Members() []string {
	names := make([]string, len(r.users))
	for i, u := range r.users {
		names[i] = u.Username
	}
	return names
}

func (r *Room) Leader() *User {
	for _, u := range r.users {
		if u.IsLeader {
			return u
		}
	}
	return nil
}

func (r *Room) UserByConn(c Conn) *User {
	for _, u := range r.users {
		if u.Conn == c {
			return u
		}
	}
	return nil
}

// UserByName returns the earliest-joined user with that name.
func (r *Room) UserByName(username string) *User {
	for _, u := range r.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// Game returns the active voting game, or nil.
func (r *Room) Game() *voting.Game {
	return r.game
}

// Detach clears g as the active game. Called by the game when it ends.
func (r *Room) Detach(g *voting.Game) {
	if r.game == g {
		r.game = nil
	}
}

func (r *Room) AddUser(u *User) {
	r.users = append(r.users, u)
}

// RemoveUser drops u and, if u was the leader and others remain, promotes
// the earliest-joined remaining member and returns it.
func (r *Room) RemoveUser(u *User) *User {
	idx := -1
	for i, m := range r.users {
		if m == u {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	r.users = append(r.users[:idx], r.users[idx+1:]...)

	if !u.IsLeader || len(r.users) == 0 {
		return nil
	}
	u.IsLeader = false
	next := r.users[0]
	next.IsLeader = true
	return next
}

// Broadcast delivers a server event to every member. Failures are per
// recipient and never stop delivery to the rest.
func (r *Room) Broadcast(message string) {
	r.sendAll(message, nil)
}

func (r *Room) sendAll(message string, exclude Conn) {
	data := protocol.EncodeEvent(message, r.clock.Now())
	for _, u := range r.users {
		if exclude != nil && u.Conn == exclude {
			continue
		}
		if err := u.Conn.Send(data); err != nil {
			log.Debug().
				Err(err).
				Str("room_code", r.code).
				Str("connection_id", u.Conn.ID()).
				Msg("dropping event for member")
		}
	}
}

func (r *Room) NotifyNewUser(username string, exclude Conn) {
	r.sendAll(protocol.Event(protocol.EventUserJoined, username), exclude)
}

func (r *Room) NotifyUserLeft(username string) {
	r.Broadcast(protocol.Event(protocol.EventUserLeft, username))
}

func (r *Room) NotifyRoomClosed() {
	r.Broadcast(protocol.EventRoomClosed)
}

func (r *Room) NotifyNewLeader(username string) {
	r.Broadcast(protocol.Event(protocol.EventNewLeader, username))
}

// NotifyUserRemoved tells the removed party directly and closes its
// connection. The close flushes queued frames first.
func (r *Room) NotifyUserRemoved(target *User) {
	if err := target.Conn.Send(protocol.EncodeEvent(protocol.EventRemoved, r.clock.Now())); err != nil {
		log.Debug().Err(err).Str("connection_id", target.Conn.ID()).Msg("could not notify removed user")
	}
	if err := target.Conn.Close(); err != nil {
		log.Debug().Err(err).Str("connection_id", target.Conn.ID()).Msg("could not close removed user")
	}
}
