package rooms

// Conn is one participant's duplex message channel. Identity is the value
// itself, never a network address: two users behind the same NAT are two
// distinct connections.
type Conn interface {
	ID() string
	// Send queues data without blocking; an error means it was not queued.
	Send(data []byte) error
	Close() error
}

// User is a connection bound to a display name inside one room.
// Usernames are not required to be unique.
type User struct {
	Conn     Conn
	Username string
	IsLeader bool
}
