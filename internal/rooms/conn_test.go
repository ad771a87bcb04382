package rooms

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"swapforfood/internal/protocol"
)

var connSeq atomic.Int64

type fakeConn struct {
	id   string
	sent chan string

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		id:   "conn-" + strconv.FormatInt(connSeq.Add(1), 10),
		sent: make(chan string, 64),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	var out protocol.Outbound
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	c.sent <- out.Message
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-c.sent:
		return msg
	case <-time.After(1 * time.Second):
		t.Fatalf("%s: timed out waiting for event", c.id)
		return ""
	}
}

func (c *fakeConn) expect(t *testing.T, want string) {
	t.Helper()
	if got := c.next(t); got != want {
		t.Errorf("%s: event = %q, want %q", c.id, got, want)
	}
}

func (c *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-c.sent:
		t.Errorf("%s: unexpected event %q", c.id, msg)
	default:
	}
}
