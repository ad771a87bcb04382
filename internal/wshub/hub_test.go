package wshub

import (
	"errors"
	"testing"
)

func TestClientSend(t *testing.T) {
	c := NewClient(nil, 2)

	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if err := c.Send([]byte("b")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	// This should not block, the frame is dropped
	if err := c.Send([]byte("c")); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("Send() on full buffer = %v, want ErrSendBufferFull", err)
	}

	if got := string(<-c.send); got != "a" {
		t.Errorf("first frame = %q, want a", got)
	}
}

func TestClientClose(t *testing.T) {
	c := NewClient(nil, 4)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	// Should not panic
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done() should be closed after Close()")
	}
	if err := c.Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close() = %v, want ErrClosed", err)
	}
}

func TestClientIDsAreUnique(t *testing.T) {
	a, b := NewClient(nil, 1), NewClient(nil, 1)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs = %q, %q, want distinct non-empty", a.ID(), b.ID())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	h := NewHub()
	c1 := NewClient(nil, 1)
	c2 := NewClient(nil, 1)

	h.Register(c1)
	h.Register(c2)
	if n := h.Count(); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}

	h.Unregister(c1.ID())
	if n := h.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestUnregisterNonexistent(t *testing.T) {
	h := NewHub()
	// Should not panic
	h.Unregister("nonexistent")
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub()
	c1 := NewClient(nil, 1)
	c2 := NewClient(nil, 1)
	h.Register(c1)
	h.Register(c2)

	h.CloseAll()

	for _, c := range []*Client{c1, c2} {
		if err := c.Send([]byte("x")); !errors.Is(err, ErrClosed) {
			t.Errorf("Send() after CloseAll() = %v, want ErrClosed", err)
		}
	}
}
