package voting

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"swapforfood/internal/candidates"
	"swapforfood/internal/events"
)

type fakeHost struct {
	sync.Mutex
	members  []string
	sent     chan string
	detached *Game
}

func newFakeHost(members ...string) *fakeHost {
	return &fakeHost{members: members, sent: make(chan string, 64)}
}

func (h *fakeHost) Code() string { return "04217" }
func (h *fakeHost) Members() []string { return append([]string(nil), h.members...) }
func (h *fakeHost) Broadcast(message string) { h.sent <- message }
func (h *fakeHost) Detach(g *Game) { h.detached = g }

func (h *fakeHost) remove(name string) {
	for i, m := range h.members {
		if m == name {
			h.members = append(h.members[:i], h.members[i+1:]...)
			return
		}
	}
}

func (h *fakeHost) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-h.sent:
		return msg
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return ""
	}
}

func (h *fakeHost) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-h.sent:
		t.Fatalf("unexpected broadcast %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func twoCandidates() []candidates.Candidate {
	return []candidates.Candidate{
		{ID: "1", Name: "Casa Lucio"},
		{ID: "2", Name: "Botin"},
	}
}

func newTestGame(h *fakeHost, clock clockwork.Clock, bus *events.Bus) *Game {
	return NewGame(h, Config{
		TimePerCandidate: 10 * time.Second,
		Clock:            clock,
		Bus:              bus,
	})
}

// startGame starts g and consumes the GAME_START and NEW_RESTAURANT events.
func startGame(t *testing.T, h *fakeHost, g *Game, list []candidates.Candidate) {
	t.Helper()
	h.Lock()
	err := g.Start(list)
	h.Unlock()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if msg := h.next(t); msg != "GAME_START." {
		t.Fatalf("first event = %q, want GAME_START.", msg)
	}
	if msg := h.next(t); !strings.HasPrefix(msg, "NEW_RESTAURANT.") {
		t.Fatalf("second event = %q, want NEW_RESTAURANT", msg)
	}
}

func vote(h *fakeHost, g *Game, user, id, flag string) bool {
	h.Lock()
	defer h.Unlock()
	return g.RegisterVote(user, id, flag)
}

func decodeResults(t *testing.T, msg string) map[string][]string {
	t.Helper()
	payload, ok := strings.CutPrefix(msg, "GAME_RESULTS.")
	if !ok {
		t.Fatalf("event = %q, want GAME_RESULTS", msg)
	}
	var out map[string][]string
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	return out
}

func TestStart_EmptyRoom(t *testing.T) {
	h := newFakeHost()
	g := newTestGame(h, clockwork.NewFakeClock(), nil)

	if err := g.Start(twoCandidates()); err != ErrEmptyRoom {
		t.Errorf("Start() error = %v, want ErrEmptyRoom", err)
	}
	if g.State() != StateInit {
		t.Errorf("state = %v, want init", g.State())
	}
}

func TestStart_BroadcastsCandidates(t *testing.T) {
	h := newFakeHost("Ana", "Bob")
	g := newTestGame(h, clockwork.NewFakeClock(), nil)

	h.Lock()
	if err := g.Start(twoCandidates()); err != nil {
		t.Fatal(err)
	}
	h.Unlock()

	if msg := h.next(t); msg != "GAME_START." {
		t.Errorf("first event = %q", msg)
	}
	msg := h.next(t)
	var list []candidates.Candidate
	if err := json.Unmarshal([]byte(strings.TrimPrefix(msg, "NEW_RESTAURANT.")), &list); err != nil {
		t.Fatalf("unmarshal candidates: %v", err)
	}
	if len(list) != 2 || list[0].ID != "1" || list[1].Name != "Botin" {
		t.Errorf("candidates = %+v", list)
	}
	if g.State() != StateRunning {
		t.Errorf("state = %v, want running", g.State())
	}
	if g.VotesNeeded() != 4 {
		t.Errorf("VotesNeeded() = %d, want 4", g.VotesNeeded())
	}

	h.Lock()
	if err := g.Start(twoCandidates()); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	h.Unlock()
}

func TestQuorumEndsGame(t *testing.T) {
	h := newFakeHost("Ana", "Bob")
	bus := events.NewBus()
	g := newTestGame(h, clockwork.NewFakeClock(), bus)
	startGame(t, h, g, twoCandidates())

	vote(h, g, "Ana", "1", "0")
	vote(h, g, "Ana", "2", "0")
	vote(h, g, "Bob", "1", "0")
	h.expectNone(t)
	vote(h, g, "Bob", "2", "1")

	results := decodeResults(t, h.next(t))
	if got := results["Casa Lucio"]; len(got) != 2 || got[0] != "Ana" || got[1] != "Bob" {
		t.Errorf("Casa Lucio likes = %v, want [Ana Bob]", got)
	}
	if got := results["Botin"]; len(got) != 1 || got[0] != "Ana" {
		t.Errorf("Botin likes = %v, want [Ana]", got)
	}
	if g.State() != StateEnded {
		t.Errorf("state = %v, want ended", g.State())
	}
	if h.detached != g {
		t.Error("game should detach from its host")
	}

	select {
	case ev := <-bus.GameEnded:
		if ev.Reason != events.EndQuorum || ev.VotesCast != 4 || ev.VotesNeeded != 4 {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("expected a GameEnded event")
	}
}

func TestDuplicateVoteCountsOnce(t *testing.T) {
	h := newFakeHost("Ana", "Bob")
	g := newTestGame(h, clockwork.NewFakeClock(), nil)
	startGame(t, h, g, twoCandidates())

	if !vote(h, g, "Ana", "1", "0") {
		t.Fatal("first vote should be recorded")
	}
	if vote(h, g, "Ana", "1", "1") {
		t.Error("repeated vote should be ignored")
	}
	h.Lock()
	cast := g.VotesCast()
	h.Unlock()
	if cast != 1 {
		t.Errorf("VotesCast() = %d, want 1", cast)
	}

	vote(h, g, "Ana", "2", "0")
	vote(h, g, "Bob", "1", "1")
	vote(h, g, "Bob", "1", "0")
	h.expectNone(t)
	vote(h, g, "Bob", "2", "1")

	results := decodeResults(t, h.next(t))
	// First vote wins: Ana's later dislike of "1" was discarded.
	if got := results["Casa Lucio"]; len(got) != 1 || got[0] != "Ana" {
		t.Errorf("Casa Lucio likes = %v, want [Ana]", got)
	}
}

func TestIgnoredVotes(t *testing.T) {
	h := newFakeHost("Ana")
	g := newTestGame(h, clockwork.NewFakeClock(), nil)
	startGame(t, h, g, twoCandidates())

	if vote(h, g, "Ana", "99", "0") {
		t.Error("vote for unknown candidate should be ignored")
	}

	h.Lock()
	h.members = append(h.members, "Late")
	h.Unlock()
	if vote(h, g, "Late", "1", "0") {
		t.Error("vote from a user who joined after start should be ignored")
	}
}

func TestDeadlineEndsGame(t *testing.T) {
	h := newFakeHost("Ana", "Bob")
	clock := clockwork.NewFakeClock()
	bus := events.NewBus()
	g := newTestGame(h, clock, bus)
	startGame(t, h, g, twoCandidates())

	vote(h, g, "Ana", "1", "0")

	clock.Advance(19 * time.Second)
	h.expectNone(t)

	clock.Advance(1 * time.Second)
	results := decodeResults(t, h.next(t))
	if got := results["Casa Lucio"]; len(got) != 1 || got[0] != "Ana" {
		t.Errorf("Casa Lucio likes = %v, want [Ana]", got)
	}
	if got := results["Botin"]; len(got) != 0 {
		t.Errorf("Botin likes = %v, want none", got)
	}

	select {
	case ev := <-bus.GameEnded:
		if ev.Reason != events.EndDeadline {
			t.Errorf("reason = %q, want deadline", ev.Reason)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("expected a GameEnded event")
	}

	if vote(h, g, "Bob", "1", "0") {
		t.Error("votes after the end should be ignored")
	}
}

func TestQuorumAndDeadlineRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newFakeHost("Ana")
		clock := clockwork.NewFakeClock()
		g := newTestGame(h, clock, nil)
		startGame(t, h, g, []candidates.Candidate{{ID: "1", Name: "Casa Lucio"}})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			clock.Advance(10 * time.Second)
		}()
		go func() {
			defer wg.Done()
			vote(h, g, "Ana", "1", "0")
		}()
		wg.Wait()

		decodeResults(t, h.next(t))
		h.expectNone(t)
	}
}

func TestZeroCandidatesEndsImmediately(t *testing.T) {
	h := newFakeHost("Ana")
	g := newTestGame(h, clockwork.NewFakeClock(), nil)

	h.Lock()
	if err := g.Start(nil); err != nil {
		t.Fatal(err)
	}
	h.Unlock()

	h.next(t) // GAME_START.
	if msg := h.next(t); msg != "NEW_RESTAURANT.[]" {
		t.Errorf("candidates event = %q", msg)
	}
	if results := decodeResults(t, h.next(t)); len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
	if g.State() != StateEnded {
		t.Errorf("state = %v, want ended", g.State())
	}
}

func TestReevaluateAfterDeparture(t *testing.T) {
	h := newFakeHost("Ana", "Bob")
	g := newTestGame(h, clockwork.NewFakeClock(), nil)
	startGame(t, h, g, twoCandidates())

	vote(h, g, "Ana", "1", "0")
	vote(h, g, "Ana", "2", "1")
	h.expectNone(t)

	h.Lock()
	h.remove("Bob")
	g.Reevaluate()
	h.Unlock()

	results := decodeResults(t, h.next(t))
	if got := results["Casa Lucio"]; len(got) != 1 || got[0] != "Ana" {
		t.Errorf("Casa Lucio likes = %v, want [Ana]", got)
	}
}

func TestAbortIsSilent(t *testing.T) {
	h := newFakeHost("Ana")
	bus := events.NewBus()
	g := newTestGame(h, clockwork.NewFakeClock(), bus)
	startGame(t, h, g, twoCandidates())

	h.Lock()
	g.Abort()
	g.Abort()
	h.Unlock()

	h.expectNone(t)
	if g.State() != StateEnded {
		t.Errorf("state = %v, want ended", g.State())
	}
	ev := <-bus.GameEnded
	if ev.Reason != events.EndAborted {
		t.Errorf("reason = %q, want aborted", ev.Reason)
	}
}
