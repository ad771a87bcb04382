package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RoomOpened()
	m.RoomOpened()
	m.RoomClosed()
	m.GameStarted()
	m.GameEnded("quorum")
	m.VoteRegistered()
	m.VoteRegistered()

	if got := testutil.ToFloat64(m.rooms); got != 1 {
		t.Errorf("rooms_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.games); got != 1 {
		t.Errorf("games_started_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.gamesEnded.WithLabelValues("quorum")); got != 1 {
		t.Errorf("games_ended_total{reason=quorum} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.votes); got != 2 {
		t.Errorf("votes_registered_total = %v, want 2", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	// None of these should panic
	m.RoomOpened()
	m.ConnectionOpened()
	m.GameEnded("deadline")
	m.Command("vote", "ok")
	m.CandidateFetch("error")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ConnectionOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "swapforfood_connections_active 1") {
		t.Errorf("metrics output missing connections gauge:\n%s", body)
	}
}
