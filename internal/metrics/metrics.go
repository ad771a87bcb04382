// Package metrics exposes Prometheus collectors for rooms, connections and
// voting rounds. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "swapforfood"

type Metrics struct {
	registry    *prometheus.Registry
	rooms       prometheus.Gauge
	connections prometheus.Gauge
	games       prometheus.Counter
	gamesEnded  *prometheus.CounterVec
	votes       prometheus.Counter
	commands    *prometheus.CounterVec
	fetches     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently open.",
		}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "WebSocket connections currently open.",
		}),
		games: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Voting rounds started.",
		}),
		gamesEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_ended_total",
			Help:      "Voting rounds ended, by reason.",
		}, []string{"reason"}),
		votes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_registered_total",
			Help:      "Votes recorded (duplicates excluded).",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_fetches_total",
			Help:      "Candidate provider calls, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.rooms.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.rooms.Dec()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) GameStarted() {
	if m != nil {
		m.games.Inc()
	}
}

func (m *Metrics) GameEnded(reason string) {
	if m != nil {
		m.gamesEnded.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) VoteRegistered() {
	if m != nil {
		m.votes.Inc()
	}
}

func (m *Metrics) Command(command, outcome string) {
	if m != nil {
		m.commands.WithLabelValues(command, outcome).Inc()
	}
}

func (m *Metrics) CandidateFetch(outcome string) {
	if m != nil {
		m.fetches.WithLabelValues(outcome).Inc()
	}
}
