package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/db"
	"swapforfood/internal/dispatch"
	"swapforfood/internal/metrics"
	"swapforfood/internal/rooms"
	"swapforfood/internal/wshub"
)

const (
	defaultGamesLimit = 20
	maxGamesLimit     = 100
)

// GameStore is the read side of the game archive.
type GameStore interface {
	Ping(ctx context.Context) error
	RecentGames(ctx context.Context, limit int) ([]db.GameRecord, error)
}

type Server struct {
	Registry   *rooms.Registry
	Dispatcher *dispatch.Dispatcher
	Hub        *wshub.Hub
	Metrics    *metrics.Metrics
	Games      GameStore // nil if no database configured

	AllowedOrigins []string
	SendBuffer     int
}

// Routes returns the HTTP surface wrapped in CORS handling.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/games", s.handleGames)
	mux.Handle("GET /metrics", s.Metrics.Handler())

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: s.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// handleWS upgrades the request and runs the connection until the peer
// goes away or the connection is closed from our side.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.AllowedOrigins,
	})
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := wshub.NewClient(conn, s.SendBuffer)
	session := s.Dispatcher.NewSession(client)
	s.Hub.Register(client)
	s.Metrics.ConnectionOpened()
	log.Info().Str("connection_id", client.ID()).Str("remote_addr", r.RemoteAddr).Msg("connection opened")

	defer func() {
		session.Close()
		s.Hub.Unregister(client.ID())
		client.Close()
		s.Metrics.ConnectionClosed()
		log.Info().Str("connection_id", client.ID()).Msg("connection closed")
	}()

	go client.WritePump(ctx)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		reply, ok := session.Handle(ctx, data)
		if !ok {
			continue
		}
		if err := client.Send(reply); err != nil {
			log.Warn().Err(err).Str("connection_id", client.ID()).Msg("dropping reply")
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.Games != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Games.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Rooms        int              `json:"rooms"`
	Connections  int              `json:"connections"`
	GamesRunning int              `json:"games_running"`
	RoomList     []rooms.RoomInfo `json:"room_list"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	list := s.Registry.List()
	resp := statsResponse{
		Rooms:       len(list),
		Connections: s.Hub.Count(),
		RoomList:    list,
	}
	for _, info := range list {
		if info.GameRunning {
			resp.GamesRunning++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if s.Games == nil {
		http.Error(w, "Game history requires a database connection", http.StatusServiceUnavailable)
		return
	}

	limit := defaultGamesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxGamesLimit)
	}

	games, err := s.Games.RecentGames(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("loading recent games")
		http.Error(w, "Error loading games", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response")
	}
}
