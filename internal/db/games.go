package db

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"swapforfood/internal/events"
)

// GameRecord is one archived voting round.
type GameRecord struct {
	ID          int64             `json:"id"`
	RoomCode    string            `json:"room_code"`
	Reason      string            `json:"reason"`
	StartedAt   time.Time         `json:"started_at"`
	EndedAt     time.Time         `json:"ended_at"`
	VotesCast   int               `json:"votes_cast"`
	VotesNeeded int               `json:"votes_needed"`
	Candidates  []CandidateRecord `json:"candidates"`
}

type CandidateRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PhotoURL    string   `json:"photo_url"`
	LikedBy     []string `json:"liked_by"`
}

// RecordGame archives a finished round and its per-candidate likes in a
// single transaction.
func (d *DB) RecordGame(ctx context.Context, ev events.GameEndedEvent) (int64, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO games (room_code, reason, started_at, ended_at, votes_cast, votes_needed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, ev.RoomCode, string(ev.Reason), ev.StartedAt, ev.EndedAt, ev.VotesCast, ev.VotesNeeded).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating game: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO game_candidates (game_id, position, candidate_id, name, description, photo_url, liked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range ev.Candidates {
		likes := ev.Likes[c.Name]
		if likes == nil {
			likes = []string{}
		}
		if _, err := stmt.ExecContext(ctx, id, i, c.ID, c.Name, c.Description, c.PhotoURL, pq.Array(likes)); err != nil {
			return 0, fmt.Errorf("recording candidate %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing game: %w", err)
	}
	return id, nil
}

// RecentGames returns up to limit archived rounds, newest first.
func (d *DB) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, room_code, reason, started_at, ended_at, votes_cast, votes_needed
		FROM games
		ORDER BY ended_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	index := make(map[int64]int)
	for rows.Next() {
		var g GameRecord
		if err := rows.Scan(&g.ID, &g.RoomCode, &g.Reason, &g.StartedAt, &g.EndedAt, &g.VotesCast, &g.VotesNeeded); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		g.Candidates = []CandidateRecord{}
		index[g.ID] = len(games)
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating games: %w", err)
	}
	if len(games) == 0 {
		return []GameRecord{}, nil
	}

	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	crows, err := d.conn.QueryContext(ctx, `
		SELECT game_id, candidate_id, name, description, photo_url, liked_by
		FROM game_candidates
		WHERE game_id = ANY($1)
		ORDER BY game_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var (
			gameID int64
			c      CandidateRecord
		)
		if err := crows.Scan(&gameID, &c.ID, &c.Name, &c.Description, &c.PhotoURL, pq.Array(&c.LikedBy)); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if c.LikedBy == nil {
			c.LikedBy = []string{}
		}
		g := &games[index[gameID]]
		g.Candidates = append(g.Candidates, c)
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return games, nil
}
