package events

import (
	"time"

	"swapforfood/internal/candidates"
)

type EndReason string

const (
	EndQuorum   = EndReason("quorum")
	EndDeadline = EndReason("deadline")
	EndAborted  = EndReason("aborted")
)

// GameEndedEvent describes a finished voting round.
type GameEndedEvent struct {
	RoomCode    string                 `json:"room_code"`
	Reason      EndReason              `json:"reason"`
	StartedAt   time.Time              `json:"started_at"`
	EndedAt     time.Time              `json:"ended_at"`
	Candidates  []candidates.Candidate `json:"candidates"`
	Likes       map[string][]string    `json:"likes"` // candidate name -> usernames
	VotesCast   int                    `json:"votes_cast"`
	VotesNeeded int                    `json:"votes_needed"`
}

const busBuffer = 64

type Bus struct {
	GameEnded chan GameEndedEvent
}

func NewBus() *Bus {
	return &Bus{
		GameEnded: make(chan GameEndedEvent, busBuffer),
	}
}

// PublishGameEnded never blocks; it reports false when the event was dropped.
func (b *Bus) PublishGameEnded(ev GameEndedEvent) bool {
	if b == nil {
		return false
	}
	select {
	case b.GameEnded <- ev:
		return true
	default:
		return false
	}
}
