package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"

	"swapforfood/internal/events"
)

const subscriberBuffer = 32

// Broadcaster fans game-ended events from the bus out to every subscribed
// result sink. A slow sink misses events rather than stalling the others.
type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[chan events.GameEndedEvent]bool
}

func NewBroadcaster(bus *events.Bus) *Broadcaster {
	b := &Broadcaster{
		Clients: make(map[chan events.GameEndedEvent]bool),
	}
	go func() {
		for ev := range bus.GameEnded {
			b.Broadcast(ev)
		}
	}()
	return b
}

func (b *Broadcaster) Subscribe() chan events.GameEndedEvent {
	ch := make(chan events.GameEndedEvent, subscriberBuffer)
	b.Mu.Lock()
	b.Clients[ch] = true
	b.Mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan events.GameEndedEvent) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.Clients[ch] {
		delete(b.Clients, ch)
		close(ch)
	}
}

func (b *Broadcaster) Broadcast(ev events.GameEndedEvent) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("room_code", ev.RoomCode).Msg("result sink lagging, dropping game event")
		}
	}
}

// Close unsubscribes every sink, ending their consume loops.
func (b *Broadcaster) Close() {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients {
		delete(b.Clients, ch)
		close(ch)
	}
}
