package voting

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"swapforfood/internal/events"
)

func (g *Game) armDeadline(d time.Duration) {
	g.timer = g.cfg.Clock.NewTimer(d)
	g.stop = make(chan struct{})
	go g.awaitDeadline(g.timer, g.stop)

	log.Debug().
		Str("room_code", g.host.Code()).
		Dur("duration", d).
		Msg("armed voting deadline")
}

func (g *Game) awaitDeadline(t clockwork.Timer, stop <-chan struct{}) {
	select {
	case <-t.Chan():
		g.host.Lock()
		defer g.host.Unlock()
		// The quorum path may have won the race while we waited for the lock.
		if g.state == StateRunning {
			g.end(events.EndDeadline)
		}
	case <-stop:
	}
}

// cancelDeadline is best-effort: a timer that already fired is left to
// find the game ended.
func (g *Game) cancelDeadline() {
	if g.timer == nil {
		return
	}
	stopAndDrainTimer(g.timer)
	close(g.stop)
	g.timer = nil
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
