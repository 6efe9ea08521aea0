// Package anticheat tracks whether a player keeps the game in the foreground
// and turns visibility losses into strikes and forfeits.
package anticheat

import (
	"fmt"
	"time"

	"music-battle/internal/room"
)

// DefaultGrace is how long a player may stay away before forfeiting.
const DefaultGrace = 3 * time.Second

type State int

const (
	Focused State = iota
	Away
	Disqualified
)

func (s State) String() string {
	switch s {
	case Focused:
		return "focused"
	case Away:
		return "away"
	case Disqualified:
		return "disqualified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Outcome int

const (
	// Ignored means the event did not change anything.
	Ignored Outcome = iota
	// Struck means a strike was recorded and the grace countdown runs.
	Struck
	// Cheated means the strike limit was reached.
	Cheated
	// TimedOut means the grace countdown ran out while away.
	TimedOut
	// Returned means the player came back in time.
	Returned
)

type Event struct {
	Outcome  Outcome
	Strikes  int
	Deadline time.Time
	Away     time.Duration
}

// Monitor is a per-player state machine. It is not safe for concurrent use;
// the session loop owns it.
type Monitor struct {
	grace     time.Duration
	state     State
	strikes   int
	awaySince time.Time
	deadline  time.Time
}

func New(grace time.Duration) *Monitor {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Monitor{grace: grace}
}

// Hide records a visibility loss. Every loss counts as a strike, including
// one reported while already away. The grace deadline keeps counting from the
// first loss.
func (m *Monitor) Hide(now time.Time) Event {
	if m.state == Disqualified {
		return Event{Outcome: Ignored, Strikes: m.strikes}
	}
	m.strikes = min(m.strikes+1, room.MaxStrikes)
	if m.state == Focused {
		m.awaySince = now
		m.deadline = now.Add(m.grace)
		m.state = Away
	}
	if m.strikes >= room.MaxStrikes {
		m.state = Disqualified
		return Event{Outcome: Cheated, Strikes: m.strikes}
	}
	return Event{Outcome: Struck, Strikes: m.strikes, Deadline: m.deadline}
}

// Show records the player coming back.
func (m *Monitor) Show(now time.Time) Event {
	if m.state != Away {
		return Event{Outcome: Ignored, Strikes: m.strikes}
	}
	m.state = Focused
	away := max(now.Sub(m.awaySince), 0)
	m.awaySince = time.Time{}
	m.deadline = time.Time{}
	return Event{Outcome: Returned, Strikes: m.strikes, Away: away}
}

// Check fires the grace countdown. It only forfeits when the player is still
// away and the deadline has passed.
func (m *Monitor) Check(now time.Time) Event {
	if m.state != Away || now.Before(m.deadline) {
		return Event{Outcome: Ignored, Strikes: m.strikes}
	}
	m.state = Disqualified
	return Event{Outcome: TimedOut, Strikes: m.strikes}
}

// ObserveStrikes merges the stored count. Counts never go down within a game.
func (m *Monitor) ObserveStrikes(n int) {
	m.strikes = max(m.strikes, min(n, room.MaxStrikes))
}

// Reset returns the monitor to a clean focused state for a new game.
func (m *Monitor) Reset() {
	*m = Monitor{grace: m.grace}
}

func (m *Monitor) State() State         { return m.state }
func (m *Monitor) Strikes() int         { return m.strikes }
func (m *Monitor) Deadline() time.Time  { return m.deadline }
func (m *Monitor) Grace() time.Duration { return m.grace }

// Remaining reports how much of the grace window is left.
func (m *Monitor) Remaining(now time.Time) time.Duration {
	if m.state != Away {
		return 0
	}
	return max(m.deadline.Sub(now), 0)
}

func CheatedMessage(name string) string {
	return fmt.Sprintf("%s was disqualified for cheating (%d strikes)", name, room.MaxStrikes)
}

func TimedOutMessage(name string, grace time.Duration) string {
	return fmt.Sprintf("%s lost for being away from the tab for more than %d seconds", name, int(grace/time.Second))
}

// ReturnedMessage reports whole seconds away, rounded down.
func ReturnedMessage(name string, away time.Duration) string {
	secs := int(away / time.Second)
	unit := "seconds"
	if secs == 1 {
		unit = "second"
	}
	return fmt.Sprintf("%s returned after %d %s", name, secs, unit)
}
