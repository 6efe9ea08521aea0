// Package clock holds the per-client turn countdown and the rule for merging
// it with the countdown stored in the room document.
package clock

import "music-battle/internal/room"

type Action int

const (
	// None means the tick changed nothing worth writing.
	None Action = iota
	// Write means the new value should be stored.
	Write
	// Expire means the running turn just hit zero. It is reported once per
	// turn.
	Expire
)

type Clock struct {
	turnTime      int
	currentPlayer int
	timeLeft      int
	running       bool
	visible       bool
	ending        bool
}

func New() *Clock {
	return &Clock{visible: true, currentPlayer: 1}
}

// Reconcile folds an incoming document into the local countdown.
// currentPlayer is always taken from the store. timeLeft is taken when the
// turn changed, when a game (re)starts, or when the stored value is below the
// local one; otherwise the local value stands, so a stale write still in
// flight cannot roll the countdown back.
func (c *Clock) Reconcile(r room.Room) {
	c.turnTime = r.TurnTime
	switch r.Status {
	case room.StatusPlaying:
		newTurn := !c.running || r.CurrentPlayer != c.currentPlayer
		if newTurn || r.TimeLeft < c.timeLeft {
			c.timeLeft = r.TimeLeft
		}
		if newTurn {
			c.ending = false
		}
		c.running = true
	case room.StatusEnded:
		c.running = false
		c.timeLeft = 0
	default:
		c.running = false
		c.timeLeft = r.TimeLeft
		c.ending = false
	}
	c.currentPlayer = r.CurrentPlayer
}

// Tick advances the countdown by one unit. Nothing moves while the game is
// not running, the tab is hidden, or an expiry is already being handled.
func (c *Clock) Tick() (Action, int) {
	if !c.running || !c.visible || c.ending {
		return None, c.timeLeft
	}
	if c.timeLeft > 0 {
		c.timeLeft--
	}
	if c.timeLeft > 0 {
		return Write, c.timeLeft
	}
	c.ending = true
	return Expire, 0
}

// SetVisible suspends or resumes the countdown. Resuming continues from the
// last local value; time spent hidden is not made up.
func (c *Clock) SetVisible(visible bool) {
	c.visible = visible
}

// AbortEnding re-arms expiry after a timeout write failed. The next tick
// reports Expire again.
func (c *Clock) AbortEnding() {
	c.ending = false
}

func (c *Clock) TimeLeft() int      { return c.timeLeft }
func (c *Clock) CurrentPlayer() int { return c.currentPlayer }
func (c *Clock) Running() bool      { return c.running }
func (c *Clock) Visible() bool      { return c.visible }
func (c *Clock) Ending() bool       { return c.ending }
