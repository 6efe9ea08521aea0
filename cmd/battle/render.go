package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"music-battle/internal/catalog"
	"music-battle/internal/session"
)

// renderer prints what changed between successive session views. It runs
// on the session goroutine and must not call back into the session.
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	last    session.View
	entered bool
	idle    chan struct{}
	once    sync.Once
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, idle: make(chan struct{})}
}

// Idle is closed once the player has been in a room and is no longer.
func (r *renderer) Idle() <-chan struct{} {
	return r.idle
}

func (r *renderer) Update(v session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.last
	r.last = v

	if v.Phase == session.PhaseIdle {
		if r.entered {
			if v.Notice != "" {
				r.printf("%s\n", v.Notice)
			}
			r.once.Do(func() { close(r.idle) })
		}
		return
	}
	r.entered = true

	if v.Room.Message != "" && v.Room.Message != prev.Room.Message {
		r.printf("» %s\n", v.Room.Message)
	}
	if v.Phase != prev.Phase {
		r.phaseChanged(v)
	}
	if v.Phase == session.PhasePlaying {
		r.turn(prev, v)
	}
	if v.Warning && !prev.Warning && v.Phase == session.PhasePlaying {
		r.printf("! You left the game. Come back within %s with /back\n", v.AwayRemaining.Round(100*time.Millisecond))
	}
	if v.Notice != "" && v.Notice != prev.Notice {
		r.printf("! %s\n", v.Notice)
	}
}

func (r *renderer) phaseChanged(v session.View) {
	switch v.Phase {
	case session.PhaseLobby:
		r.printf("Waiting for an opponent in room %s (%s, %ds per turn)\n", v.Code, v.Room.Genre, v.Room.TurnTime)
	case session.PhasePlaying:
		r.printf("%s vs %s, genre %s\n", v.Room.Player1, v.Room.Player2, v.Room.Genre)
	case session.PhaseEnded:
		if v.Room.Winner == v.Player {
			r.printf("You win!\n")
		} else if v.Room.Winner != "" {
			r.printf("%s wins.\n", v.Room.Winner)
		}
		if v.RematchRemaining > 0 {
			r.printf("Type /rematch or /decline within %s\n", v.RematchRemaining.Round(time.Second))
		}
	}
}

func (r *renderer) turn(prev, v session.View) {
	if prev.Phase != session.PhasePlaying || prev.CurrentPlayer != v.CurrentPlayer {
		if v.MyTurn {
			r.printf("Your turn: %ds\n", v.TimeLeft)
		} else {
			r.printf("Waiting for %s...\n", v.Room.PlayerName(v.CurrentPlayer))
		}
		return
	}
	if v.MyTurn && v.TimeLeft != prev.TimeLeft && v.TimeLeft > 0 && (v.TimeLeft <= 5 || v.TimeLeft%5 == 0) {
		r.printf("  %ds left\n", v.TimeLeft)
	}
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func printInfo(out io.Writer, info catalog.Info) {
	fmt.Fprintf(out, "%s\n", info.Name)
	fmt.Fprintf(out, "  %s from %s, %s to %s\n", info.Kind, info.Country, info.BeginYear, info.EndYear)
	fmt.Fprintf(out, "  Genres: %s\n", info.Genres)
	if info.Image != "" {
		fmt.Fprintf(out, "  Cover: %s\n", info.Image)
	}
}

// lockedWriter serializes writes from the session goroutine and the
// command loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
