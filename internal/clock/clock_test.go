package clock

import (
	"testing"

	"music-battle/internal/room"
)

func playing(current, timeLeft int) room.Room {
	return room.Room{Status: room.StatusPlaying, TurnTime: 15, CurrentPlayer: current, TimeLeft: timeLeft}
}

func TestTickCountsDownAndExpiresOnce(t *testing.T) {
	c := New()
	c.Reconcile(playing(1, 2))

	action, left := c.Tick()
	if action != Write || left != 1 {
		t.Fatalf("expected write 1, got %v %d", action, left)
	}
	action, left = c.Tick()
	if action != Expire || left != 0 {
		t.Fatalf("expected expire 0, got %v %d", action, left)
	}
	for i := 0; i < 3; i++ {
		if action, _ := c.Tick(); action != None {
			t.Fatalf("expected no action after expiry, got %v", action)
		}
	}
}

func TestReconcileKeepsLowerLocalValue(t *testing.T) {
	c := New()
	c.Reconcile(playing(1, 10))
	c.Tick()
	c.Tick()
	if c.TimeLeft() != 8 {
		t.Fatalf("expected 8, got %d", c.TimeLeft())
	}

	// A stale write from the peer arrives late.
	c.Reconcile(playing(1, 9))
	if c.TimeLeft() != 8 {
		t.Fatalf("expected stale value to be ignored, got %d", c.TimeLeft())
	}

	c.Reconcile(playing(1, 5))
	if c.TimeLeft() != 5 {
		t.Fatalf("expected lower stored value to win, got %d", c.TimeLeft())
	}
}

func TestReconcileTurnChangeResets(t *testing.T) {
	c := New()
	c.Reconcile(playing(1, 3))
	c.Tick()
	c.Tick()
	if action, _ := c.Tick(); action != Expire {
		t.Fatalf("expected expire, got %v", action)
	}

	c.Reconcile(playing(2, 15))
	if c.CurrentPlayer() != 2 || c.TimeLeft() != 15 {
		t.Fatalf("expected player 2 with 15, got %d %d", c.CurrentPlayer(), c.TimeLeft())
	}
	if c.Ending() {
		t.Fatalf("expected expiry re-armed for the new turn")
	}
	if action, left := c.Tick(); action != Write || left != 14 {
		t.Fatalf("expected write 14, got %v %d", action, left)
	}
}

func TestHiddenClockDoesNotAdvance(t *testing.T) {
	c := New()
	c.Reconcile(playing(1, 10))
	c.SetVisible(false)
	for i := 0; i < 5; i++ {
		if action, _ := c.Tick(); action != None {
			t.Fatalf("expected no action while hidden, got %v", action)
		}
	}
	c.SetVisible(true)
	if _, left := c.Tick(); left != 9 {
		t.Fatalf("expected countdown to resume at 9, got %d", left)
	}
}

func TestEndedAndWaitingStopClock(t *testing.T) {
	c := New()
	c.Reconcile(room.Room{Status: room.StatusWaiting, TurnTime: 15, CurrentPlayer: 1, TimeLeft: 15})
	if action, _ := c.Tick(); action != None {
		t.Fatalf("expected waiting room to stay still, got %v", action)
	}
	c.Reconcile(playing(1, 15))
	c.Reconcile(room.Room{Status: room.StatusEnded, TurnTime: 15, CurrentPlayer: 1})
	if c.Running() || c.TimeLeft() != 0 {
		t.Fatalf("expected ended clock to stop at 0")
	}
	if action, _ := c.Tick(); action != None {
		t.Fatalf("expected no action after end, got %v", action)
	}
}

func TestAbortEndingRearms(t *testing.T) {
	c := New()
	c.Reconcile(playing(1, 1))
	if action, _ := c.Tick(); action != Expire {
		t.Fatalf("expected expire, got %v", action)
	}
	c.AbortEnding()
	c.Reconcile(playing(1, 1))
	if action, _ := c.Tick(); action != Expire {
		t.Fatalf("expected a second expire after abort, got %v", action)
	}
}
