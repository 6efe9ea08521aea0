package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"music-battle/internal/catalog"
	"music-battle/internal/room"
	"music-battle/internal/session"
)

func TestRendererPrintsChanges(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)
	doc := room.Room{Code: "ABC123", Player1: "Ana", Genre: "rock", TurnTime: 15, Message: "Waiting for player 2..."}

	r.Update(session.View{Phase: session.PhaseLobby, Code: "ABC123", Player: "Ana", Room: doc})
	doc.Player2 = "Beto"
	doc.Message = "Ana starts!"
	playing := session.View{Phase: session.PhasePlaying, Code: "ABC123", Player: "Ana", Room: doc, CurrentPlayer: 1, MyTurn: true, TimeLeft: 15}
	r.Update(playing)
	playing.TimeLeft = 14
	r.Update(playing)
	playing.TimeLeft = 5
	r.Update(playing)
	doc.Winner = "Ana"
	doc.Message = "Artist not found. Beto loses"
	r.Update(session.View{Phase: session.PhaseEnded, Player: "Ana", Room: doc, RematchRemaining: 30 * time.Second})
	r.Update(session.View{Phase: session.PhaseIdle, Notice: "Room closed"})

	got := out.String()
	for _, want := range []string{
		"Waiting for an opponent in room ABC123 (rock, 15s per turn)",
		"» Ana starts!",
		"Ana vs Beto, genre rock",
		"Your turn: 15s",
		"  5s left",
		"You win!",
		"Type /rematch or /decline within 30s",
		"Room closed",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "14s left") {
		t.Fatalf("expected quiet countdown between marks, got:\n%s", got)
	}
	select {
	case <-r.Idle():
	default:
		t.Fatalf("expected idle to be signalled")
	}
}

func TestRendererIdleBeforeEnteringIsQuiet(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)
	r.Update(session.View{Phase: session.PhaseIdle, Notice: "Enter an artist"})
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
	select {
	case <-r.Idle():
		t.Fatalf("idle signalled before entering a room")
	default:
	}
}

func TestGenresCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newCmd(&Config{}, strings.NewReader(""), &out)
	cmd.SetArgs([]string{"genres"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "rock") || !strings.Contains(out.String(), "Rap/Hip Hop") {
		t.Fatalf("unexpected genres output: %s", out.String())
	}
}

func TestCreateRequiresName(t *testing.T) {
	t.Setenv("MUSICBATTLE_NAME", "")
	cmd := newCmd(&Config{}, strings.NewReader(""), &bytes.Buffer{})
	cmd.SetArgs([]string{"create", "--store", "memory"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("expected missing name error, got %v", err)
	}
}

func TestInvalidStore(t *testing.T) {
	cmd := newCmd(&Config{}, strings.NewReader(""), &bytes.Buffer{})
	cmd.SetArgs([]string{"rooms", "--store", "ftp://example"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid --store") {
		t.Fatalf("expected invalid store error, got %v", err)
	}
}

func TestCreateWithOfflineCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create catalog: %v", err)
	}
	if err := catalog.WriteStatic(f, []catalog.StaticArtist{{ID: "queen", Name: "Queen"}}); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	_ = f.Close()

	// The name comes from the environment through viper.
	t.Setenv("MUSICBATTLE_NAME", "Ana")
	var out bytes.Buffer
	cmd := newCmd(&Config{}, strings.NewReader("/help\n/nope\n/leave\n"), &out)
	cmd.SetArgs([]string{"create", "--store", "memory", "--catalog", path, "--genre", "pop", "--turn", "20"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Room code: ", "Waiting for an opponent", "(pop, 20s per turn)", "unknown command /nope"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Room closed") {
		t.Fatalf("leaving should not report a remote close:\n%s", got)
	}
}
