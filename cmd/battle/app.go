package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"music-battle/internal/lifecycle"
	"music-battle/internal/room"
	"music-battle/internal/session"
	"music-battle/internal/verify"

	"github.com/skip2/go-qrcode"
)

type app struct {
	out    io.Writer
	sess   *session.Session
	life   *lifecycle.Manager
	render *renderer
	stop   context.CancelFunc
}

func openApp(ctx context.Context, cfg *Config, out io.Writer) (*app, error) {
	st, err := cfg.openStore()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cat, err := cfg.openCatalog()
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	base := cfg.base
	life := lifecycle.New(st, lifecycle.Options{
		MaxRooms:       base.MaxRooms,
		Inactivity:     base.Inactivity(),
		SweepInterval:  base.SweepInterval(),
		PostGameDelete: base.PostGameDelete(),
		RematchDelete:  base.RematchDelete(),
	})
	r := newRenderer(out)
	sess := session.New(st, cat, verify.New(cat, base.SimilarityThreshold), life, session.Config{
		TickInterval:   base.TickInterval(),
		Grace:          base.Grace(),
		WarningClear:   base.WarningClear(),
		RematchWindow:  base.RematchWindow(),
		RematchEnabled: base.RematchEnabled,
		OnChange:       r.Update,
	})
	sweepCtx, stop := context.WithCancel(ctx)
	go life.Run(sweepCtx)
	return &app{out: out, sess: sess, life: life, render: r, stop: stop}, nil
}

func (a *app) Close() {
	a.stop()
	a.sess.Close()
	a.life.Stop()
}

const helpText = `Type an artist name and press enter on your turn.
  /away, /back     leave or return to the game (3 strikes or 3s away loses)
  /rematch         ask for a rematch after the game
  /decline         refuse the rematch and close the room
  /info ARTIST     show details about an artist
  /leave           close the room and quit
`

// play reads commands from in until the player leaves, the room closes or
// ctx ends.
func (a *app) play(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	fmt.Fprint(a.out, helpText)

	for {
		select {
		case <-ctx.Done():
			return a.leave()
		case <-a.render.Idle():
			return nil
		case line, ok := <-lines:
			if !ok {
				return a.leave()
			}
			done, err := a.exec(ctx, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(a.out, "! %s\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

func (a *app) leave() error {
	err := a.sess.Leave(context.Background())
	if errors.Is(err, session.ErrNoRoom) {
		return nil
	}
	return err
}

func (a *app) exec(ctx context.Context, line string) (bool, error) {
	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "":
		return false, nil
	case "/help":
		fmt.Fprint(a.out, helpText)
	case "/away":
		return false, a.sess.SetVisible(ctx, false)
	case "/back":
		return false, a.sess.SetVisible(ctx, true)
	case "/rematch":
		return false, a.sess.RequestRematch(ctx)
	case "/decline":
		return true, a.sess.DeclineRematch(ctx)
	case "/leave", "/quit":
		return true, a.leave()
	case "/info":
		info, err := a.sess.Info(ctx, arg)
		if err != nil {
			return false, err
		}
		printInfo(a.out, info)
	default:
		if strings.HasPrefix(command, "/") {
			return false, fmt.Errorf("unknown command %s, try /help", command)
		}
		out, err := a.sess.Submit(ctx, line)
		if errors.Is(err, room.ErrNotYourTurn) {
			return false, errors.New("wait for your turn")
		}
		if err != nil {
			return false, err
		}
		if out.Result.Warning != "" {
			fmt.Fprintf(a.out, "  (%s)\n", out.Result.Warning)
		}
	}
	return false, nil
}

func printQR(out io.Writer, code string) error {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}
	fmt.Fprint(out, qr.ToSmallString(false))
	return nil
}
