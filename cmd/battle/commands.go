package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"music-battle/internal/room"
	"music-battle/internal/session"
	"music-battle/internal/verify"

	"github.com/spf13/cobra"
)

func newCreateCmd(cfg *Config, in io.Reader, out io.Writer) *cobra.Command {
	var (
		genre      string
		turnTime   int
		artistType string
		noQR       bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Host a new room and wait for an opponent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.requireName(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}
			defer a.Close()
			code, err := a.sess.Create(cmd.Context(), cfg.name, room.Settings{
				Genre:      genre,
				TurnTime:   turnTime,
				ArtistType: room.ArtistType(artistType),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Room code: %s\n", code)
			if !noQR {
				if err := printQR(out, code); err != nil {
					return err
				}
			}
			return a.play(cmd.Context(), in)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&genre, "genre", "g", session.DefaultGenre, "genre every answer must belong to")
	fs.IntVarP(&turnTime, "turn", "t", 15, "seconds per turn")
	fs.StringVar(&artistType, "type", string(room.ArtistBoth), "artists allowed: both, solo or bands")
	fs.BoolVar(&noQR, "no-qr", false, "do not print the room code as a QR code")
	return cmd
}

func newJoinCmd(cfg *Config, in io.Reader, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join a waiting room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.requireName(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.sess.Join(cmd.Context(), cfg.name, args[0]); err != nil {
				return err
			}
			return a.play(cmd.Context(), in)
		},
	}
}

func newRoomsCmd(cfg *Config, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms waiting for an opponent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}
			defer a.Close()
			rooms, err := a.sess.ListOpen(cmd.Context())
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Fprintln(out, "No open rooms. Create one with `battle create`.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tHOST\tGENRE\tTURN\tARTISTS")
			for _, r := range rooms {
				fmt.Fprintf(w, "%s\t%s\t%s\t%ds\t%s\n", r.Code, r.Host, r.Genre, r.TurnTime, r.ArtistType)
			}
			return w.Flush()
		},
	}
}

func newGenresCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the genres a room can use",
		Args:  cobra.NoArgs,
		// Needs no store or catalog.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, g := range verify.Genres() {
				fmt.Fprintf(out, "%-11s %s\n", g.Key, g.Name)
			}
			return nil
		},
	}
}
