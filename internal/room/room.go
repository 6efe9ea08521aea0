package room

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the document shape written by this module. Older
// documents are upgraded on decode; newer ones are rejected.
const SchemaVersion = 1

const (
	MaxStrikes = 3
	CodeLength = 6
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

type ArtistType string

const (
	ArtistBoth  ArtistType = "both"
	ArtistSolo  ArtistType = "solo"
	ArtistBands ArtistType = "bands"
)

func (a ArtistType) Valid() bool {
	switch a {
	case ArtistBoth, ArtistSolo, ArtistBands:
		return true
	}
	return false
}

// Room is the shared document for one game. Both clients read and write it
// through the store; no field is owned by a single writer.
type Room struct {
	Version         int        `json:"version"`
	Code            string     `json:"code"`
	Host            string     `json:"host,omitempty"`
	Player1         string     `json:"player1,omitempty"`
	Player2         string     `json:"player2,omitempty"`
	Genre           string     `json:"genre"`
	ArtistType      ArtistType `json:"artistType"`
	TurnTime        int        `json:"turnTime"`
	CurrentPlayer   int        `json:"currentPlayer"`
	TimeLeft        int        `json:"timeLeft"`
	UsedArtists     []string   `json:"usedArtists"`
	Status          Status     `json:"status"`
	Player1Strikes  int        `json:"player1Strikes"`
	Player2Strikes  int        `json:"player2Strikes"`
	Winner          string     `json:"winner,omitempty"`
	Message         string     `json:"message,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastActivity    time.Time  `json:"lastActivity"`
	Player1Rematch  bool       `json:"player1Rematch"`
	Player2Rematch  bool       `json:"player2Rematch"`
	RematchDeclined bool       `json:"rematchDeclined"`
	RematchAccepted bool       `json:"rematchAccepted"`
}

// Settings are chosen by the host and frozen for the life of the room.
type Settings struct {
	Genre      string
	ArtistType ArtistType
	TurnTime   int
}

// Summary is what room discovery shows for an open room.
type Summary struct {
	Code       string     `json:"code"`
	Host       string     `json:"host"`
	Genre      string     `json:"genre"`
	TurnTime   int        `json:"turnTime"`
	ArtistType ArtistType `json:"artistType"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (r Room) Clone() Room {
	out := r
	out.UsedArtists = append([]string(nil), r.UsedArtists...)
	return out
}

func (r Room) PlayerName(slot int) string {
	if slot == 2 {
		return r.Player2
	}
	return r.Player1
}

// SlotOf returns 1 or 2 for a seated player and 0 otherwise.
func (r Room) SlotOf(name string) int {
	switch {
	case name == "":
		return 0
	case name == r.Player1:
		return 1
	case name == r.Player2:
		return 2
	}
	return 0
}

func (r Room) Strikes(slot int) int {
	if slot == 2 {
		return r.Player2Strikes
	}
	return r.Player1Strikes
}

func (r Room) RematchRequested(slot int) bool {
	if slot == 2 {
		return r.Player2Rematch
	}
	return r.Player1Rematch
}

// ActivityTime is the timestamp the lifecycle sweep ages a room by.
func (r Room) ActivityTime() time.Time {
	if !r.LastActivity.IsZero() {
		return r.LastActivity
	}
	return r.CreatedAt
}

func (r Room) Open() bool {
	return r.Status == StatusWaiting && r.Player2 == ""
}

func (r Room) Summary() Summary {
	host := r.Host
	if host == "" {
		host = r.Player1
	}
	return Summary{
		Code:       r.Code,
		Host:       host,
		Genre:      r.Genre,
		TurnTime:   r.TurnTime,
		ArtistType: r.ArtistType,
		CreatedAt:  r.CreatedAt,
	}
}

func Opponent(slot int) int {
	if slot == 1 {
		return 2
	}
	return 1
}

// Decode parses a stored document, upgrading older shapes and rejecting
// anything this version cannot interpret.
func Decode(data []byte) (Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return Room{}, fmt.Errorf("decode room: %w", err)
	}
	return Upgrade(r)
}

func Upgrade(r Room) (Room, error) {
	if r.Version > SchemaVersion {
		return Room{}, fmt.Errorf("room %s: %w (version %d)", r.Code, ErrUnsupportedSchema, r.Version)
	}
	if !ValidCode(r.Code) {
		return Room{}, fmt.Errorf("room %q: %w", r.Code, ErrInvalidCode)
	}
	if r.TurnTime <= 0 {
		return Room{}, fmt.Errorf("room %s: %w", r.Code, ErrInvalidTurnTime)
	}
	if r.ArtistType == "" {
		r.ArtistType = ArtistBoth
	}
	if !r.ArtistType.Valid() {
		return Room{}, fmt.Errorf("room %s: unknown artist type %q", r.Code, r.ArtistType)
	}
	switch r.Status {
	case StatusWaiting, StatusPlaying, StatusEnded:
	case "":
		r.Status = StatusWaiting
	default:
		return Room{}, fmt.Errorf("room %s: unknown status %q", r.Code, r.Status)
	}
	if r.CurrentPlayer != 1 && r.CurrentPlayer != 2 {
		r.CurrentPlayer = 1
	}
	r.TimeLeft = clamp(r.TimeLeft, 0, r.TurnTime)
	r.Player1Strikes = clamp(r.Player1Strikes, 0, MaxStrikes)
	r.Player2Strikes = clamp(r.Player2Strikes, 0, MaxStrikes)
	if r.UsedArtists == nil {
		r.UsedArtists = []string{}
	}
	if r.Host == "" {
		r.Host = r.Player1
	}
	r.Version = SchemaVersion
	return r, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
