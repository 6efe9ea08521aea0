package room

import (
	"fmt"
	"strings"
	"time"
)

// New builds the document written when a host creates a room.
func New(code, host string, settings Settings, now time.Time) (Room, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Room{}, ErrNameRequired
	}
	if !ValidCode(code) {
		return Room{}, ErrInvalidCode
	}
	if settings.TurnTime <= 0 {
		return Room{}, ErrInvalidTurnTime
	}
	artistType := settings.ArtistType
	if artistType == "" {
		artistType = ArtistBoth
	}
	if !artistType.Valid() {
		return Room{}, fmt.Errorf("unknown artist type %q", artistType)
	}
	now = now.UTC()
	return Room{
		Version:       SchemaVersion,
		Code:          code,
		Host:          host,
		Player1:       host,
		Genre:         settings.Genre,
		ArtistType:    artistType,
		TurnTime:      settings.TurnTime,
		CurrentPlayer: 1,
		TimeLeft:      settings.TurnTime,
		UsedArtists:   []string{},
		Status:        StatusWaiting,
		Message:       "Waiting for player 2...",
		CreatedAt:     now,
		LastActivity:  now,
	}, nil
}

// Join seats the second player and starts the game.
func Join(r Room, name string) (Fields, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if r.Player2 != "" || r.Status != StatusWaiting {
		return nil, ErrRoomFull
	}
	if name == r.Player1 {
		return nil, ErrNameTaken
	}
	return Fields{
		FieldPlayer2: name,
		FieldStatus:  StatusPlaying,
		FieldMessage: fmt.Sprintf("%s starts!", r.Player1),
	}, nil
}

// Accept records a verified answer for the player in slot and passes the turn.
func Accept(r Room, slot int, artist string) (Fields, error) {
	if r.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if r.CurrentPlayer != slot {
		return nil, ErrNotYourTurn
	}
	used := append(append([]string(nil), r.UsedArtists...), artist)
	next := Opponent(slot)
	return Fields{
		FieldUsedArtists:   used,
		FieldCurrentPlayer: next,
		FieldTimeLeft:      r.TurnTime,
		FieldMessage:       fmt.Sprintf("✓ %s! Turn: %s", artist, r.PlayerName(next)),
	}, nil
}

// Tick writes the countdown value of the running turn. turn is the player
// whose turn the caller was counting; a tick from a turn that already passed
// fails with ErrNotYourTurn, and a value above the stored one fails with
// ErrStaleTick so the stored countdown never moves back up.
func Tick(r Room, turn, timeLeft int) (Fields, error) {
	if r.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if r.CurrentPlayer != turn {
		return nil, ErrNotYourTurn
	}
	if timeLeft > r.TimeLeft {
		return nil, ErrStaleTick
	}
	return Fields{FieldTimeLeft: clamp(timeLeft, 0, r.TurnTime)}, nil
}

// End finishes the game against the player in loser. The opponent wins and
// the clock freezes at zero. Ending a game that is not in progress fails, so
// a late duplicate write never resurrects or rewrites a finished game.
func End(r Room, loser int, message string) (Fields, error) {
	if r.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	if loser != 1 && loser != 2 {
		return nil, ErrNotSeated
	}
	return Fields{
		FieldStatus:          StatusEnded,
		FieldWinner:          r.PlayerName(Opponent(loser)),
		FieldTimeLeft:        0,
		FieldMessage:         message,
		FieldRematchAccepted: false,
	}, nil
}

// Strike records one visibility loss for slot. It returns the new count,
// clamped at MaxStrikes. local is the highest count this client has seen,
// which may be ahead of r when a previous write is still in flight.
func Strike(r Room, slot, local int, name string) (Fields, int, error) {
	if r.Status != StatusPlaying {
		return nil, 0, ErrNotPlaying
	}
	if slot != 1 && slot != 2 {
		return nil, 0, ErrNotSeated
	}
	strikes := max(r.Strikes(slot), local) + 1
	strikes = min(strikes, MaxStrikes)
	return Fields{
		StrikesField(slot): strikes,
		FieldMessage:       fmt.Sprintf("⚠️ %s left the tab (Strike %d/%d)", name, strikes, MaxStrikes),
	}, strikes, nil
}

// Notice writes an advisory message while the game is running.
func Notice(r Room, message string) (Fields, error) {
	if r.Status != StatusPlaying {
		return nil, ErrNotPlaying
	}
	return Fields{FieldMessage: message}, nil
}

func RequestRematch(r Room, slot int) (Fields, error) {
	if r.Status != StatusEnded {
		return nil, ErrNotEnded
	}
	if slot != 1 && slot != 2 {
		return nil, ErrNotSeated
	}
	return Fields{
		RematchField(slot): true,
		FieldMessage:       fmt.Sprintf("%s wants a rematch!", r.PlayerName(slot)),
	}, nil
}

func Decline(r Room, slot int) (Fields, error) {
	if r.Status != StatusEnded {
		return nil, ErrNotEnded
	}
	return Fields{
		FieldRematchDeclined: true,
		FieldMessage:         fmt.Sprintf("%s declined the rematch", r.PlayerName(slot)),
	}, nil
}

func RematchReady(r Room) bool {
	return r.Status == StatusEnded && r.Player1Rematch && r.Player2Rematch && !r.RematchDeclined
}

// Restart resets the room for a rematch once both players opted in.
func Restart(r Room) (Fields, error) {
	if !RematchReady(r) {
		return nil, ErrRematchNotReady
	}
	return Fields{
		FieldStatus:          StatusPlaying,
		FieldCurrentPlayer:   1,
		FieldTimeLeft:        r.TurnTime,
		FieldUsedArtists:     []string{},
		FieldMessage:         fmt.Sprintf("Rematch! %s starts", r.Player1),
		FieldPlayer1Strikes:  0,
		FieldPlayer2Strikes:  0,
		FieldPlayer1Rematch:  false,
		FieldPlayer2Rematch:  false,
		FieldRematchAccepted: true,
		FieldWinner:          nil,
	}, nil
}
