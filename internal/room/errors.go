package room

import "errors"

var (
	ErrNameRequired      = errors.New("player name is required")
	ErrCodeRequired      = errors.New("room code is required")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrNameTaken         = errors.New("name already taken in this room")
	ErrNotPlaying        = errors.New("game is not in progress")
	ErrNotEnded          = errors.New("game has not ended")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrStaleTick         = errors.New("countdown is above the stored value")
	ErrNotSeated         = errors.New("player is not seated in this room")
	ErrRematchNotReady   = errors.New("both players must request a rematch")
	ErrInvalidCode       = errors.New("invalid room code")
	ErrInvalidTurnTime   = errors.New("turn time must be positive")
	ErrUnsupportedSchema = errors.New("unsupported room schema")
	ErrInvalidDocument   = errors.New("invalid room document")
)
