package room

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Field names as they appear in the stored document.
const (
	FieldCode            = "code"
	FieldPlayer2         = "player2"
	FieldCurrentPlayer   = "currentPlayer"
	FieldTimeLeft        = "timeLeft"
	FieldUsedArtists     = "usedArtists"
	FieldStatus          = "status"
	FieldPlayer1Strikes  = "player1Strikes"
	FieldPlayer2Strikes  = "player2Strikes"
	FieldWinner          = "winner"
	FieldMessage         = "message"
	FieldLastActivity    = "lastActivity"
	FieldPlayer1Rematch  = "player1Rematch"
	FieldPlayer2Rematch  = "player2Rematch"
	FieldRematchDeclined = "rematchDeclined"
	FieldRematchAccepted = "rematchAccepted"
)

// Fields is a partial update. A nil value removes the field.
type Fields map[string]any

func StrikesField(slot int) string {
	if slot == 2 {
		return FieldPlayer2Strikes
	}
	return FieldPlayer1Strikes
}

func RematchField(slot int) string {
	if slot == 2 {
		return FieldPlayer2Rematch
	}
	return FieldPlayer1Rematch
}

// Touch returns a copy of f with lastActivity set to now.
func (f Fields) Touch(now time.Time) Fields {
	out := make(Fields, len(f)+1)
	maps.Copy(out, f)
	out[FieldLastActivity] = now.UTC()
	return out
}

// Apply merges f into r field by field, the same way the store does.
// Immutable fields (code) cannot be changed by a partial update.
func Apply(r Room, f Fields) (Room, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return Room{}, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Room{}, err
	}
	for key, value := range f {
		if key == FieldCode {
			continue
		}
		if value == nil {
			delete(doc, key)
			continue
		}
		doc[key] = value
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return Room{}, fmt.Errorf("merge fields: %w", err)
	}
	var out Room
	if err := json.Unmarshal(merged, &out); err != nil {
		return Room{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Upgrade(out)
}
