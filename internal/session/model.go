package session

import (
	"encoding/json"
	"time"
)

// Session is one in-progress conversation. The absence of a row is the
// idle state; rows exist only between the first input of a flow and its
// completion or cancellation.
type Session struct {
	ChatID int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"index;not null"`

	State   string          `gorm:"type:text;not null"` // "flow:step"
	Context json.RawMessage `gorm:"type:jsonb;not null"`

	UpdatedAt time.Time `gorm:"index;not null"`
}

// Values decodes the accumulated context fields.
func (s *Session) Values() map[string]string {
	m := map[string]string{}
	if len(s.Context) > 0 {
		_ = json.Unmarshal(s.Context, &m)
	}
	return m
}

// EncodeContext serializes context fields for storage.
func EncodeContext(m map[string]string) json.RawMessage {
	if m == nil {
		m = map[string]string{}
	}
	b, _ := json.Marshal(m)
	return b
}
