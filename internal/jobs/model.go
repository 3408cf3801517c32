package jobs

import (
	"encoding/json"
	"time"
)

// Job statuses. Jobs are never deleted; terminal rows stay as an audit
// trail of what was sent (or deliberately not sent) to guests.
const (
	StatusPending  = "pending"
	StatusInFlight = "in_flight"
	StatusSent     = "sent"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Job types for booking touch points.
const (
	TypePreArrivalWeek = "pre_arrival_week"
	TypePreArrivalInfo = "pre_arrival_info"
	TypeCheckinDay     = "checkin_day"
	TypeWelfareCheck   = "welfare_check"
	TypeReviewAsk      = "review_ask"
)

type Job struct {
	ID uint64 `gorm:"primaryKey"`

	Type       string `gorm:"type:text;not null"`
	SubjectRef string `gorm:"index;not null"` // anchoring business record id

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'pending'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	// Denormalized at creation so firing never re-derives business
	// state.
	Payload json.RawMessage `gorm:"type:jsonb;not null"`

	ClaimedAt *time.Time `gorm:"index"`
	SentAt    *time.Time
	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Touchpoint is one entry of an event kind's fixed offset table.
type Touchpoint struct {
	Type   string
	Offset time.Duration
}

// BookingTouchpoints is the touch-point table for a confirmed booking,
// anchored to the check-in date.
var BookingTouchpoints = []Touchpoint{
	{Type: TypePreArrivalWeek, Offset: -7 * 24 * time.Hour},
	{Type: TypePreArrivalInfo, Offset: -2 * 24 * time.Hour},
	{Type: TypeCheckinDay, Offset: 0},
	{Type: TypeWelfareCheck, Offset: 4 * time.Hour},
	{Type: TypeReviewAsk, Offset: 7 * 24 * time.Hour},
}
