package session

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrConflict means the stored state no longer matches the caller's
// expectation: another input for the same chat won the race. The caller
// must reload and recompute, never overwrite.
var ErrConflict = errors.New("session state conflict")

type Store struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// Load returns the current session for a chat, or nil when idle.
func (s *Store) Load(ctx context.Context, chatID int64) (*Session, error) {
	var sess Session
	err := s.DB.WithContext(ctx).Where("chat_id = ?", chatID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Begin creates the session row for a new flow. ErrConflict if the chat
// already has an active session.
func (s *Store) Begin(ctx context.Context, chatID, userID int64, state string, fields map[string]string) error {
	sess := Session{
		ChatID:    chatID,
		UserID:    userID,
		State:     state,
		Context:   EncodeContext(fields),
		UpdatedAt: s.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		// Unique violations surface differently per driver; a row already
		// holding this primary key is always a concurrent Begin.
		var existing Session
		if lookErr := s.DB.WithContext(ctx).Where("chat_id = ?", chatID).First(&existing).Error; lookErr == nil {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Transition advances the session, conditional on the stored state still
// being expectedState. RowsAffected==0 means a concurrent writer advanced
// the session first and the caller's view is stale.
func (s *Store) Transition(ctx context.Context, chatID int64, expectedState, newState string, fields map[string]string) error {
	res := s.DB.WithContext(ctx).
		Model(&Session{}).
		Where("chat_id = ? AND state = ?", chatID, expectedState).
		Updates(map[string]any{
			"state":      newState,
			"context":    EncodeContext(fields),
			"updated_at": s.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Clear deletes the session unconditionally. Idempotent: clearing an
// idle chat is not an error.
func (s *Store) Clear(ctx context.Context, chatID int64) error {
	return s.DB.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&Session{}).Error
}

// ClearStale removes sessions abandoned mid-flow so users are never
// permanently stuck. Returns the number of rows removed.
func (s *Store) ClearStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.Now().Add(-olderThan)
	res := s.DB.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&Session{})
	return res.RowsAffected, res.Error
}
