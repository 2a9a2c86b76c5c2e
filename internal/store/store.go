// Package store implements the chat persistence interfaces on GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Store is a GORM-backed chat.SessionStore, chat.MessageStore and
// chat.ParticipantStore. The connection must be opened with TranslateError
// so unique-index violations surface as gorm.ErrDuplicatedKey.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	appendMu sync.Mutex // orders clock read and insert of appends
}

// New creates a Store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var (
	_ chat.SessionStore     = (*Store)(nil)
	_ chat.MessageStore     = (*Store)(nil)
	_ chat.ParticipantStore = (*Store)(nil)
)

// FindActiveByAdministrator returns the active session held by
// administratorID, or nil.
func (s *Store) FindActiveByAdministrator(ctx context.Context, administratorID string) (*models.ChatSession, error) {
	return s.findActive(ctx, "active_administrator = ?", administratorID)
}

// FindActiveByConversation returns the active session on conversationID,
// or nil.
func (s *Store) FindActiveByConversation(ctx context.Context, conversationID string) (*models.ChatSession, error) {
	return s.findActive(ctx, "active_conversation = ?", conversationID)
}

func (s *Store) findActive(ctx context.Context, where, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).Where(where, id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find active session %s: %w", id, err)
	}
	return &session, nil
}

// SaveSession inserts a new session or updates an existing one. Losing the
// race on an active-key unique index is reported as chat.ErrConflict.
func (s *Store) SaveSession(ctx context.Context, session *models.ChatSession) error {
	err := s.db.WithContext(ctx).Save(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("store: save session %s/%s: %w",
			session.ConversationID, session.AdministratorID, chat.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("store: save session %s/%s: %w", session.ConversationID, session.AdministratorID, err)
	}
	return nil
}

// ListSessions returns every session of conversationID, oldest first,
// released ones included.
func (s *Store) ListSessions(ctx context.Context, conversationID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: list sessions %s: %w", conversationID, err)
	}
	return sessions, nil
}

// AppendMessage stores msg, assigning its ID and a UTC timestamp. Any ID or
// timestamp already on msg is overwritten. The timestamp never precedes the
// conversation's latest message, so id order and timestamp order agree.
func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	msg.ID = 0
	msg.Timestamp = s.now().UTC()

	var last models.ChatMessage
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", msg.ConversationID).
		Order("id DESC").Limit(1).Find(&last).Error; err != nil {
		return fmt.Errorf("store: append message to %s: %w", msg.ConversationID, err)
	}
	if last.ID != 0 && last.Timestamp.After(msg.Timestamp) {
		msg.Timestamp = last.Timestamp.UTC()
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("store: append message to %s: %w", msg.ConversationID, err)
	}
	return nil
}

// ListMessages returns the messages of conversationID in append order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: list messages %s: %w", conversationID, err)
	}
	return msgs, nil
}

// LatestMessage returns the newest message of conversationID, or nil.
func (s *Store) LatestMessage(ctx context.Context, conversationID string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("id DESC").First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest message %s: %w", conversationID, err)
	}
	return &msg, nil
}

// ListParticipants returns the participants with role, ordered by ID.
func (s *Store) ListParticipants(ctx context.Context, role models.Role) ([]models.Participant, error) {
	var out []models.Participant
	if err := s.db.WithContext(ctx).Where("role = ?", role).
		Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list participants %s: %w", role, err)
	}
	return out, nil
}

// Participant returns the participant with id, or nil.
func (s *Store) Participant(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: participant %s: %w", id, err)
	}
	return &p, nil
}
