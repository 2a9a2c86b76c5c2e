package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/models"
)

// memSessions is an in-memory SessionStore. It performs no check-then-act
// of its own, so mutual exclusion rests entirely on AssignmentManager.
type memSessions struct {
	mu       sync.Mutex
	rows     []models.ChatSession
	nextID   uint
	finds    int
	saveErr  error
	findErr  error
	lookup   time.Duration      // artificial latency per find, widens race windows
	onFindBy func(admin string) // called before FindActiveByAdministrator, unlocked
}

func newMemSessions() *memSessions { return &memSessions{} }

func (s *memSessions) FindActiveByAdministrator(ctx context.Context, administratorID string) (*models.ChatSession, error) {
	if s.onFindBy != nil {
		s.onFindBy(administratorID)
	}
	return s.find(func(r models.ChatSession) bool { return r.Active && r.AdministratorID == administratorID })
}

func (s *memSessions) FindActiveByConversation(ctx context.Context, conversationID string) (*models.ChatSession, error) {
	return s.find(func(r models.ChatSession) bool { return r.Active && r.ConversationID == conversationID })
}

func (s *memSessions) find(match func(models.ChatSession) bool) (*models.ChatSession, error) {
	if s.lookup > 0 {
		time.Sleep(s.lookup)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, r := range s.rows {
		if match(r) {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memSessions) SaveSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if session.ID == 0 {
		s.nextID++
		session.ID = s.nextID
		s.rows = append(s.rows, *session)
		return nil
	}
	for i := range s.rows {
		if s.rows[i].ID == session.ID {
			s.rows[i] = *session
			return nil
		}
	}
	return fmt.Errorf("session %d not found", session.ID)
}

func (s *memSessions) all() []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatSession(nil), s.rows...)
}

func (s *memSessions) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

// memMessages is an in-memory MessageStore with a deterministic clock.
type memMessages struct {
	mu        sync.Mutex
	rows      []models.ChatMessage
	clock     time.Time
	appendErr error
}

func newMemMessages() *memMessages {
	return &memMessages{clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (s *memMessages) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.clock = s.clock.Add(time.Millisecond)
	msg.ID = uint(len(s.rows) + 1)
	msg.Timestamp = s.clock
	s.rows = append(s.rows, *msg)
	return nil
}

func (s *memMessages) ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.rows {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMessages) LatestMessage(ctx context.Context, conversationID string) (*models.ChatMessage, error) {
	msgs, _ := s.ListMessages(ctx, conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

func (s *memMessages) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memParticipants []models.Participant

func (p memParticipants) ListParticipants(ctx context.Context, role models.Role) ([]models.Participant, error) {
	var out []models.Participant
	for _, x := range p {
		if x.Role == role {
			out = append(out, x)
		}
	}
	return out, nil
}

// recordingDelivery remembers what was delivered to which channel.
type recordingDelivery struct {
	mu   sync.Mutex
	sent map[string][]models.ChatMessage
	err  error
}

func newRecordingDelivery() *recordingDelivery {
	return &recordingDelivery{sent: make(map[string][]models.ChatMessage)}
}

func (d *recordingDelivery) Deliver(ctx context.Context, conversationID string, msg models.ChatMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent[conversationID] = append(d.sent[conversationID], msg)
	return d.err
}

func (d *recordingDelivery) on(conversationID string) []models.ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.ChatMessage(nil), d.sent[conversationID]...)
}

func (d *recordingDelivery) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.sent {
		n += len(v)
	}
	return n
}
