package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/models"
)

// DefaultAssignTimeout bounds the wait for an administrator lock.
const DefaultAssignTimeout = 2 * time.Second

// AssignmentManager grants and revokes administrator ownership of
// conversations.
//
// LOCK ORDER: administrator lock before conversation lock, on every path.
// Only the administrator lock is acquired with a bounded wait; the
// conversation lock is innermost and held briefly.
type AssignmentManager struct {
	sessions       SessionStore
	timeout        time.Duration
	now            func() time.Time
	administrators *keyedLocks
	conversations  *keyedLocks
}

// NewAssignmentManager creates an AssignmentManager backed by sessions.
// A non-positive timeout selects DefaultAssignTimeout.
func NewAssignmentManager(sessions SessionStore, timeout time.Duration) *AssignmentManager {
	if timeout <= 0 {
		timeout = DefaultAssignTimeout
	}
	return &AssignmentManager{
		sessions:       sessions,
		timeout:        timeout,
		now:            time.Now,
		administrators: newKeyedLocks(),
		conversations:  newKeyedLocks(),
	}
}

// Assign makes administratorID the owner of conversationID. It fails with
// ErrBusy when the administrator lock cannot be taken within the timeout,
// ErrAborted when ctx ends during that wait, and ErrConflict when either
// side already has an active session.
func (m *AssignmentManager) Assign(ctx context.Context, conversationID, administratorID string) (*models.ChatSession, error) {
	if conversationID == "" {
		return nil, invalid("conversationID is required")
	}
	if administratorID == "" {
		return nil, invalid("administratorID is required")
	}

	session, err := m.assign(ctx, conversationID, administratorID)
	metrics.Assignments.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	log.Printf("chat: session %d started: admin %s -> conversation %s", session.ID, administratorID, conversationID)
	return session, nil
}

func (m *AssignmentManager) assign(ctx context.Context, conversationID, administratorID string) (*models.ChatSession, error) {
	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	releaseAdmin, err := m.administrators.acquire(waitCtx, administratorID)
	metrics.AssignWait.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chat: assign %s to %s: %w", conversationID, administratorID, ErrAborted)
		}
		return nil, fmt.Errorf("chat: assign %s to %s: %w: administrator is mid-operation", conversationID, administratorID, ErrBusy)
	}
	defer releaseAdmin()

	// Past the bounded wait the operation runs to completion.
	work := context.WithoutCancel(ctx)

	held, err := m.sessions.FindActiveByAdministrator(work, administratorID)
	if err != nil {
		return nil, fmt.Errorf("chat: find session for admin %s: %w", administratorID, err)
	}
	if held != nil {
		return nil, fmt.Errorf("chat: %w: administrator %s already handling conversation %s",
			ErrConflict, administratorID, held.ConversationID)
	}

	releaseConv, err := m.conversations.acquire(work, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: lock conversation %s: %w", conversationID, err)
	}
	defer releaseConv()

	taken, err := m.sessions.FindActiveByConversation(work, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: find session for conversation %s: %w", conversationID, err)
	}
	if taken != nil {
		return nil, fmt.Errorf("chat: %w: conversation %s already taken by %s",
			ErrConflict, conversationID, taken.AdministratorID)
	}

	session := &models.ChatSession{
		ConversationID:  conversationID,
		AdministratorID: administratorID,
		CreatedAt:       m.now(),
	}
	session.Activate()
	if err := m.sessions.SaveSession(work, session); err != nil {
		return nil, fmt.Errorf("chat: save session %s/%s: %w", conversationID, administratorID, err)
	}
	return session, nil
}

// Release ends the active session of conversationID, if any. Releasing a
// free conversation is a no-op.
func (m *AssignmentManager) Release(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return invalid("conversationID is required")
	}

	releaseConv, err := m.conversations.acquire(context.WithoutCancel(ctx), conversationID)
	if err != nil {
		return fmt.Errorf("chat: lock conversation %s: %w", conversationID, err)
	}
	defer releaseConv()

	session, err := m.sessions.FindActiveByConversation(ctx, conversationID)
	if err != nil {
		metrics.Releases.WithLabelValues("error").Inc()
		return fmt.Errorf("chat: find session for conversation %s: %w", conversationID, err)
	}
	if session == nil {
		metrics.Releases.WithLabelValues("noop").Inc()
		return nil
	}

	session.Deactivate(m.now())
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		metrics.Releases.WithLabelValues("error").Inc()
		return fmt.Errorf("chat: release session %d: %w", session.ID, err)
	}
	metrics.Releases.WithLabelValues("closed").Inc()
	log.Printf("chat: session %d closed for conversation %s", session.ID, conversationID)
	return nil
}

// CurrentAdministrator returns the administrator holding conversationID.
// The read is not synchronized with Assign or Release.
func (m *AssignmentManager) CurrentAdministrator(ctx context.Context, conversationID string) (string, bool, error) {
	session, err := m.sessions.FindActiveByConversation(ctx, conversationID)
	if err != nil {
		return "", false, fmt.Errorf("chat: find session for conversation %s: %w", conversationID, err)
	}
	if session == nil {
		return "", false, nil
	}
	return session.AdministratorID, true, nil
}

// outcome maps an assignment result to its metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrAborted):
		return "aborted"
	default:
		return "error"
	}
}
