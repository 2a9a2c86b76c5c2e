// Package chat assigns support conversations to federation administrators
// and routes messages between the parties allowed to exchange them.
//
// A conversation is identified by its club manager's user ID. At most one
// administrator holds a conversation at a time, and an administrator holds
// at most one conversation at a time.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
)

// Failure kinds. Callers branch with errors.Is; returned errors wrap these
// with the IDs involved.
var (
	// ErrBusy means the administrator is mid-operation and the bounded wait
	// elapsed. Retryable.
	ErrBusy = errors.New("administrator busy")
	// ErrConflict means another party already holds the conversation or the
	// administrator already holds another one. Not retryable until a release.
	ErrConflict = errors.New("assignment conflict")
	// ErrActionNotAllowed is an authorization failure.
	ErrActionNotAllowed = errors.New("action not allowed")
	// ErrAborted means the caller's context ended while waiting.
	ErrAborted = errors.New("operation aborted")
	// ErrInvalid marks a malformed request, such as a missing ID.
	ErrInvalid = errors.New("invalid request")
)

// Sender is an already-authenticated caller.
type Sender struct {
	ID   string
	Role models.Role
}

// SessionStore persists chat sessions. Find methods return (nil, nil) when
// no active session exists. SaveSession inserts or updates and reports a
// lost race on the active-session constraint as ErrConflict.
type SessionStore interface {
	FindActiveByAdministrator(ctx context.Context, administratorID string) (*models.ChatSession, error)
	FindActiveByConversation(ctx context.Context, conversationID string) (*models.ChatSession, error)
	SaveSession(ctx context.Context, session *models.ChatSession) error
}

// MessageStore persists messages. AppendMessage assigns ID and Timestamp.
// ListMessages returns a conversation's messages in append order with
// non-decreasing timestamps. LatestMessage returns (nil, nil) for an empty
// conversation.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error)
	LatestMessage(ctx context.Context, conversationID string) (*models.ChatMessage, error)
}

// ParticipantStore lists known users by role.
type ParticipantStore interface {
	ListParticipants(ctx context.Context, role models.Role) ([]models.Participant, error)
}

// Delivery pushes a routed message to the channel of its conversation.
// Delivery is best-effort: the stored message is authoritative.
type Delivery interface {
	Deliver(ctx context.Context, conversationID string, msg models.ChatMessage) error
}

// DeliveryFunc adapts a function to the Delivery interface.
type DeliveryFunc func(ctx context.Context, conversationID string, msg models.ChatMessage) error

// Deliver calls f.
func (f DeliveryFunc) Deliver(ctx context.Context, conversationID string, msg models.ChatMessage) error {
	return f(ctx, conversationID, msg)
}

func notAllowed(format string, args ...any) error {
	return fmt.Errorf("chat: %w: %s", ErrActionNotAllowed, fmt.Sprintf(format, args...))
}

func invalid(msg string) error {
	return fmt.Errorf("chat: %w: %s", ErrInvalid, msg)
}
