package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/switchboard/internal/metrics"
	"github.com/zulandar/switchboard/internal/models"
)

// Inbound is a message as submitted by a client. Any id or timestamp the
// client sent is discarded before it reaches here.
type Inbound struct {
	ConversationID string
	Content        string
}

// Mediator gates writes and reads of conversations and forwards accepted
// messages to delivery.
type Mediator struct {
	assignments  *AssignmentManager
	messages     MessageStore
	participants ParticipantStore
	delivery     Delivery
}

// MediatorOpts holds parameters for creating a Mediator.
type MediatorOpts struct {
	Assignments  *AssignmentManager
	Messages     MessageStore
	Participants ParticipantStore
	Delivery     Delivery
}

// NewMediator creates a Mediator.
func NewMediator(opts MediatorOpts) (*Mediator, error) {
	if opts.Assignments == nil {
		return nil, fmt.Errorf("chat: mediator: assignment manager is required")
	}
	if opts.Messages == nil {
		return nil, fmt.Errorf("chat: mediator: message store is required")
	}
	if opts.Participants == nil {
		return nil, fmt.Errorf("chat: mediator: participant store is required")
	}
	if opts.Delivery == nil {
		return nil, fmt.Errorf("chat: mediator: delivery is required")
	}
	return &Mediator{
		assignments:  opts.Assignments,
		messages:     opts.Messages,
		participants: opts.Participants,
		delivery:     opts.Delivery,
	}, nil
}

// RouteMessage authorizes sender to write into in.ConversationID, stores
// the message and delivers it to the conversation channel. A denied message
// is neither stored nor delivered. A delivery failure is logged and does not
// undo the stored message.
func (m *Mediator) RouteMessage(ctx context.Context, in Inbound, sender Sender) (*models.ChatMessage, error) {
	role := string(sender.Role)
	if err := m.authorizeWrite(ctx, in.ConversationID, sender); err != nil {
		label := "error"
		if errors.Is(err, ErrActionNotAllowed) {
			label = "denied"
		}
		metrics.Messages.WithLabelValues(role, label).Inc()
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("content is required")
	}

	msg := models.ChatMessage{
		ConversationID: in.ConversationID,
		SenderID:       sender.ID,
		SenderRole:     sender.Role,
		Content:        in.Content,
	}
	if err := m.messages.AppendMessage(ctx, &msg); err != nil {
		metrics.Messages.WithLabelValues(role, "error").Inc()
		return nil, fmt.Errorf("chat: append message to %s: %w", in.ConversationID, err)
	}

	if err := m.delivery.Deliver(ctx, in.ConversationID, msg); err != nil {
		metrics.Messages.WithLabelValues(role, "delivery_failed").Inc()
		log.Printf("chat: deliver message %d to %s: %v", msg.ID, in.ConversationID, err)
		return &msg, nil
	}
	metrics.Messages.WithLabelValues(role, "delivered").Inc()
	return &msg, nil
}

// authorizeWrite is the write rule table; the first matching role decides.
func (m *Mediator) authorizeWrite(ctx context.Context, conversationID string, sender Sender) error {
	switch sender.Role {
	case models.RoleAthlete:
		return notAllowed("athletes cannot write in support conversations")
	case models.RoleClubManager:
		if sender.ID == "" || sender.ID != conversationID {
			return notAllowed("club manager %s may only write in their own conversation", sender.ID)
		}
		return nil
	case models.RoleFederationManager:
		admin, ok, err := m.assignments.CurrentAdministrator(ctx, conversationID)
		if err != nil {
			return err
		}
		if !ok || admin != sender.ID || sender.ID == "" {
			return notAllowed("administrator %s is not currently assigned to conversation %s", sender.ID, conversationID)
		}
		return nil
	default:
		return notAllowed("unknown role %q", sender.Role)
	}
}

// authorizeRead mirrors authorizeWrite, except that administrators may read
// any conversation whether or not they hold it.
func authorizeRead(conversationID string, reader Sender) error {
	switch reader.Role {
	case models.RoleAthlete:
		return notAllowed("athletes cannot read support conversations")
	case models.RoleClubManager:
		if reader.ID == "" || reader.ID != conversationID {
			return notAllowed("club manager %s may only read their own conversation", reader.ID)
		}
		return nil
	case models.RoleFederationManager:
		return nil
	default:
		return notAllowed("unknown role %q", reader.Role)
	}
}

// AuthorizeRead reports whether reader may see conversationID, for
// subscription endpoints that stream a channel instead of reading History.
func (m *Mediator) AuthorizeRead(conversationID string, reader Sender) error {
	if conversationID == "" {
		return invalid("conversationID is required")
	}
	return authorizeRead(conversationID, reader)
}

// TakeCharge assigns conversationID to administratorID.
func (m *Mediator) TakeCharge(ctx context.Context, conversationID, administratorID string) (*models.ChatSession, error) {
	return m.assignments.Assign(ctx, conversationID, administratorID)
}

// ReleaseChat frees conversationID.
func (m *Mediator) ReleaseChat(ctx context.Context, conversationID string) error {
	return m.assignments.Release(ctx, conversationID)
}

// History returns the messages of conversationID in order, if reader may
// see them.
func (m *Mediator) History(ctx context.Context, conversationID string, reader Sender) ([]models.ChatMessage, error) {
	if conversationID == "" {
		return nil, invalid("conversationID is required")
	}
	if err := authorizeRead(conversationID, reader); err != nil {
		return nil, err
	}
	msgs, err := m.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: history %s: %w", conversationID, err)
	}
	return msgs, nil
}
