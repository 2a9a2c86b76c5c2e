package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/zulandar/switchboard/internal/models"
)

// Status is the assignment state of a conversation.
type Status string

const (
	StatusFree     Status = "FREE"
	StatusAssigned Status = "ASSIGNED"
)

// ConversationSummary is the dashboard view of one conversation. It is
// derived on demand and never stored.
type ConversationSummary struct {
	ConversationID          string     `json:"chat_user_id"`
	DisplayName             string     `json:"club_manager_name"`
	LastMessageTime         *time.Time `json:"last_message_time"`
	Status                  Status     `json:"status"`
	AssignedAdministratorID string     `json:"assigned_admin_id,omitempty"`
	WaitingForReply         bool       `json:"waiting_for_reply"`
}

// Summaries returns one summary per club manager, conversations waiting for
// a reply first, then most recently active first, silent conversations last.
func (m *Mediator) Summaries(ctx context.Context) ([]ConversationSummary, error) {
	managers, err := m.participants.ListParticipants(ctx, models.RoleClubManager)
	if err != nil {
		return nil, fmt.Errorf("chat: summaries: list club managers: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(managers))
	for _, p := range managers {
		admin, assigned, err := m.assignments.CurrentAdministrator(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("chat: summaries: %w", err)
		}
		latest, err := m.messages.LatestMessage(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("chat: summaries: latest message for %s: %w", p.ID, err)
		}

		s := ConversationSummary{
			ConversationID: p.ID,
			DisplayName:    p.DisplayName,
			Status:         StatusFree,
		}
		if assigned {
			s.Status = StatusAssigned
			s.AssignedAdministratorID = admin
		}
		if latest != nil {
			ts := latest.Timestamp
			s.LastMessageTime = &ts
			s.WaitingForReply = waitingForReply(latest, admin, assigned)
		}
		summaries = append(summaries, s)
	}

	sortSummaries(summaries)
	log.Printf("chat: summaries built for %d conversations", len(summaries))
	return summaries, nil
}

// waitingForReply reports whether the latest message still needs an answer
// from staff: on an assigned conversation, anything not written by the
// assignee; on a free one, a message from the club-manager side.
func waitingForReply(latest *models.ChatMessage, admin string, assigned bool) bool {
	if assigned {
		return latest.SenderID != admin
	}
	return latest.SenderRole == models.RoleClubManager
}

func sortSummaries(s []ConversationSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.WaitingForReply != b.WaitingForReply {
			return a.WaitingForReply
		}
		switch {
		case a.LastMessageTime == nil:
			return false
		case b.LastMessageTime == nil:
			return true
		}
		return a.LastMessageTime.After(*b.LastMessageTime)
	})
}
