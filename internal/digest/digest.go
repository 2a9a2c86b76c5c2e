// Package digest posts a periodic report of support conversations still
// waiting for a staff reply to Slack and Discord channels.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/chat"
)

// SummarySource provides conversation summaries, ordered as the dashboard
// shows them.
type SummarySource interface {
	Summaries(ctx context.Context) ([]chat.ConversationSummary, error)
}

// Report is the set of conversations waiting for a reply at GeneratedAt.
type Report struct {
	GeneratedAt time.Time
	Waiting     []chat.ConversationSummary
	Total       int
}

// Build collects the waiting conversations from src.
func Build(ctx context.Context, src SummarySource, now time.Time) (*Report, error) {
	summaries, err := src.Summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("digest: build: %w", err)
	}
	r := &Report{GeneratedAt: now, Total: len(summaries)}
	for _, s := range summaries {
		if s.WaitingForReply {
			r.Waiting = append(r.Waiting, s)
		}
	}
	return r, nil
}

// Format renders r as plain text shared by every notifier.
func Format(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Support digest %s: %d of %d conversations waiting for a reply\n",
		r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), len(r.Waiting), r.Total)
	for _, s := range r.Waiting {
		owner := "unassigned"
		if s.Status == chat.StatusAssigned {
			owner = "held by " + s.AssignedAdministratorID
		}
		fmt.Fprintf(&b, "- %s (%s), %s, waiting %s\n",
			s.DisplayName, s.ConversationID, owner, waitingFor(s.LastMessageTime, r.GeneratedAt))
	}
	return b.String()
}

func waitingFor(last *time.Time, now time.Time) string {
	if last == nil {
		return "n/a"
	}
	d := now.Sub(*last)
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
