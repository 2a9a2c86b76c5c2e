package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("digest: schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler builds and posts digests.
type Scheduler struct {
	source    SummarySource
	notifiers []Notifier
	now       func() time.Time
}

// NewScheduler creates a Scheduler posting to notifiers.
func NewScheduler(source SummarySource, notifiers []Notifier) (*Scheduler, error) {
	if source == nil {
		return nil, fmt.Errorf("digest: summary source is required")
	}
	if len(notifiers) == 0 {
		return nil, fmt.Errorf("digest: at least one notifier is required")
	}
	return &Scheduler{source: source, notifiers: notifiers, now: time.Now}, nil
}

// RunOnce builds one report and posts it to every notifier. A report with
// nothing waiting is not posted. Notifier failures are joined; one failing
// platform does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	report, err := Build(ctx, s.source, s.now())
	if err != nil {
		return nil, err
	}
	if len(report.Waiting) == 0 {
		log.Printf("digest: nothing waiting across %d conversations, skipping", report.Total)
		return report, nil
	}

	text := Format(report)
	var errs []error
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Printf("digest: posted %d waiting conversations to %s", len(report.Waiting), n.Name())
	}
	return report, errors.Join(errs...)
}

// Run posts a digest on every tick of schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("digest: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("digest: schedule %q: %w", schedule, err)
	}

	c.Start()
	log.Printf("digest: scheduled %q", schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
