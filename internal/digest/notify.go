package digest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/switchboard/internal/config"
)

// Notifier posts a rendered digest to one staff channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// maxRetries is the max number of retries for rate-limited Slack calls.
const maxRetries = 3

// Slack posts digests through the Slack Web API.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack creates a Slack notifier. client may be nil to use the real API
// with token.
func NewSlack(token, channel string, client slackClient) (*Slack, error) {
	if channel == "" {
		return nil, fmt.Errorf("digest: slack channel is required")
	}
	if client == nil {
		if token == "" {
			return nil, fmt.Errorf("digest: slack token is required")
		}
		client = slackapi.New(token)
	}
	return &Slack{client: client, channel: channel}, nil
}

// Name returns "slack".
func (s *Slack) Name() string { return "slack" }

// Notify posts text to the configured channel, retrying on rate limits.
func (s *Slack) Notify(ctx context.Context, text string) error {
	err := retryOnRateLimit(ctx, func() error {
		_, _, err := s.client.PostMessage(s.channel, slackapi.MsgOptionText(text, false))
		return err
	})
	if err != nil {
		return fmt.Errorf("digest: slack post to %s: %w", s.channel, err)
	}
	return nil
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors, honoring RetryAfter.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// discordSession abstracts the discordgo.Session methods we use.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// discordLimit is the maximum length of a Discord message.
const discordLimit = 2000

// Discord posts digests through the Discord REST API. No gateway connection
// is opened.
type Discord struct {
	sess    discordSession
	channel string
}

// NewDiscord creates a Discord notifier. sess may be nil to use a real
// session authenticated with token.
func NewDiscord(token, channel string, sess discordSession) (*Discord, error) {
	if channel == "" {
		return nil, fmt.Errorf("digest: discord channel is required")
	}
	if sess == nil {
		if token == "" {
			return nil, fmt.Errorf("digest: discord token is required")
		}
		s, err := discordgo.New("Bot " + token)
		if err != nil {
			return nil, fmt.Errorf("digest: discord session: %w", err)
		}
		sess = s
	}
	return &Discord{sess: sess, channel: channel}, nil
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Notify posts text to the configured channel, truncated to Discord's limit.
func (d *Discord) Notify(ctx context.Context, text string) error {
	if len(text) > discordLimit {
		text = text[:discordLimit-3] + "..."
	}
	if _, err := d.sess.ChannelMessageSend(d.channel, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("digest: discord post to %s: %w", d.channel, err)
	}
	return nil
}

// NotifiersFromConfig builds a notifier for every platform with a token.
func NotifiersFromConfig(cfg config.DigestConfig) ([]Notifier, error) {
	var out []Notifier
	if cfg.SlackToken != "" {
		n, err := NewSlack(cfg.SlackToken, cfg.SlackChannel, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if cfg.DiscordToken != "" {
		n, err := NewDiscord(cfg.DiscordToken, cfg.DiscordChannel, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
