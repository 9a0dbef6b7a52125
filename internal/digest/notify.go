package digest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited posts.
const maxRetries = 3

// Notifier delivers a rendered digest to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// webhookPoster matches slack.PostWebhookContext, enabling test mocks.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	url  string
	post webhookPoster
}

// NewSlackNotifier creates a notifier for the webhook URL.
func NewSlackNotifier(webhookURL string) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("digest: slack webhook url is required")
	}
	return &SlackNotifier{url: webhookURL, post: slackapi.PostWebhookContext}, nil
}

// Name implements Notifier.
func (n *SlackNotifier) Name() string { return "slack" }

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	msg := &slackapi.WebhookMessage{Text: text}
	err := retrySlack(ctx, func() error { return n.post(ctx, n.url, msg) })
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

// retrySlack calls fn and retries with backoff on Slack rate limit errors,
// honouring the RetryAfter Slack sends.
func retrySlack(ctx context.Context, fn func() error) error {
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

// messageSender abstracts the discordgo.Session method we use.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// discordLimit is Discord's maximum message length.
const discordLimit = 2000

// DiscordNotifier posts to a Discord channel through the REST API.
type DiscordNotifier struct {
	sess      messageSender
	channelID string
}

// NewDiscordNotifier creates a notifier for a bot token and channel.
func NewDiscordNotifier(botToken, channelID string) (*DiscordNotifier, error) {
	if botToken == "" || channelID == "" {
		return nil, fmt.Errorf("digest: discord bot token and channel id are required")
	}
	dg, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &DiscordNotifier{sess: dg, channelID: channelID}, nil
}

// Name implements Notifier.
func (n *DiscordNotifier) Name() string { return "discord" }

// Notify implements Notifier. Text longer than a Discord message is split on
// line boundaries.
func (n *DiscordNotifier) Notify(ctx context.Context, text string) error {
	for _, chunk := range splitMessage(text, discordLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.sess.ChannelMessageSend(n.channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord: send message: %w", err)
		}
	}
	return nil
}

// splitMessage breaks text into chunks of at most limit characters,
// preferring to cut after a newline. Cuts always fall on rune boundaries.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		end := 0
		for n := 0; n < limit; n++ {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
		}
		cut := end
		if i := strings.LastIndexByte(text[:end], '\n'); i > 0 {
			cut = i + 1
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
