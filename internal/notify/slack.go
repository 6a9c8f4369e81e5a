package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// SlackNotifier posts messages via the Slack Web API with bounded
// exponential-backoff retry.
type SlackNotifier struct {
	client      *resty.Client
	maxAttempts int
	baseBackoff time.Duration
	log         zerolog.Logger
}

// SlackOption configures a SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithBaseURL overrides the Slack API base URL. Tests point it at a local
// server.
func WithBaseURL(url string) SlackOption {
	return func(n *SlackNotifier) { n.client.SetBaseURL(url) }
}

// WithRetry overrides the retry policy. Backoff doubles from base between
// attempts.
func WithRetry(maxAttempts int, base time.Duration) SlackOption {
	return func(n *SlackNotifier) {
		n.maxAttempts = maxAttempts
		n.baseBackoff = base
	}
}

// NewSlack returns a notifier authenticated with the given bot token.
func NewSlack(botToken string, log zerolog.Logger, opts ...SlackOption) *SlackNotifier {
	client := resty.New().
		SetBaseURL("https://slack.com").
		SetAuthToken(botToken).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetTimeout(10 * time.Second)

	n := &SlackNotifier{
		client:      client,
		maxAttempts: 2,
		baseBackoff: time.Second,
		log:         log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Post sends the message, retrying transient failures. It returns the last
// error after all attempts are exhausted.
func (n *SlackNotifier) Post(ctx context.Context, channel, text string) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = n.baseBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.Reset()

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		lastErr = n.post(ctx, channel, text)
		if lastErr == nil {
			return nil
		}
		if attempt == n.maxAttempts {
			break
		}

		wait := exp.NextBackOff()
		n.log.Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", n.maxAttempts).
			Dur("retry_in", wait).
			Msg("slack post failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.log.Error().Err(lastErr).Str("channel", channel).Msg("slack post failed after all attempts")
	return lastErr
}

func (n *SlackNotifier) post(ctx context.Context, channel, text string) error {
	var out postMessageResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(&postMessageRequest{Channel: channel, Text: text}).
		SetResult(&out).
		Post("/api/chat.postMessage")
	if err != nil {
		return errors.Wrap(err, "chat.postMessage")
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("chat.postMessage: HTTP %d", resp.StatusCode())
	}
	if !out.OK {
		return errors.Errorf("chat.postMessage: %s", out.Error)
	}
	return nil
}
