// Package reddit fetches and validates top posts for subreddits from the
// Reddit JSON API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"reddit-newsletter/pkg/newsletter"
)

const (
	defaultBaseURL = "https://www.reddit.com"
	topPostLimit   = 3 // Digest emails only ever show the top three posts
	userAgent      = "reddit-newsletter/1.0 (daily digest mailer)"
)

// FetchError indicates the content source was unreachable or returned a
// malformed response for one topic. Callers decide whether to drop the topic
// or abort.
type FetchError struct {
	Topic string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch top posts for r/%s: %v", e.Topic, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError checks whether err is a per-topic fetch failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Client fetches top posts from Reddit.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string

	retryAttempts uint
	retryDelay    time.Duration
	retryMaxDelay time.Duration
	retryJitter   time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at an alternate API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetrySchedule overrides the backoff between failed fetch attempts.
func WithRetrySchedule(attempts uint, delay, maxDelay, jitter time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
		c.retryMaxDelay = maxDelay
		c.retryJitter = jitter
	}
}

// New creates a Reddit client.
func New(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		baseURL:       defaultBaseURL,
		retryAttempts: 3,
		retryDelay:    time.Second,
		retryMaxDelay: 30 * time.Second,
		retryJitter:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listing mirrors the slice of the Reddit listing response we consume.
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Ups       int    `json:"ups"`
				Title     string `json:"title"`
				Thumbnail string `json:"thumbnail"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchTop returns the validated top posts for one subreddit, capped at three.
// It never synthesizes an empty result on failure.
func (c *Client) FetchTop(ctx context.Context, topic string) (newsletter.TopicPosts, error) {
	endpoint := fmt.Sprintf("%s/r/%s/top.json?limit=%d", c.baseURL, url.PathEscape(topic), topPostLimit)

	var raw []newsletter.RawPost
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "application/json")

			startTime := time.Now()
			resp, err := c.httpClient.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("Reddit request failed, will retry",
					"topic", topic,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			c.logger.Info("Reddit request completed",
				"topic", topic,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				// A 4xx will not heal on retry (bad or banned subreddit).
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			var l listing
			if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
				return fmt.Errorf("decode listing: %w", err)
			}

			raw = raw[:0]
			for _, child := range l.Data.Children {
				raw = append(raw, newsletter.RawPost{
					Ups:       child.Data.Ups,
					Title:     child.Data.Title,
					Thumbnail: child.Data.Thumbnail,
				})
			}
			return nil
		},
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(c.retryMaxDelay),
		retry.MaxJitter(c.retryJitter),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying topic fetch after error", "topic", topic, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return newsletter.TopicPosts{}, &FetchError{Topic: topic, Err: err}
	}

	return Normalize(topic, raw), nil
}
