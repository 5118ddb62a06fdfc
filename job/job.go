// Package job runs the daily digest batch for all subscribed users.
package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reddit-newsletter/digest"
	"reddit-newsletter/pkg/newsletter"
)

// Fetcher retrieves the top posts for one subreddit.
type Fetcher interface {
	FetchTop(ctx context.Context, topic string) (newsletter.TopicPosts, error)
}

// UserSource lists users currently subscribed to the newsletter.
type UserSource interface {
	ListSubscribed(ctx context.Context) ([]newsletter.User, error)
}

// Emailer delivers a rendered digest.
type Emailer interface {
	SendDigest(ctx context.Context, d newsletter.Digest) newsletter.Outcome
}

// DeliveryLog tracks which users were already served in a cycle, so a
// redelivered trigger does not send the same digest twice.
type DeliveryLog interface {
	WasDelivered(ctx context.Context, userID, day string) (bool, error)
	MarkDelivered(ctx context.Context, userID, day string) error
}

// Config tunes a Runner.
type Config struct {
	// MaxConcurrentUsers bounds the per-user worker pool, capping outbound
	// concurrency against both Reddit and the email provider.
	MaxConcurrentUsers int
	// FetchTimeout bounds a single topic fetch so a hung call cannot stall
	// the pool for the rest of the run.
	FetchTimeout time.Duration
	// SendEmpty delivers digests even when every topic returned no posts.
	SendEmpty bool
	// DedupDeliveries skips users already served in the current UTC day.
	DedupDeliveries bool
}

// Runner orchestrates one digest run per queue trigger.
type Runner struct {
	users      UserSource
	fetcher    Fetcher
	emailer    Emailer
	deliveries DeliveryLog
	logger     *slog.Logger
	cfg        Config
}

// New creates a digest job runner.
func New(users UserSource, fetcher Fetcher, emailer Emailer, deliveries DeliveryLog, logger *slog.Logger, cfg Config) *Runner {
	if cfg.MaxConcurrentUsers <= 0 {
		cfg.MaxConcurrentUsers = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Runner{
		users:      users,
		fetcher:    fetcher,
		emailer:    emailer,
		deliveries: deliveries,
		logger:     logger,
		cfg:        cfg,
	}
}

type runStats struct {
	delivered atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// Run processes one trigger: every subscribed user is attempted once. A
// user's failure is logged and never stops the others, so the run counts as
// done, and the trigger can be acknowledged, regardless of individual
// outcomes. Only cancellation makes Run return an error.
func (r *Runner) Run(ctx context.Context) error {
	users, err := r.users.ListSubscribed(ctx)
	if err != nil {
		// A broken user store means nothing to do this run; retrying the
		// whole trigger would not help.
		r.logger.Error("Listing subscribed users failed, treating run as empty", "error", err)
		return nil
	}

	if len(users) == 0 {
		r.logger.Info("No subscribed users, nothing to do")
		return nil
	}

	day := time.Now().UTC().Format("2006-01-02")
	r.logger.Info("Digest run starting", "users", len(users), "day", day)

	var stats runStats
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.MaxConcurrentUsers)
	for _, user := range users {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r.processUser(ctx, user, day, &stats)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Warn("Digest run cancelled", "error", err)
		return err
	}

	r.logger.Info("Digest run completed",
		"users", len(users),
		"delivered", stats.delivered.Load(),
		"skipped", stats.skipped.Load(),
		"failed", stats.failed.Load())

	return nil
}

func (r *Runner) processUser(ctx context.Context, user newsletter.User, day string, stats *runStats) {
	if r.cfg.DedupDeliveries && r.deliveries != nil {
		done, err := r.deliveries.WasDelivered(ctx, user.ID, day)
		if err != nil {
			r.logger.Warn("Delivery log lookup failed, proceeding without dedup", "email", user.Email, "error", err)
		} else if done {
			r.logger.Debug("Digest already delivered this cycle, skipping", "email", user.Email, "day", day)
			stats.skipped.Add(1)
			return
		}
	}

	d := digest.Aggregate(user, r.fetchAll(ctx, user))

	if d.Empty() && !r.cfg.SendEmpty {
		r.logger.Info("All topics empty, skipping digest", "email", user.Email, "topics", len(user.Topics))
		stats.skipped.Add(1)
		return
	}

	outcome := r.emailer.SendDigest(ctx, d)
	if !outcome.Sent {
		r.logger.Warn("Digest not delivered", "email", user.Email, "error", outcome.Err)
		stats.failed.Add(1)
		return
	}
	stats.delivered.Add(1)

	if r.cfg.DedupDeliveries && r.deliveries != nil {
		if err := r.deliveries.MarkDelivered(ctx, user.ID, day); err != nil {
			r.logger.Warn("Recording delivery failed, a redelivered trigger may resend", "email", user.Email, "error", err)
		}
	}
}

// fetchAll fans out one fetch per topic and collects the successes, in the
// user's configured topic order. A failed topic degrades the digest rather
// than aborting the user or cancelling its siblings.
func (r *Runner) fetchAll(ctx context.Context, user newsletter.User) []newsletter.TopicPosts {
	results := make([]*newsletter.TopicPosts, len(user.Topics))

	var wg sync.WaitGroup
	for i, topic := range user.Topics {
		wg.Add(1)
		go func() {
			defer wg.Done()

			fctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
			defer cancel()

			tp, err := r.fetcher.FetchTop(fctx, topic)
			if err != nil {
				r.logger.Warn("Topic fetch failed, dropping from digest",
					"email", user.Email,
					"topic", topic,
					"error", err)
				return
			}
			results[i] = &tp
		}()
	}
	wg.Wait()

	kept := make([]newsletter.TopicPosts, 0, len(results))
	for _, tp := range results {
		if tp != nil {
			kept = append(kept, *tp)
		}
	}
	return kept
}
