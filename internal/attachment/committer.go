package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/metrics"
)

const (
	defaultCleanupRetries = 5
	defaultRetryInterval  = 200 * time.Millisecond
	cleanupTimeout        = 30 * time.Second
	maxExtLen             = 10
)

// Committer ties stored files to the record mutations that reference them.
// A file is staged first; the mutation then runs through Bind or Replace.
// Files that end up unreferenced are removed in the background after the
// outcome is known, never before.
type Committer struct {
	store         BlobStore
	log           zerolog.Logger
	retries       uint
	retryInterval time.Duration
	now           func() time.Time
	wg            conc.WaitGroup
}

type Option func(*Committer)

func WithCleanupRetries(n uint) Option {
	return func(c *Committer) {
		if n > 0 {
			c.retries = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Committer) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Committer) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCommitter(store BlobStore, log zerolog.Logger, opts ...Option) *Committer {
	c := &Committer{
		store:         store,
		log:           log.With().Str("component", "attachments").Logger(),
		retries:       defaultCleanupRetries,
		retryInterval: defaultRetryInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage persists the bytes under a fresh unique ref. No record points at the
// ref yet.
func (c *Committer) Stage(ctx context.Context, name string, body io.Reader) (Ref, error) {
	now := c.now().UTC()
	key := fmt.Sprintf("staging/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), extension(name))
	ref, err := c.store.Save(ctx, key, body)
	if err != nil {
		return "", fmt.Errorf("stage %q: %w", name, err)
	}
	return ref, nil
}

// Bind runs the mutation that starts referencing ref. When it fails the
// staged file is scheduled for deletion and the mutation error is returned
// wrapped with ErrCommitFailed.
func (c *Committer) Bind(ctx context.Context, ref Ref, commit func(ctx context.Context) error) error {
	if ref.IsZero() {
		return fmt.Errorf("%w: %w", ErrCommitFailed, ErrInvalidRef)
	}
	if err := commit(ctx); err != nil {
		c.scheduleDelete(ref, "bind_failed")
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return nil
}

// Replace is Bind for mutations that supersede an existing file. commit
// returns the ref it replaced; that file is deleted only after commit
// succeeded.
func (c *Committer) Replace(ctx context.Context, ref Ref, commit func(ctx context.Context) (Ref, error)) error {
	if ref.IsZero() {
		return fmt.Errorf("%w: %w", ErrCommitFailed, ErrInvalidRef)
	}
	old, err := commit(ctx)
	if err != nil {
		c.scheduleDelete(ref, "bind_failed")
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	if !old.IsZero() && old != ref {
		c.scheduleDelete(old, "superseded")
	}
	return nil
}

// Discard schedules deletion of refs released by a committed mutation.
func (c *Committer) Discard(refs ...Ref) {
	for _, ref := range refs {
		if !ref.IsZero() {
			c.scheduleDelete(ref, "released")
		}
	}
}

func (c *Committer) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	return c.store.Read(ctx, ref)
}

// Wait blocks until every scheduled cleanup has finished.
func (c *Committer) Wait() {
	c.wg.Wait()
}

func (c *Committer) scheduleDelete(ref Ref, reason string) {
	c.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = c.retryInterval

		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			err := c.store.Delete(ctx, ref)
			if errors.Is(err, ErrInvalidRef) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}, backoff.WithBackOff(policy), backoff.WithMaxTries(c.retries))

		if err != nil {
			metrics.IncrementAttachmentCleanup(reason, "failed")
			c.log.Error().Err(err).Str("ref", ref.String()).Str("reason", reason).Msg("attachment cleanup failed")
			return
		}
		metrics.IncrementAttachmentCleanup(reason, "deleted")
		c.log.Debug().Str("ref", ref.String()).Str("reason", reason).Msg("attachment removed")
	})
}

func extension(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if len(ext) > maxExtLen || strings.ContainsAny(ext, " /") {
		return ""
	}
	return ext
}
