package attachment

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCommitter(store BlobStore) *Committer {
	return NewCommitter(store, zerolog.Nop(),
		WithRetryInterval(time.Millisecond),
		WithCleanupRetries(3),
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }),
	)
}

func mustExist(t *testing.T, s *FSStore, ref Ref, want bool) {
	t.Helper()
	ok, err := s.Exists(ref)
	if err != nil {
		t.Fatalf("exists %s: %v", ref, err)
	}
	if ok != want {
		t.Fatalf("exists(%s) = %v, want %v", ref, ok, want)
	}
}

func TestStageProducesUniqueRefs(t *testing.T) {
	store := NewMemStore()
	c := newTestCommitter(store)
	ctx := context.Background()

	first, err := c.Stage(ctx, "Proof Of Payment.PDF", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	second, err := c.Stage(ctx, "Proof Of Payment.PDF", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if first == second {
		t.Fatalf("expected unique refs, got %s twice", first)
	}
	if !strings.HasPrefix(first.String(), "staging/2026/03/") || !strings.HasSuffix(first.String(), ".pdf") {
		t.Fatalf("unexpected ref layout: %s", first)
	}
	mustExist(t, store, first, true)
	mustExist(t, store, second, true)
}

func TestBindSuccessKeepsFile(t *testing.T) {
	store := NewMemStore()
	c := newTestCommitter(store)
	ctx := context.Background()

	ref, err := c.Stage(ctx, "contract.pdf", strings.NewReader("signed"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := c.Bind(ctx, ref, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("bind: %v", err)
	}
	c.Wait()
	mustExist(t, store, ref, true)
}

func TestBindFailureRemovesStagedFile(t *testing.T) {
	store := NewMemStore()
	c := newTestCommitter(store)
	ctx := context.Background()
	mutationErr := errors.New("row rejected")

	ref, err := c.Stage(ctx, "proof.png", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	err = c.Bind(ctx, ref, func(context.Context) error { return mutationErr })
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
	if !errors.Is(err, mutationErr) {
		t.Fatalf("expected the mutation error to be preserved, got %v", err)
	}
	c.Wait()
	mustExist(t, store, ref, false)
}

func TestBindRejectsEmptyRef(t *testing.T) {
	c := newTestCommitter(NewMemStore())
	called := false
	err := c.Bind(context.Background(), "", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrInvalidRef) || called {
		t.Fatalf("expected ErrInvalidRef without running commit, got %v (called=%v)", err, called)
	}
}

func TestReplaceDeletesOldFileOnlyAfterCommit(t *testing.T) {
	store := NewMemStore()
	c := newTestCommitter(store)
	ctx := context.Background()

	old, _ := c.Stage(ctx, "v1.pdf", strings.NewReader("v1"))
	next, _ := c.Stage(ctx, "v2.pdf", strings.NewReader("v2"))

	t.Run("failed commit keeps old and drops new", func(t *testing.T) {
		err := c.Replace(ctx, next, func(context.Context) (Ref, error) {
			mustExist(t, store, old, true)
			return "", errors.New("stale")
		})
		if !errors.Is(err, ErrCommitFailed) {
			t.Fatalf("expected ErrCommitFailed, got %v", err)
		}
		c.Wait()
		mustExist(t, store, old, true)
		mustExist(t, store, next, false)
	})

	t.Run("successful commit drops old", func(t *testing.T) {
		replacement, _ := c.Stage(ctx, "v3.pdf", strings.NewReader("v3"))
		err := c.Replace(ctx, replacement, func(context.Context) (Ref, error) {
			mustExist(t, store, old, true)
			return old, nil
		})
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		c.Wait()
		mustExist(t, store, old, false)
		mustExist(t, store, replacement, true)
	})
}

func TestDiscard(t *testing.T) {
	store := NewMemStore()
	c := newTestCommitter(store)
	ctx := context.Background()
	a, _ := c.Stage(ctx, "a.pdf", strings.NewReader("a"))
	b, _ := c.Stage(ctx, "b.pdf", strings.NewReader("b"))

	c.Discard(a, "", b)
	c.Wait()
	mustExist(t, store, a, false)
	mustExist(t, store, b, false)
}

type flakyStore struct {
	*FSStore
	failures atomic.Int32
	deletes  atomic.Int32
}

func (f *flakyStore) Delete(ctx context.Context, ref Ref) error {
	f.deletes.Add(1)
	if f.failures.Add(-1) >= 0 {
		return errors.New("transient")
	}
	return f.FSStore.Delete(ctx, ref)
}

func TestCleanupRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{FSStore: NewMemStore()}
	store.failures.Store(2)
	c := newTestCommitter(store)
	ctx := context.Background()

	ref, err := c.Stage(ctx, "proof.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	_ = c.Bind(ctx, ref, func(context.Context) error { return errors.New("fail") })
	c.Wait()

	if got := store.deletes.Load(); got != 3 {
		t.Fatalf("expected 3 delete attempts, got %d", got)
	}
	mustExist(t, store.FSStore, ref, false)
}

func TestOpenReadsStagedFile(t *testing.T) {
	c := newTestCommitter(NewMemStore())
	ctx := context.Background()
	ref, _ := c.Stage(ctx, "proof.txt", strings.NewReader("hello"))

	rc, err := c.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "hello" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := c.Open(ctx, "staging/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
