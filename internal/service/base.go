package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/metrics"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

type Notifier interface {
	Emit(ctx context.Context, event notify.Event)
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store       *repository.Store
	Attachments *attachment.Committer
	Notifier    Notifier
	Log         zerolog.Logger
	Clock       func() time.Time
}

type base struct {
	store    *repository.Store
	files    *attachment.Committer
	notifier Notifier
	log      zerolog.Logger
	clock    func() time.Time
}

type noopNotifier struct{}

func (noopNotifier) Emit(context.Context, notify.Event) {}

func newBase(deps Deps, component string) base {
	b := base{
		store:    deps.Store,
		files:    deps.Attachments,
		notifier: deps.Notifier,
		log:      deps.Log.With().Str("service", component).Logger(),
		clock:    deps.Clock,
	}
	if b.notifier == nil {
		b.notifier = noopNotifier{}
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

func (b base) now() time.Time {
	return b.clock().UTC()
}

func (b base) inTx(ctx context.Context, fn func(tx *repository.Store) error) error {
	return b.store.WithTransaction(ctx, fn)
}

// withAttachment runs commit directly when no file is involved and through
// the commit protocol otherwise, so a rejected mutation never leaves the
// staged file behind.
func (b base) withAttachment(ctx context.Context, ref attachment.Ref, commit func(ctx context.Context) error) error {
	if ref.IsZero() {
		return commit(ctx)
	}
	return b.files.Bind(ctx, ref, commit)
}

// committed records a transition that has already been persisted.
func (b base) committed(ctx context.Context, entity, to string, event notify.Event) {
	metrics.IncrementTransition(entity, to)
	b.log.Info().Str("entity", entity).Str("to", to).Str("title", event.Title).Msg("transition committed")
	b.notifier.Emit(ctx, event)
}
