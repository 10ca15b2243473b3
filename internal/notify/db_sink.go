package notify

import (
	"context"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

// DBSink stores events as notification rows.
type DBSink struct {
	store *repository.Store
}

func NewDBSink(store *repository.Store) *DBSink {
	return &DBSink{store: store}
}

func (s *DBSink) Name() string { return "db" }

func (s *DBSink) Deliver(ctx context.Context, event Event) error {
	return s.store.Notifications.Create(ctx, &model.Notification{
		Origin:      event.Origin,
		ActorID:     event.Actor,
		Title:       event.Title,
		Body:        event.Body,
		QuotationID: event.QuotationID,
		ProjectID:   event.ProjectID,
		MilestoneID: event.MilestoneID,
		CreatedAt:   event.OccurredAt,
	})
}
