package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/metrics"
)

const (
	OriginQuotation     = "quotation"
	OriginProject       = "project"
	OriginMilestone     = "milestone"
	OriginPayment       = "payment"
	OriginPurchaseOrder = "purchase_order"

	defaultDeliveryTimeout = 10 * time.Second
)

// Event describes one committed state transition.
type Event struct {
	Origin      string     `json:"origin"`
	Actor       uuid.UUID  `json:"actor"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	QuotationID *uuid.UUID `json:"quotation_id,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	MilestoneID *uuid.UUID `json:"milestone_id,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

//go:generate mockgen -source=emitter.go -destination=mocks/mock_sink.go -package=mocks

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Emitter fans events out to every sink in the background. Delivery problems
// are logged and counted; they never reach the caller.
type Emitter struct {
	sinks   []Sink
	log     zerolog.Logger
	timeout time.Duration
	wg      conc.WaitGroup
}

func NewEmitter(log zerolog.Logger, sinks ...Sink) *Emitter {
	return &Emitter{
		sinks:   sinks,
		log:     log.With().Str("component", "notify").Logger(),
		timeout: defaultDeliveryTimeout,
	}
}

// Emit must only be called after the transaction that produced the event
// has committed. The caller's cancellation does not stop delivery.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	detached := context.WithoutCancel(ctx)
	for _, sink := range e.sinks {
		e.wg.Go(func() {
			e.deliver(detached, sink, event)
		})
	}
}

func (e *Emitter) deliver(ctx context.Context, sink Sink, event Event) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() {
		err = sink.Deliver(ctx, event)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}
	if err != nil {
		metrics.IncrementNotificationFailure(sink.Name())
		e.log.Warn().Err(err).
			Str("sink", sink.Name()).
			Str("origin", event.Origin).
			Str("title", event.Title).
			Msg("notification delivery failed")
	}
}

// Wait blocks until in-flight deliveries finish.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
