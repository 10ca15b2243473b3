package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/db"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

var (
	testClock = time.Date(2026, 4, 20, 10, 30, 0, 0, time.UTC)

	admin   = model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	finance = model.Principal{UserID: uuid.New(), Role: model.RoleFinance}
	staff   = model.Principal{UserID: uuid.New(), Role: model.RoleStaff}
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(_ context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, 0, len(r.events))
	for _, e := range r.events {
		titles = append(titles, e.Title)
	}
	return titles
}

type harness struct {
	store  *repository.Store
	blobs  *attachment.FSStore
	files  *attachment.Committer
	events *recorder

	quotations *QuotationService
	projects   *ProjectService
	milestones *MilestoneService
	payments   *PaymentService
	orders     *PurchaseOrderService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := db.OpenSQLite(dsn, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs := attachment.NewMemStore()
	files := attachment.NewCommitter(blobs, zerolog.Nop(), attachment.WithRetryInterval(time.Millisecond))
	t.Cleanup(func() {
		files.Wait()
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{
		store:  repository.NewStore(database),
		blobs:  blobs,
		files:  files,
		events: &recorder{},
	}
	deps := h.deps()
	h.quotations = NewQuotationService(deps)
	h.projects = NewProjectService(deps)
	h.milestones = NewMilestoneService(deps)
	h.payments = NewPaymentService(deps)
	h.orders = NewPurchaseOrderService(deps)
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Store:       h.store,
		Attachments: h.files,
		Notifier:    h.events,
		Log:         zerolog.Nop(),
		Clock:       func() time.Time { return testClock },
	}
}

func (h *harness) stage(t *testing.T, name string) attachment.Ref {
	t.Helper()
	ref, err := h.files.Stage(context.Background(), name, strings.NewReader("file body of "+name))
	if err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
	return ref
}

// stored waits for background cleanup and reports whether ref is still kept.
func (h *harness) stored(t *testing.T, ref attachment.Ref) bool {
	t.Helper()
	h.files.Wait()
	ok, err := h.blobs.Exists(ref)
	if err != nil {
		t.Fatalf("exists %s: %v", ref, err)
	}
	return ok
}

func (h *harness) project(t *testing.T, amounts ...model.Money) *model.Project {
	t.Helper()
	lines := make([]model.CostLine, 0, len(amounts))
	for i, amount := range amounts {
		lines = append(lines, model.CostLine{Description: fmt.Sprintf("Work package %d", i+1), Amount: amount})
	}
	quotation, err := h.quotations.Create(context.Background(), CreateQuotationInput{
		Actor:    staff,
		ClientID: uuid.New(),
		Title:    "Office fit-out",
		Lines:    lines,
	})
	if err != nil {
		t.Fatalf("create quotation: %v", err)
	}
	project, err := h.quotations.Accept(context.Background(), staff, quotation.ID)
	if err != nil {
		t.Fatalf("accept quotation: %v", err)
	}
	return project
}

func (h *harness) milestone(t *testing.T, projectID uuid.UUID, seq int, amount model.Money) *model.Milestone {
	t.Helper()
	m, err := h.milestones.Create(context.Background(), CreateMilestoneInput{
		Actor:     staff,
		ProjectID: projectID,
		Title:     fmt.Sprintf("Phase %d", seq),
		Amount:    amount,
		Sequence:  seq,
	})
	if err != nil {
		t.Fatalf("create milestone %d: %v", seq, err)
	}
	return m
}

func (h *harness) bill(t *testing.T, milestoneID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.milestones.SetStatus(ctx, staff, milestoneID, model.MilestoneStatusInProgress); err != nil {
		t.Fatalf("start milestone: %v", err)
	}
	if _, err := h.milestones.SetBillingStatus(ctx, staff, milestoneID, model.BillingStatusBilled); err != nil {
		t.Fatalf("bill milestone: %v", err)
	}
}

func (h *harness) submit(t *testing.T, target model.PaymentTarget, targetID uuid.UUID, amount model.Money) *model.Payment {
	t.Helper()
	payment, err := h.payments.Submit(context.Background(), SubmitPaymentInput{
		Actor:      staff,
		TargetType: target,
		TargetID:   targetID,
		Amount:     amount,
		ProofRef:   h.stage(t, "proof.pdf"),
	})
	if err != nil {
		t.Fatalf("submit payment: %v", err)
	}
	return payment
}

func (h *harness) pay(t *testing.T, target model.PaymentTarget, targetID uuid.UUID, amount model.Money) *model.Payment {
	t.Helper()
	payment := h.submit(t, target, targetID, amount)
	accepted, err := h.payments.Accept(context.Background(), finance, payment.ID)
	if err != nil {
		t.Fatalf("accept payment: %v", err)
	}
	return accepted
}

func (h *harness) reloadProject(t *testing.T, id uuid.UUID) *model.Project {
	t.Helper()
	project, err := h.projects.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	return project
}

func (h *harness) reloadMilestone(t *testing.T, id uuid.UUID) *model.Milestone {
	t.Helper()
	m, err := h.milestones.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	return m
}
