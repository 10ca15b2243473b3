package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/db"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/excel"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/http/middleware"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/pdf"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

var clientOrg = uuid.New()

type fakeParser map[string]model.Principal

func (f fakeParser) Parse(token string) (model.Principal, error) {
	principal, ok := f[token]
	if !ok {
		return model.Principal{}, errors.New("unknown token")
	}
	return principal, nil
}

type testServer struct {
	router *gin.Engine
	files  *attachment.Committer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	files := attachment.NewCommitter(attachment.NewMemStore(), zerolog.Nop(), attachment.WithRetryInterval(time.Millisecond))
	t.Cleanup(func() {
		files.Wait()
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	deps := service.Deps{Store: repository.NewStore(database), Attachments: files, Log: zerolog.Nop()}
	services := Services{
		Quotations:     service.NewQuotationService(deps),
		Projects:       service.NewProjectService(deps),
		Milestones:     service.NewMilestoneService(deps),
		Payments:       service.NewPaymentService(deps),
		PurchaseOrders: service.NewPurchaseOrderService(deps),
		Documents:      service.NewDocumentService(deps, pdf.NewGenerator(), excel.NewGenerator()),
	}
	parser := fakeParser{
		"admin":   {UserID: uuid.New(), Role: model.RoleAdmin},
		"finance": {UserID: uuid.New(), Role: model.RoleFinance},
		"staff":   {UserID: uuid.New(), Role: model.RoleStaff},
		"client":  {UserID: uuid.New(), OrgID: clientOrg, Role: model.RoleClient},
	}

	handler := NewHandler(services, files, nil, 1, zerolog.Nop())
	router := NewRouter(handler, middleware.Auth(parser), RouterOptions{Environment: "development"}, zerolog.Nop())
	return &testServer{router: router, files: files}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) call(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return s.do(t, method, path, token, reader, "application/json")
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return resp.ID
}

func multipartPayment(t *testing.T, fields map[string]string, proof string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if proof != "" {
		part, err := mw.CreateFormFile("proof", "receipt.pdf")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = part.Write([]byte(proof))
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestRouting(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "health is public", method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{name: "ready without check", method: http.MethodGet, path: "/readyz", want: http.StatusOK},
		{name: "missing token", method: http.MethodGet, path: "/projects", want: http.StatusUnauthorized},
		{name: "unknown token", method: http.MethodGet, path: "/projects", token: "nobody", want: http.StatusUnauthorized},
		{name: "bad uuid", method: http.MethodGet, path: "/projects/not-a-uuid", token: "staff", want: http.StatusBadRequest},
		{name: "unknown project", method: http.MethodGet, path: "/projects/" + uuid.NewString(), token: "staff", want: http.StatusNotFound},
		{name: "client on staff route", method: http.MethodGet, path: "/purchase-orders", token: "client", want: http.StatusForbidden},
		{name: "bad status filter", method: http.MethodGet, path: "/projects?status=frozen", token: "staff", want: http.StatusBadRequest},
		{name: "metrics disabled", method: http.MethodGet, path: "/metrics", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.call(t, tt.method, tt.path, tt.token, "")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestBillingFlow(t *testing.T) {
	s := newTestServer(t)
	quotationBody := fmt.Sprintf(`{"client_id":%q,"title":"Lobby refresh","lines":[{"description":"Paint","amount":"1500.00"}]}`, clientOrg)

	if w := s.call(t, http.MethodPost, "/quotations", "client", quotationBody); w.Code != http.StatusForbidden {
		t.Fatalf("client create: expected 403, got %d", w.Code)
	}
	if w := s.call(t, http.MethodPost, "/quotations", "staff", `{"client_id":"x","lines":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid create: expected 400, got %d", w.Code)
	}

	w := s.call(t, http.MethodPost, "/quotations", "staff", quotationBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create quotation: %d %s", w.Code, w.Body.String())
	}
	quotationID := decodeID(t, w)

	w = s.call(t, http.MethodPost, "/quotations/"+quotationID+"/accept", "client", "")
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}
	projectID := decodeID(t, w)

	if w := s.call(t, http.MethodPost, "/quotations/"+quotationID+"/accept", "client", ""); w.Code != http.StatusConflict {
		t.Fatalf("second accept: expected 409, got %d", w.Code)
	}

	w = s.call(t, http.MethodGet, "/quotations/"+quotationID+"/pdf", "client", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != contentTypePDF {
		t.Fatalf("pdf: %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	w = s.call(t, http.MethodPost, "/projects/"+projectID+"/milestones", "staff", `{"title":"Phase 1","amount":"1500.00","sequence":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create milestone: %d %s", w.Code, w.Body.String())
	}
	milestoneID := decodeID(t, w)

	if w := s.call(t, http.MethodPost, "/projects/"+projectID+"/milestones", "staff", `{"title":"Extra","amount":"1.00","sequence":1}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate sequence: expected 409, got %d", w.Code)
	}
	if w := s.call(t, http.MethodPatch, "/milestones/"+milestoneID+"/status", "staff", `{"status":"paused"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", w.Code)
	}
	if w := s.call(t, http.MethodPatch, "/milestones/"+milestoneID+"/status", "staff", `{"status":"in_progress"}`); w.Code != http.StatusOK {
		t.Fatalf("start milestone: %d %s", w.Code, w.Body.String())
	}
	if w := s.call(t, http.MethodPatch, "/milestones/"+milestoneID+"/billing", "staff", `{"status":"billed"}`); w.Code != http.StatusOK {
		t.Fatalf("bill milestone: %d %s", w.Code, w.Body.String())
	}

	body, contentType := multipartPayment(t, map[string]string{
		"target_type": "milestone",
		"target_id":   milestoneID,
		"amount":      "1500.00",
	}, "scanned receipt")
	w = s.do(t, http.MethodPost, "/payments", "client", body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit payment: %d %s", w.Code, w.Body.String())
	}
	paymentID := decodeID(t, w)

	if w := s.call(t, http.MethodPost, "/payments/"+paymentID+"/accept", "client", ""); w.Code != http.StatusForbidden {
		t.Fatalf("client accept: expected 403, got %d", w.Code)
	}
	if w := s.call(t, http.MethodPost, "/payments/"+paymentID+"/accept", "staff", ""); w.Code != http.StatusForbidden {
		t.Fatalf("staff accept: expected 403, got %d", w.Code)
	}
	if w := s.call(t, http.MethodPost, "/payments/"+paymentID+"/accept", "finance", ""); w.Code != http.StatusOK {
		t.Fatalf("finance accept: %d %s", w.Code, w.Body.String())
	}
	if w := s.call(t, http.MethodPost, "/payments/"+paymentID+"/reject", "finance", `{"reason":"late"}`); w.Code != http.StatusConflict {
		t.Fatalf("reject after accept: expected 409, got %d", w.Code)
	}

	w = s.call(t, http.MethodGet, "/projects/"+projectID, "client", "")
	var project struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if project.PaymentStatus != string(model.ProjectPaymentPaid) {
		t.Fatalf("payment status = %q", project.PaymentStatus)
	}

	w = s.call(t, http.MethodGet, "/payments/"+paymentID+"/proof", "client", "")
	if w.Code != http.StatusOK || w.Body.String() != "scanned receipt" {
		t.Fatalf("proof download: %d %q", w.Code, w.Body.String())
	}

	w = s.call(t, http.MethodGet, "/projects/"+projectID+"/statement", "client", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != contentTypeXLSX {
		t.Fatalf("statement: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "statement-lobby-refresh-") {
		t.Fatalf("disposition = %q", w.Header().Get("Content-Disposition"))
	}

	if w := s.call(t, http.MethodDelete, "/projects/"+projectID, "staff", ""); w.Code != http.StatusForbidden {
		t.Fatalf("staff delete: expected 403, got %d", w.Code)
	}
}

func TestClientScope(t *testing.T) {
	s := newTestServer(t)

	foreignBody := fmt.Sprintf(`{"client_id":%q,"title":"Other tenant","lines":[{"description":"Roof","amount":"800.00"}]}`, uuid.New())
	w := s.call(t, http.MethodPost, "/quotations", "staff", foreignBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create quotation: %d %s", w.Code, w.Body.String())
	}
	quotationID := decodeID(t, w)
	w = s.call(t, http.MethodPost, "/quotations/"+quotationID+"/accept", "staff", "")
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}
	projectID := decodeID(t, w)

	w = s.call(t, http.MethodPost, "/projects/"+projectID+"/milestones", "staff", `{"title":"Roof","amount":"800.00","sequence":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create milestone: %d %s", w.Code, w.Body.String())
	}
	milestoneID := decodeID(t, w)
	for _, patch := range []struct{ path, body string }{
		{"/milestones/" + milestoneID + "/status", `{"status":"in_progress"}`},
		{"/milestones/" + milestoneID + "/billing", `{"status":"billed"}`},
	} {
		if w := s.call(t, http.MethodPatch, patch.path, "staff", patch.body); w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", patch.path, w.Code, w.Body.String())
		}
	}

	body, contentType := multipartPayment(t, map[string]string{"target_type": "milestone", "target_id": milestoneID, "amount": "100.00"}, "their receipt")
	w = s.do(t, http.MethodPost, "/payments", "staff", body, contentType)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit payment: %d %s", w.Code, w.Body.String())
	}
	paymentID := decodeID(t, w)

	w = s.call(t, http.MethodPost, "/purchase-orders", "staff", fmt.Sprintf(`{"supplier_id":%q,"lines":[{"product_name":"Cable","quantity":2,"unit_price":"50.00"}]}`, uuid.New()))
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	orderID := decodeID(t, w)

	t.Run("foreign records", func(t *testing.T) {
		for _, path := range []string{
			"/quotations/" + quotationID,
			"/quotations/" + quotationID + "/pdf",
			"/projects/" + projectID,
			"/projects/" + projectID + "/milestones",
			"/projects/" + projectID + "/statement",
			"/milestones/" + milestoneID,
			"/payments/" + paymentID,
			"/payments/" + paymentID + "/proof",
		} {
			if w := s.call(t, http.MethodGet, path, "client", ""); w.Code != http.StatusForbidden {
				t.Errorf("GET %s: expected 403, got %d", path, w.Code)
			}
			if w := s.call(t, http.MethodGet, path, "staff", ""); w.Code != http.StatusOK {
				t.Errorf("staff GET %s: %d", path, w.Code)
			}
		}

		body, contentType := multipartPayment(t, nil, "swapped receipt")
		if w := s.do(t, http.MethodPut, "/payments/"+paymentID+"/proof", "client", body, contentType); w.Code != http.StatusForbidden {
			t.Fatalf("replace foreign proof: expected 403, got %d", w.Code)
		}
		w := s.call(t, http.MethodGet, "/payments/"+paymentID+"/proof", "staff", "")
		if w.Body.String() != "their receipt" {
			t.Fatalf("proof changed to %q", w.Body.String())
		}
	})

	t.Run("payments", func(t *testing.T) {
		for target, id := range map[string]string{"purchase_order": orderID, "milestone": milestoneID} {
			body, contentType := multipartPayment(t, map[string]string{"target_type": target, "target_id": id, "amount": "10.00"}, "receipt")
			if w := s.do(t, http.MethodPost, "/payments", "client", body, contentType); w.Code != http.StatusForbidden {
				t.Errorf("client %s payment: expected 403, got %d: %s", target, w.Code, w.Body.String())
			}
		}

		for _, path := range []string{"/payments", "/payments?target_type=purchase_order", "/payments?target_id=" + milestoneID} {
			w := s.call(t, http.MethodGet, path, "client", "")
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s: %d", path, w.Code)
			}
			var payments []struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &payments); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
			if len(payments) != 0 {
				t.Errorf("GET %s: client sees %d payments", path, len(payments))
			}
		}
	})
}

func TestSubmitPaymentValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		fields map[string]string
		proof  string
		want   int
	}{
		{name: "missing proof", fields: map[string]string{"target_type": "milestone", "target_id": uuid.NewString(), "amount": "10"}, want: http.StatusBadRequest},
		{name: "bad target type", fields: map[string]string{"target_type": "invoice", "target_id": uuid.NewString(), "amount": "10"}, proof: "x", want: http.StatusBadRequest},
		{name: "bad target id", fields: map[string]string{"target_type": "milestone", "target_id": "nope", "amount": "10"}, proof: "x", want: http.StatusBadRequest},
		{name: "bad amount", fields: map[string]string{"target_type": "milestone", "target_id": uuid.NewString(), "amount": "1.001"}, proof: "x", want: http.StatusBadRequest},
		{name: "unknown target", fields: map[string]string{"target_type": "milestone", "target_id": uuid.NewString(), "amount": "10"}, proof: "x", want: http.StatusBadRequest},
		{name: "proof too large", fields: map[string]string{"target_type": "milestone", "target_id": uuid.NewString(), "amount": "10"}, proof: strings.Repeat("x", 2<<20), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartPayment(t, tt.fields, tt.proof)
			w := s.do(t, http.MethodPost, "/payments", "staff", body, contentType)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{log: zerolog.Nop()}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: fmt.Errorf("%w: project", service.ErrNotFound), want: http.StatusNotFound},
		{name: "permission", err: service.ErrPermissionDenied, want: http.StatusForbidden},
		{name: "invalid input", err: service.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "invalid amount", err: model.ErrInvalidAmount, want: http.StatusBadRequest},
		{name: "invalid status", err: service.ErrInvalidStatus, want: http.StatusBadRequest},
		{name: "transition", err: service.ErrInvalidTransition, want: http.StatusConflict},
		{name: "duplicate sequence", err: service.ErrDuplicateSequence, want: http.StatusConflict},
		{name: "over budget", err: service.ErrOverBudget, want: http.StatusConflict},
		{name: "incomplete billing", err: service.ErrIncompleteBilling, want: http.StatusConflict},
		{name: "negative balance", err: service.ErrNegativeBalance, want: http.StatusConflict},
		{name: "conflict", err: service.ErrConcurrencyConflict, want: http.StatusConflict},
		{name: "refused with cleanup", err: fmt.Errorf("%w: %w", service.ErrAttachmentCommitFailed, service.ErrInvalidInput), want: http.StatusBadRequest},
		{name: "storage failure", err: service.ErrAttachmentCommitFailed, want: http.StatusBadGateway},
		{name: "unexpected", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			h.handleError(c, tt.err)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
