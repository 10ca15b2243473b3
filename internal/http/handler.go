package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/http/middleware"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/idempotency"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"

	idempotencyHeader = "Idempotency-Key"
)

type Services struct {
	Quotations     *service.QuotationService
	Projects       *service.ProjectService
	Milestones     *service.MilestoneService
	Payments       *service.PaymentService
	PurchaseOrders *service.PurchaseOrderService
	Documents      *service.DocumentService
}

type Handler struct {
	svc       Services
	files     *attachment.Committer
	guard     *idempotency.Guard
	maxUpload int64
	log       zerolog.Logger
}

func NewHandler(svc Services, files *attachment.Committer, guard *idempotency.Guard, maxUploadMB int64, log zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		files:     files,
		guard:     guard,
		maxUpload: maxUploadMB << 20,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	// Clients may read, decide their quotations and submit payments.
	protected.GET("/quotations", h.listQuotations)
	protected.GET("/quotations/:id", h.getQuotation)
	protected.GET("/quotations/:id/pdf", h.exportQuotationPDF)
	protected.POST("/quotations/:id/accept", h.acceptQuotation)
	protected.POST("/quotations/:id/decline", h.declineQuotation)
	protected.GET("/projects", h.listProjects)
	protected.GET("/projects/:id", h.getProject)
	protected.GET("/projects/:id/milestones", h.listMilestones)
	protected.GET("/projects/:id/statement", h.exportStatement)
	protected.GET("/milestones/:id", h.getMilestone)
	protected.GET("/payments", h.listPayments)
	protected.GET("/payments/:id", h.getPayment)
	protected.GET("/payments/:id/proof", h.downloadProof)
	protected.POST("/payments", h.submitPayment)
	protected.PUT("/payments/:id/proof", h.replaceProof)

	staff := protected.Group("/")
	staff.Use(requireStaff)

	staff.POST("/quotations", h.createQuotation)
	staff.PUT("/quotations/:id/lines", h.updateQuotationLines)
	staff.PUT("/quotations/:id/document", h.replaceQuotationDocument)

	staff.POST("/projects/:id/activate", h.activateProject)
	staff.POST("/projects/:id/complete", h.completeProject)
	staff.POST("/projects/:id/cancel", h.cancelProject)
	staff.POST("/projects/:id/recompute", h.recomputeProject)
	staff.PUT("/projects/:id/contract", h.uploadContract)
	staff.DELETE("/projects/:id", h.deleteProject)
	staff.POST("/projects/:id/milestones", h.createMilestone)

	staff.PATCH("/milestones/:id/status", h.setMilestoneStatus)
	staff.PATCH("/milestones/:id/billing", h.setMilestoneBilling)
	staff.PATCH("/milestones/:id/amount", h.updateMilestoneAmount)
	staff.DELETE("/milestones/:id", h.deleteMilestone)

	staff.POST("/payments/:id/accept", h.acceptPayment)
	staff.POST("/payments/:id/reject", h.rejectPayment)

	staff.GET("/purchase-orders", h.listPurchaseOrders)
	staff.POST("/purchase-orders", h.createPurchaseOrder)
	staff.GET("/purchase-orders/:id", h.getPurchaseOrder)
	staff.POST("/purchase-orders/:id/close", h.closePurchaseOrder)
	staff.POST("/purchase-orders/:id/recompute", h.recomputePurchaseOrder)
	staff.PUT("/purchase-orders/:id/document", h.replacePurchaseOrderDocument)
	staff.DELETE("/purchase-orders/:id", h.deletePurchaseOrder)
}

func requireStaff(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if principal.IsClient() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": service.ErrPermissionDenied.Error()})
		return
	}
	c.Next()
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, model.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDuplicateSequence),
		errors.Is(err, service.ErrOverBudget),
		errors.Is(err, service.ErrIncompleteBilling),
		errors.Is(err, service.ErrNegativeBalance),
		errors.Is(err, service.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAttachmentCommitFailed):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("attachment commit failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "attachment could not be committed"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(param)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a uuid", service.ErrInvalidInput, raw)
	}
	return id, nil
}

// stageUpload stores the multipart file under field and returns its staged
// ref. It must run before any other form access so the size limit applies.
func (h *Handler) stageUpload(c *gin.Context, field string) (attachment.Ref, error) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", fmt.Errorf("%w: %s exceeds %d bytes", service.ErrInvalidInput, field, tooLarge.Limit)
		}
		return "", fmt.Errorf("%w: %s file is required", service.ErrInvalidInput, field)
	}
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	return h.files.Stage(c.Request.Context(), header.Filename, file)
}

func sendDocument(c *gin.Context, contentType string, result *service.DocumentResult) {
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentType, result.Content)
}
