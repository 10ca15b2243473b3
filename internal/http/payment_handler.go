package http

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

const paymentScope = "payments"

type rejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// submitPayment takes a multipart form with the proof under "proof" and the
// target_type, target_id and amount fields. A repeated Idempotency-Key from
// the same user is refused while the first request is remembered.
func (h *Handler) submitPayment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if key != "" {
		key = principal.UserID.String() + ":" + key
		if !h.guard.Acquire(ctx, paymentScope, key) {
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate payment submission"})
			return
		}
		defer func() {
			if c.Writer.Status() >= http.StatusBadRequest {
				h.guard.Release(ctx, paymentScope, key)
			}
		}()
	}

	ref, err := h.stageUpload(c, "proof")
	if err != nil {
		h.handleError(c, err)
		return
	}
	input, err := paymentForm(c, ref)
	if err != nil {
		h.files.Discard(ref)
		h.handleError(c, err)
		return
	}
	input.Actor = principal

	payment, err := h.svc.Payments.Submit(ctx, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func paymentForm(c *gin.Context, ref attachment.Ref) (service.SubmitPaymentInput, error) {
	target, err := model.ParsePaymentTarget(c.PostForm("target_type"))
	if err != nil {
		return service.SubmitPaymentInput{}, fmt.Errorf("%w: %w", service.ErrInvalidInput, err)
	}
	targetID, err := uuid.Parse(strings.TrimSpace(c.PostForm("target_id")))
	if err != nil {
		return service.SubmitPaymentInput{}, fmt.Errorf("%w: invalid target_id", service.ErrInvalidInput)
	}
	amount, err := model.ParseMoney(c.PostForm("amount"))
	if err != nil {
		return service.SubmitPaymentInput{}, err
	}
	return service.SubmitPaymentInput{
		TargetType: target,
		TargetID:   targetID,
		Amount:     amount,
		ProofRef:   ref,
	}, nil
}

func (h *Handler) acceptPayment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := h.svc.Payments.Accept(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) rejectPayment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req rejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payment, err := h.svc.Payments.Reject(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) replaceProof(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ref, err := h.stageUpload(c, "proof")
	if err != nil {
		h.handleError(c, err)
		return
	}
	payment, err := h.svc.Payments.ReplaceProof(c.Request.Context(), principal, id, ref)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) downloadProof(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, body, err := h.svc.Payments.OpenProof(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(payment.ProofRef))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": "attachment; filename=\"" + path.Base(payment.ProofRef) + "\"",
	})
}

func (h *Handler) getPayment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := h.svc.Payments.View(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	targetID, err := parseOptionalID(c.Query("target_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	filter := service.PaymentFilter{TargetID: targetID}
	if raw := c.Query("target_type"); raw != "" {
		target, err := model.ParsePaymentTarget(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		filter.TargetType = target
	}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParsePaymentStatus(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		filter.Status = status
	}

	payments, err := h.svc.Payments.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}
