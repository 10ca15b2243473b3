package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

type createPurchaseOrderRequest struct {
	SupplierID string            `json:"supplier_id" binding:"required"`
	Number     string            `json:"number"`
	Lines      []model.OrderLine `json:"lines" binding:"required,min=1"`
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createPurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	supplierID, err := uuid.Parse(strings.TrimSpace(req.SupplierID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier_id"})
		return
	}

	po, err := h.svc.PurchaseOrders.Create(c.Request.Context(), service.CreatePurchaseOrderInput{
		Actor:      principal,
		SupplierID: supplierID,
		Number:     req.Number,
		Lines:      req.Lines,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

func (h *Handler) listPurchaseOrders(c *gin.Context) {
	supplierID, err := parseOptionalID(c.Query("supplier_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	filter := service.PurchaseOrderFilter{SupplierID: supplierID}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParsePurchaseOrderStatus(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		filter.Status = status
	}
	orders, err := h.svc.PurchaseOrders.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getPurchaseOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.PurchaseOrders.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) closePurchaseOrder(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.PurchaseOrders.Close(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) recomputePurchaseOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	po, err := h.svc.PurchaseOrders.RecomputeBalance(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) replacePurchaseOrderDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ref, err := h.stageUpload(c, "file")
	if err != nil {
		h.handleError(c, err)
		return
	}
	po, err := h.svc.PurchaseOrders.ReplaceDocument(c.Request.Context(), principal, id, ref)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *Handler) deletePurchaseOrder(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.PurchaseOrders.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
