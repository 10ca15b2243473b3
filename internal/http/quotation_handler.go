package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

type createQuotationRequest struct {
	ClientID string           `json:"client_id" binding:"required"`
	Title    string           `json:"title"`
	Lines    []model.CostLine `json:"lines" binding:"required,min=1"`
}

type updateLinesRequest struct {
	Lines []model.CostLine `json:"lines" binding:"required,min=1"`
}

func (h *Handler) createQuotation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return
	}

	quotation, err := h.svc.Quotations.Create(c.Request.Context(), service.CreateQuotationInput{
		Actor:    principal,
		ClientID: clientID,
		Title:    req.Title,
		Lines:    req.Lines,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quotation)
}

func (h *Handler) listQuotations(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	clientID, err := parseOptionalID(c.Query("client_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	filter := service.QuotationFilter{ClientID: clientID}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseQuotationStatus(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		filter.Status = status
	}
	if principal.IsClient() {
		filter.ClientID = principal.OrgID
	}

	quotations, err := h.svc.Quotations.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotations)
}

func (h *Handler) getQuotation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quotation, err := h.svc.Quotations.View(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func (h *Handler) acceptQuotation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.svc.Quotations.Accept(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) declineQuotation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quotation, err := h.svc.Quotations.Decline(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func (h *Handler) updateQuotationLines(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quotation, err := h.svc.Quotations.UpdateLines(c.Request.Context(), principal, id, req.Lines)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func (h *Handler) replaceQuotationDocument(c *gin.Context) {
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
	quotation, err := h.svc.Quotations.ReplaceDocument(c.Request.Context(), principal, id, ref)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func (h *Handler) exportQuotationPDF(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Quotations.View(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	result, err := h.svc.Documents.QuotationPDF(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendDocument(c, contentTypePDF, result)
}
