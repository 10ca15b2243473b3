package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

type createMilestoneRequest struct {
	Title    string      `json:"title" binding:"required"`
	Amount   model.Money `json:"amount" binding:"required"`
	Sequence int         `json:"sequence" binding:"required"`
}

type milestoneStatusRequest struct {
	Status model.MilestoneStatus `json:"status" binding:"required"`
}

type billingStatusRequest struct {
	Status model.BillingStatus `json:"status" binding:"required"`
}

type milestoneAmountRequest struct {
	Amount model.Money `json:"amount" binding:"required"`
}

func (h *Handler) listProjects(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	clientID, err := parseOptionalID(c.Query("client_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	filter := service.ProjectFilter{ClientID: clientID}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseProjectStatus(raw)
		if err != nil {
			h.handleError(c, err)
			return
		}
		filter.Status = status
	}
	if principal.IsClient() {
		filter.ClientID = principal.OrgID
	}

	projects, err := h.svc.Projects.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) getProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := h.svc.Projects.View(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) activateProject(c *gin.Context) {
	h.projectTransition(c, h.svc.Projects.Activate)
}

func (h *Handler) completeProject(c *gin.Context) {
	h.projectTransition(c, h.svc.Projects.Complete)
}

func (h *Handler) cancelProject(c *gin.Context) {
	h.projectTransition(c, h.svc.Projects.Cancel)
}

func (h *Handler) projectTransition(c *gin.Context, apply func(context.Context, model.Principal, uuid.UUID) (*model.Project, error)) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := apply(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) recomputeProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	status, err := h.svc.Milestones.RecomputeProjectPaymentStatus(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": id, "payment_status": status})
}

func (h *Handler) uploadContract(c *gin.Context) {
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
	project, err := h.svc.Projects.UpdateSignedContract(c.Request.Context(), principal, id, ref)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) deleteProject(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Projects.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportStatement(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Projects.View(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	result, err := h.svc.Documents.ProjectStatement(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendDocument(c, contentTypeXLSX, result)
}

func (h *Handler) listMilestones(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Projects.View(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	milestones, err := h.svc.Milestones.List(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestones)
}

func (h *Handler) createMilestone(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req createMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := h.svc.Milestones.Create(c.Request.Context(), service.CreateMilestoneInput{
		Actor:     principal,
		ProjectID: projectID,
		Title:     req.Title,
		Amount:    req.Amount,
		Sequence:  req.Sequence,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, milestone)
}

func (h *Handler) getMilestone(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	milestone, err := h.svc.Milestones.View(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

func (h *Handler) setMilestoneStatus(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req milestoneStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestone, err := h.svc.Milestones.SetStatus(c.Request.Context(), principal, id, req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

func (h *Handler) setMilestoneBilling(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req billingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestone, err := h.svc.Milestones.SetBillingStatus(c.Request.Context(), principal, id, req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

func (h *Handler) updateMilestoneAmount(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req milestoneAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestone, err := h.svc.Milestones.UpdateAmount(c.Request.Context(), principal, id, req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

func (h *Handler) deleteMilestone(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Milestones.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
