package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fleet-worklog/internal/application/service"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

// EnterRequest replaces a session's batch number
type EnterRequest struct {
	BatchNumber string `json:"batch_number" binding:"required"`
}

type verificationHandlers struct {
	svc    service.VerificationService
	logger Logger
}

func newVerificationHandlers(svc service.VerificationService, logger Logger) *verificationHandlers {
	return &verificationHandlers{svc: svc, logger: logger}
}

// Open handles POST /api/verifications
func (h *verificationHandlers) Open(c *gin.Context) {
	created(c, gin.H{"session_id": h.svc.Open()})
}

// Close handles DELETE /api/verifications/:sid
func (h *verificationHandlers) Close(c *gin.Context) {
	h.svc.Close(c.Param("sid"))
	c.Status(http.StatusNoContent)
}

// Snapshot handles GET /api/verifications/:sid
func (h *verificationHandlers) Snapshot(c *gin.Context) {
	res, err := h.svc.Snapshot(c.Param("sid"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Enter handles PUT /api/verifications/:sid/batch
func (h *verificationHandlers) Enter(c *gin.Context) {
	var req EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Enter(c.Param("sid"), req.BatchNumber)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Lookup handles POST /api/verifications/:sid/lookup
func (h *verificationHandlers) Lookup(c *gin.Context) {
	res, err := h.svc.Lookup(c.Request.Context(), c.Param("sid"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Form handles GET /api/verifications/:sid/form
func (h *verificationHandlers) Form(c *gin.Context) {
	view, err := h.svc.Form(c.Param("sid"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view)
}

// UpdateForm handles PATCH /api/verifications/:sid/form
func (h *verificationHandlers) UpdateForm(c *gin.Context) {
	var req service.FormUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.svc.UpdateForm(c.Param("sid"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view)
}

// CancelForm handles DELETE /api/verifications/:sid/form
func (h *verificationHandlers) CancelForm(c *gin.Context) {
	res, err := h.svc.CancelForm(c.Param("sid"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Submit handles POST /api/verifications/:sid/submit. A refused decision
// answers with proceed=false alongside the error.
func (h *verificationHandlers) Submit(c *gin.Context) {
	res, err := h.svc.Submit(c.Request.Context(), c.Param("sid"))
	if err != nil {
		c.JSON(StatusFor(err), Response{Success: false, Data: res, Error: err.Error()})
		return
	}
	ok(c, res)
}

// Create handles POST /api/verifications/:sid/transactions
func (h *verificationHandlers) Create(c *gin.Context) {
	var req entity.NewTransaction
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Create(c.Request.Context(), c.Param("sid"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, res)
}

func newMaintenanceHandler(svc service.MaintenanceService, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.MaintenanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
		res, err := svc.Submit(c.Request.Context(), req)
		if err != nil {
			logger.Error("Maintenance submission failed", "error", err)
			c.JSON(StatusFor(err), Response{Success: false, Data: res, Error: err.Error()})
			return
		}
		ok(c, res)
	}
}
