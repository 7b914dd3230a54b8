package http

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/fleet-worklog/internal/application/service"
	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LoadRequest selects the equipment month to load
type LoadRequest struct {
	Month int `json:"month" binding:"required,min=1,max=12"`
	Year  int `json:"year" binding:"required,min=2000,max=2100"`
}

// LoadResponse reports a refresh, with warnings and issues as text
type LoadResponse struct {
	Scope    worklog.Scope `json:"scope"`
	Entries  int           `json:"entries"`
	Degraded bool          `json:"degraded"`
	Warnings []string      `json:"warnings,omitempty"`
	Issues   []string      `json:"issues,omitempty"`
}

// DraftRequest adds a manual draft
type DraftRequest struct {
	Date        string          `json:"date" binding:"required"`
	WorkTypeID  int64           `json:"work_type_id" binding:"gte=0"`
	WorkedHours decimal.Decimal `json:"worked_hours"`
	DriverID    int64           `json:"driver_id" binding:"gte=0"`
}

// FieldRequest edits one entry field
type FieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// CellRequest writes a matrix cell
type CellRequest struct {
	Date        string          `json:"date" binding:"required"`
	WorkTypeID  int64           `json:"work_type_id" binding:"required,gt=0"`
	WorkedHours decimal.Decimal `json:"worked_hours"`
	DriverID    int64           `json:"driver_id" binding:"gte=0"`
}

// GenerateRequest asks for drafts over an inclusive date range
type GenerateRequest struct {
	Start       string          `json:"start" binding:"required"`
	End         string          `json:"end" binding:"required"`
	WorkTypeID  int64           `json:"work_type_id"`
	WorkedHours decimal.Decimal `json:"worked_hours"`
	DriverID    int64           `json:"driver_id"`
}

// SaveFailureResponse names one entry that failed to save
type SaveFailureResponse struct {
	Ref       string `json:"ref"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// SubmitAllResponse reports a save-all run
type SubmitAllResponse struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Skipped   int                   `json:"skipped"`
	Failures  []SaveFailureResponse `json:"failures,omitempty"`
}

type workLogHandlers struct {
	svc    service.WorkLogService
	logger Logger
}

func newWorkLogHandlers(svc service.WorkLogService, logger Logger) *workLogHandlers {
	return &workLogHandlers{svc: svc, logger: logger}
}

// Load handles POST /api/equipment/:id/worklog/load
func (h *workLogHandlers) Load(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	report, err := h.svc.Load(c.Request.Context(), id, time.Month(req.Month), req.Year)
	if err != nil {
		fail(c, err)
		return
	}

	resp := LoadResponse{Scope: report.Scope, Entries: report.Entries, Degraded: report.Degraded()}
	for _, w := range report.Warnings {
		resp.Warnings = append(resp.Warnings, w.Message())
	}
	for _, i := range report.Issues {
		resp.Issues = append(resp.Issues, i.Message())
	}
	ok(c, resp)
}

// ListEntries handles GET /api/equipment/:id/entries
func (h *workLogHandlers) ListEntries(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	list, err := h.svc.Entries(id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

// Calendar handles GET /api/equipment/:id/calendar
func (h *workLogHandlers) Calendar(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	days, err := h.svc.Calendar(id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, days)
}

// Matrix handles GET /api/equipment/:id/matrix
func (h *workLogHandlers) Matrix(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	m, err := h.svc.Matrix(id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, m)
}

// Export handles GET /api/equipment/:id/matrix/export
func (h *workLogHandlers) Export(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	stored, content, err := h.svc.Export(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(stored)))
	c.Data(http.StatusOK, xlsxContentType, content)
}

// AddDraft handles POST /api/equipment/:id/entries
func (h *workLogHandlers) AddDraft(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	date, okDate := parseDay(c, "date", req.Date)
	if !okDate {
		return
	}

	entry, err := h.svc.AddDraft(id, worklog.DraftInput{
		Date:        date,
		WorkTypeID:  req.WorkTypeID,
		WorkedHours: req.WorkedHours,
		DriverID:    req.DriverID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, entry)
}

// UpdateField handles PATCH /api/equipment/:id/entries/:ref
func (h *workLogHandlers) UpdateField(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var req FieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	field := entity.EntryField(req.Field)
	if !field.IsValid() {
		badRequest(c, "unknown field: "+req.Field)
		return
	}

	changed, err := h.svc.UpdateField(id, c.Param("ref"), field, req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"changed": changed})
}

// Save handles POST /api/equipment/:id/entries/:ref/save
func (h *workLogHandlers) Save(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	entry, err := h.svc.Save(c.Request.Context(), id, c.Param("ref"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entry)
}

// Delete handles DELETE /api/equipment/:id/entries/:ref
func (h *workLogHandlers) Delete(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, c.Param("ref"), permissions(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Generate handles POST /api/equipment/:id/entries/generate
func (h *workLogHandlers) Generate(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	start, okStart := parseDay(c, "start", req.Start)
	if !okStart {
		return
	}
	end, okEnd := parseDay(c, "end", req.End)
	if !okEnd {
		return
	}

	result, err := h.svc.Generate(id, worklog.BulkRequest{
		Start: start,
		End:   end,
		Defaults: worklog.BulkDefaults{
			WorkTypeID:  req.WorkTypeID,
			WorkedHours: req.WorkedHours,
			DriverID:    req.DriverID,
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, result)
}

// SubmitAll handles POST /api/equipment/:id/entries/submit-all
func (h *workLogHandlers) SubmitAll(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	result, err := h.svc.SaveAll(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toSubmitAllResponse(result))
}

// WriteCell handles PUT /api/equipment/:id/matrix/cells
func (h *workLogHandlers) WriteCell(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	date, okDate := parseDay(c, "date", req.Date)
	if !okDate {
		return
	}

	result, err := h.svc.WriteCell(c.Request.Context(), id, date, req.WorkTypeID, req.WorkedHours, req.DriverID, permissions(c))
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{"write": result}
	if len(result.DeleteFailures) > 0 {
		failures := make([]SaveFailureResponse, 0, len(result.DeleteFailures))
		for _, f := range result.DeleteFailures {
			failures = append(failures, toFailure(f))
		}
		resp["delete_failures"] = failures
	}
	ok(c, resp)
}

func toSubmitAllResponse(r *worklog.SaveResult) SubmitAllResponse {
	resp := SubmitAllResponse{Succeeded: r.Succeeded, Failed: r.Failed, Skipped: r.Skipped}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, toFailure(f))
	}
	return resp
}

func toFailure(f worklog.SaveFailure) SaveFailureResponse {
	return SaveFailureResponse{Ref: f.Ref, Error: f.Err.Error(), Retryable: entity.IsRetryable(f.Err)}
}

func permissions(c *gin.Context) worklog.Permissions {
	canEdit, _ := strconv.ParseBool(c.GetHeader(canEditHeader))
	return worklog.Permissions{CanEdit: canEdit}
}
