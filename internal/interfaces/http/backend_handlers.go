package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

// backendHandlers serve a port.Backend over REST so another instance can
// use it as its remote backend
type backendHandlers struct {
	backend port.Backend
	ranges  RangeWriter
	logger  Logger
}

func registerBackendRoutes(g *gin.RouterGroup, backend port.Backend, ranges RangeWriter, logger Logger) {
	h := &backendHandlers{backend: backend, ranges: ranges, logger: logger}

	g.GET("/equipment/:id/entries", h.ListEntries)
	g.POST("/equipment/:id/entries", h.CreateEntry)
	g.GET("/equipment/:id/ranges", h.ListRanges)
	if ranges != nil {
		g.POST("/equipment/:id/ranges", h.CreateRange)
	}
	g.PUT("/entries/:id", h.UpdateEntry)
	g.DELETE("/entries/:id", h.DeleteEntry)
	g.GET("/transactions", h.LookupTransaction)
	g.POST("/transactions", h.CreateTransaction)
	g.POST("/transactions/:id/decision", h.SubmitDecision)
}

func (h *backendHandlers) ListEntries(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	entries, err := h.backend.FetchSingleEntries(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entries)
}

func (h *backendHandlers) CreateEntry(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var entry entity.WorkEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		badRequest(c, "invalid entry: "+err.Error())
		return
	}
	saved, err := h.backend.CreateEntry(c.Request.Context(), id, &entry)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, saved)
}

func (h *backendHandlers) ListRanges(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	groups, err := h.backend.FetchRangeEntries(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, groups)
}

func (h *backendHandlers) CreateRange(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var group entity.RangeGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		badRequest(c, "invalid range group: "+err.Error())
		return
	}
	group.EquipmentID = id
	for _, e := range group.Entries {
		e.EquipmentID = id
	}
	if err := h.ranges.CreateRangeGroup(c.Request.Context(), &group); err != nil {
		fail(c, err)
		return
	}
	created(c, group)
}

func (h *backendHandlers) UpdateEntry(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var entry entity.WorkEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		badRequest(c, "invalid entry: "+err.Error())
		return
	}
	saved, err := h.backend.UpdateEntry(c.Request.Context(), id, &entry)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, saved)
}

func (h *backendHandlers) DeleteEntry(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	if err := h.backend.DeleteEntry(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LookupTransaction answers 404 for a batch number without a transaction
func (h *backendHandlers) LookupTransaction(c *gin.Context) {
	raw := c.Query("batch_number")
	batchNumber, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || batchNumber <= 0 {
		badRequest(c, "batch_number must be a positive integer")
		return
	}

	tx, err := h.backend.LookupByBatchNumber(c.Request.Context(), batchNumber)
	if err != nil {
		fail(c, err)
		return
	}
	if tx == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "no transaction for batch " + raw})
		return
	}
	ok(c, tx)
}

func (h *backendHandlers) CreateTransaction(c *gin.Context) {
	var payload entity.NewTransaction
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid transaction: "+err.Error())
		return
	}
	tx, err := h.backend.CreateTransaction(c.Request.Context(), &payload)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, tx)
}

func (h *backendHandlers) SubmitDecision(c *gin.Context) {
	id, okID := paramID(c, "id")
	if !okID {
		return
	}
	var decision entity.ValidationDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		badRequest(c, "invalid decision: "+err.Error())
		return
	}
	tx, err := h.backend.SubmitValidationDecision(c.Request.Context(), id, &decision)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tx)
}
