package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"raybox-panel/internal/job"
)

type JobHandler struct {
	store *job.Store
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

func NewJobHandler(store *job.Store) *JobHandler {
	return &JobHandler{store: store}
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	records := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  records,
		"count": len(records),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	rec, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	if rec.Status == job.StatusInProgress {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_state", Message: "cannot delete a job that is cutting"})
		return
	}

	if err := h.store.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

func (h *JobHandler) ClearJobs(c *gin.Context) {
	h.store.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "job history cleared"})
}

// UpdateNotes is the only write path for the notes field; the monitor
// never touches it.
func (h *JobHandler) UpdateNotes(c *gin.Context) {
	var req UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	rec, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	rec.Notes = req.Notes
	h.store.Upsert(rec)
	c.JSON(http.StatusOK, rec)
}

func (h *JobHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/stats", h.GetStats)
	r.GET("/jobs/:id", h.GetJob)
	r.DELETE("/jobs/:id", h.DeleteJob)
	r.DELETE("/jobs", h.ClearJobs)
	r.PUT("/jobs/:id/notes", h.UpdateNotes)
}
