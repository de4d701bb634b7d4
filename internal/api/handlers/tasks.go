package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"raybox-panel/internal/config"
	"raybox-panel/internal/device"
	"raybox-panel/internal/events"
	"raybox-panel/internal/job"
	"raybox-panel/internal/settings"
)

// TaskHandler covers the one-shot device actions: upload, assign, cancel
// and open-file. Each action is a single attempt against the device (no
// retries, the firmware gives no idempotency guarantee) followed by a
// local job record mutation.
type TaskHandler struct {
	store    *job.Store
	settings *settings.Store
	cfg      config.DeviceConfig
	hub      *events.Hub
}

type AssignTaskRequest struct {
	MachineIP string `json:"machine_ip" binding:"required"`
}

func NewTaskHandler(store *job.Store, st *settings.Store, cfg config.DeviceConfig, hub *events.Hub) *TaskHandler {
	return &TaskHandler{store: store, settings: st, cfg: cfg, hub: hub}
}

func (h *TaskHandler) UploadTask(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "task name is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "cutting file is required"})
		return
	}

	copies := 1
	if v := c.PostForm("copies"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			copies = n
		}
	}

	identifier := c.PostForm("identifier")
	if identifier == "" {
		identifier = uuid.NewString()
	}

	st := h.settings.Get()
	client, err := deviceClient(st, h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "failed to open uploaded file"})
		return
	}
	defer file.Close()

	machineIP := c.PostForm("machine_ip")

	env, err := client.UploadTask(c.Request.Context(), device.UploadTaskParams{
		Identifier:      identifier,
		Name:            name,
		Material:        c.PostForm("material"),
		Thickness:       c.PostForm("thickness"),
		Count:           copies,
		TargetMachineIP: machineIP,
		FileName:        fileHeader.Filename,
		File:            file,
	})
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	rec := &job.Record{
		ID:         identifier,
		Name:       name,
		Material:   c.PostForm("material"),
		Thickness:  c.PostForm("thickness"),
		Copies:     copies,
		FilePath:   fileHeader.Filename,
		MachineIP:  machineIP,
		Status:     job.StatusUploaded,
		UploadedAt: time.Now(),
	}
	h.store.Upsert(rec)
	if h.hub != nil {
		h.hub.JobUpdated(rec)
	}

	c.JSON(http.StatusCreated, gin.H{
		"job":    rec,
		"device": env,
	})
}

func (h *TaskHandler) AssignTask(c *gin.Context) {
	id := c.Param("id")

	var req AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	rec, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	if rec.Status != job.StatusUploaded {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_state", Message: "only uploaded jobs can be assigned"})
		return
	}

	client, err := deviceClient(h.settings.Get(), h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	env, err := client.AssignTask(c.Request.Context(), req.MachineIP, id)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	now := time.Now()
	rec.Status = job.StatusAssigned
	rec.MachineIP = req.MachineIP
	if rec.AssignedAt == nil {
		rec.AssignedAt = &now
	}
	h.store.Upsert(rec)
	if h.hub != nil {
		h.hub.JobUpdated(rec)
	}

	c.JSON(http.StatusOK, gin.H{
		"job":    rec,
		"device": env,
	})
}

// CancelTask is the one backward edge in the lifecycle: an assigned job
// returns to uploaded. Everything else on the record stays untouched.
func (h *TaskHandler) CancelTask(c *gin.Context) {
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

	if rec.Status != job.StatusAssigned {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_state", Message: "only assigned jobs can be cancelled"})
		return
	}

	client, err := deviceClient(h.settings.Get(), h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	env, err := client.CancelAssign(c.Request.Context(), id)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	rec.Status = job.StatusUploaded
	rec.AssignedAt = nil
	h.store.Upsert(rec)
	if h.hub != nil {
		h.hub.JobUpdated(rec)
	}

	c.JSON(http.StatusOK, gin.H{
		"job":    rec,
		"device": env,
	})
}

func (h *TaskHandler) OpenFile(c *gin.Context) {
	id := c.Param("id")

	machineIP := c.Query("ip")
	if machineIP == "" {
		if rec, err := h.store.Get(id); err == nil {
			machineIP = rec.MachineIP
		}
	}
	if machineIP == "" {
		machineIP = h.settings.Get().DeviceIP
	}

	client, err := deviceClient(h.settings.Get(), h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	env, err := client.OpenFile(c.Request.Context(), id, machineIP)
	if err != nil {
		respondDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *TaskHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tasks/upload", h.UploadTask)
	r.POST("/tasks/:id/assign", h.AssignTask)
	r.POST("/tasks/:id/cancel", h.CancelTask)
	r.GET("/tasks/:id/file", h.OpenFile)
}
