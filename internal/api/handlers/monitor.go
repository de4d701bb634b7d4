package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"raybox-panel/internal/config"
	"raybox-panel/internal/events"
	"raybox-panel/internal/monitor"
	"raybox-panel/internal/settings"
)

type MonitorHandler struct {
	monitor  *monitor.Monitor
	settings *settings.Store
	cfg      config.DeviceConfig
	hub      *events.Hub
}

type StartMonitorRequest struct {
	MachineIP string `json:"machine_ip"`
	AppName   string `json:"app_name"`
}

func NewMonitorHandler(m *monitor.Monitor, st *settings.Store, cfg config.DeviceConfig, hub *events.Hub) *MonitorHandler {
	return &MonitorHandler{monitor: m, settings: st, cfg: cfg, hub: hub}
}

func (h *MonitorHandler) Start(c *gin.Context) {
	// Body is optional; defaults come from settings.
	var req StartMonitorRequest
	_ = c.ShouldBindJSON(&req)

	st := h.settings.Get()
	machineIP := req.MachineIP
	if machineIP == "" {
		machineIP = st.DeviceIP
	}
	if machineIP == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "machine IP is not configured"})
		return
	}

	app := req.AppName
	if app == "" {
		app = appName(st, h.cfg)
	}

	client, err := deviceClient(st, h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	if err := h.monitor.Start(client, machineIP, app); err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already_running", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	status := h.monitor.Status()
	if h.hub != nil {
		h.hub.MonitorChanged(status)
	}
	c.JSON(http.StatusOK, status)
}

func (h *MonitorHandler) Stop(c *gin.Context) {
	h.monitor.Stop()

	status := h.monitor.Status()
	if h.hub != nil {
		h.hub.MonitorChanged(status)
	}
	c.JSON(http.StatusOK, status)
}

func (h *MonitorHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Status())
}

func (h *MonitorHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/monitor/start", h.Start)
	r.POST("/monitor/stop", h.Stop)
	r.GET("/monitor", h.Status)
}
