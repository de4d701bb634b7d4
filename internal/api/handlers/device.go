package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"raybox-panel/internal/config"
	"raybox-panel/internal/device"
	"raybox-panel/internal/settings"
)

type DeviceHandler struct {
	settings *settings.Store
	cfg      config.DeviceConfig
}

// TestConnectionResponse mirrors the steps of the connection test: raw TCP
// reachability, the unauthenticated clock probe, then a signed call.
type TestConnectionResponse struct {
	TCPOK     bool            `json:"tcp_ok"`
	Time      device.Envelope `json:"time,omitempty"`
	TimeError string          `json:"time_error,omitempty"`
	Auth      device.Envelope `json:"auth,omitempty"`
	AuthError string          `json:"auth_error,omitempty"`
	DryRun    bool            `json:"dry_run"`
}

func NewDeviceHandler(store *settings.Store, cfg config.DeviceConfig) *DeviceHandler {
	return &DeviceHandler{settings: store, cfg: cfg}
}

func (h *DeviceHandler) TestConnection(c *gin.Context) {
	st := h.settings.Get()
	if st.DeviceIP == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "device IP is not configured"})
		return
	}

	resp := TestConnectionResponse{DryRun: st.DryRun}

	resp.TCPOK = device.CheckTCP(st.DeviceIP, h.cfg.Port, h.cfg.ProbeTimeout)
	if !resp.TCPOK {
		c.JSON(http.StatusOK, resp)
		return
	}

	client, err := deviceClient(st, h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	timeCtx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.TimeTimeout)
	defer cancel()
	if env, err := client.Time(timeCtx); err != nil {
		resp.TimeError = err.Error()
	} else {
		resp.Time = env
	}

	creds := device.Credentials{Token: st.Token, Secret: st.Secret}
	if !creds.Valid() {
		resp.AuthError = device.ErrMissingCredentials.Error()
		c.JSON(http.StatusOK, resp)
		return
	}

	if env, err := client.Datacenters(c.Request.Context()); err != nil {
		resp.AuthError = err.Error()
	} else {
		resp.Auth = env
	}

	c.JSON(http.StatusOK, resp)
}

func (h *DeviceHandler) GetTime(c *gin.Context) {
	client, err := deviceClient(h.settings.Get(), h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.TimeTimeout)
	defer cancel()

	env, err := client.Time(ctx)
	if err != nil {
		respondDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *DeviceHandler) ListDatacenters(c *gin.Context) {
	client, err := deviceClient(h.settings.Get(), h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	env, err := client.Datacenters(c.Request.Context())
	if err != nil {
		respondDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// GetState is the one-shot counterpart of the monitoring loop: a single
// cutSystemState poll with the decoded display label.
func (h *DeviceHandler) GetState(c *gin.Context) {
	st := h.settings.Get()

	machineIP := c.Query("ip")
	if machineIP == "" {
		machineIP = st.DeviceIP
	}

	client, err := deviceClient(st, h.cfg)
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	snap, err := client.CutSystemState(c.Request.Context(), machineIP, appName(st, h.cfg))
	if err != nil {
		respondDeviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"label":    snap.Label(),
	})
}

func (h *DeviceHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/device/test", h.TestConnection)
	r.GET("/device/time", h.GetTime)
	r.GET("/device/datacenters", h.ListDatacenters)
	r.GET("/device/state", h.GetState)
}
