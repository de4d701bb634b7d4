package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"raybox-panel/internal/settings"
)

type SettingsHandler struct {
	settings *settings.Store
}

// SettingsResponse never echoes the secret back; the client only learns
// whether one is stored.
type SettingsResponse struct {
	DeviceIP  string `json:"device_ip"`
	Token     string `json:"token"`
	HasSecret bool   `json:"has_secret"`
	DryRun    bool   `json:"dry_run"`
	AppName   string `json:"app_name,omitempty"`
}

type UpdateSettingsRequest struct {
	DeviceIP *string `json:"device_ip"`
	Token    *string `json:"token"`
	Secret   *string `json:"secret"`
	DryRun   *bool   `json:"dry_run"`
	AppName  *string `json:"app_name"`
}

func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{settings: store}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	st := h.settings.Get()
	c.JSON(http.StatusOK, SettingsResponse{
		DeviceIP:  st.DeviceIP,
		Token:     st.Token,
		HasSecret: st.Secret != "",
		DryRun:    st.DryRun,
		AppName:   st.AppName,
	})
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	err := h.settings.Update(func(s *settings.Settings) {
		if req.DeviceIP != nil {
			s.DeviceIP = *req.DeviceIP
		}
		if req.Token != nil {
			s.Token = *req.Token
		}
		if req.Secret != nil {
			s.Secret = *req.Secret
		}
		if req.DryRun != nil {
			s.DryRun = *req.DryRun
		}
		if req.AppName != nil {
			s.AppName = *req.AppName
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "failed to save settings"})
		return
	}

	h.GetSettings(c)
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}
