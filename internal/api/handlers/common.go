package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"raybox-panel/internal/config"
	"raybox-panel/internal/device"
	"raybox-panel/internal/settings"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// deviceClient builds a client from the current operator settings. Every
// handler constructs its own client so credential edits take effect
// immediately, without restarting anything.
func deviceClient(st settings.Settings, cfg config.DeviceConfig) (*device.Client, error) {
	if st.DeviceIP == "" {
		return nil, device.ErrMissingAddress
	}
	return device.NewClient(device.Config{
		Host:    st.DeviceIP,
		Port:    cfg.Port,
		DryRun:  st.DryRun,
		Timeout: cfg.RequestTimeout,
	}, device.Credentials{Token: st.Token, Secret: st.Secret}), nil
}

func appName(st settings.Settings, cfg config.DeviceConfig) string {
	if st.AppName != "" {
		return st.AppName
	}
	return cfg.AppName
}

// respondDeviceError maps the device error taxonomy onto HTTP responses.
// Validation problems are the caller's fault; everything the device or the
// network did wrong is a bad gateway.
func respondDeviceError(c *gin.Context, err error) {
	var devErr *device.DeviceError
	var statusErr *device.StatusError

	switch {
	case errors.Is(err, device.ErrMissingAddress), errors.Is(err, device.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.As(err, &devErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "device_error",
			Message: devErr.Error(),
		})
	case errors.As(err, &statusErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "http_status_error",
			Message: statusErr.Error(),
		})
	case errors.Is(err, device.ErrNonJSONResponse):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "non_json_response",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "transport_error",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}
