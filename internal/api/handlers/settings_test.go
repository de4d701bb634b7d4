package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raybox-panel/internal/settings"
)

func newSettingsRig(t *testing.T) (*gin.Engine, *settings.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, store.Load())

	router := gin.New()
	NewSettingsHandler(store).RegisterRoutes(router.Group("/api/v1"))
	return router, store
}

func TestGetSettingsMasksSecret(t *testing.T) {
	router, store := newSettingsRig(t)
	require.NoError(t, store.Update(func(s *settings.Settings) {
		s.DeviceIP = "10.0.0.5"
		s.Token = "tok"
		s.Secret = "very-secret"
	}))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp SettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "10.0.0.5", resp.DeviceIP)
	assert.Equal(t, "tok", resp.Token)
	assert.True(t, resp.HasSecret)
	assert.NotContains(t, w.Body.String(), "very-secret")
}

func TestUpdateSettingsPartial(t *testing.T) {
	router, store := newSettingsRig(t)
	require.NoError(t, store.Update(func(s *settings.Settings) {
		s.DeviceIP = "10.0.0.5"
		s.Token = "tok"
		s.DryRun = true
	}))

	// Only device_ip changes; token and dry_run stay.
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings",
		strings.NewReader(`{"device_ip":"10.0.0.9"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)

	got := store.Get()
	assert.Equal(t, "10.0.0.9", got.DeviceIP)
	assert.Equal(t, "tok", got.Token)
	assert.True(t, got.DryRun)
}

func TestUpdateSettingsDryRunToggle(t *testing.T) {
	router, store := newSettingsRig(t)
	require.NoError(t, store.Update(func(s *settings.Settings) { s.DryRun = true }))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings",
		strings.NewReader(`{"dry_run":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, store.Get().DryRun)
}

func TestUpdateSettingsRejectsBadJSON(t *testing.T) {
	router, _ := newSettingsRig(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings",
		strings.NewReader(`{device_ip}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(router, req).Code)
}
