package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"raybox-panel/internal/export"
	"raybox-panel/internal/job"
)

type ExportHandler struct {
	store *job.Store
}

func NewExportHandler(store *job.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

func (h *ExportHandler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, h.store.List()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export_error", Message: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="jobs.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	data, err := export.WriteXLSX(h.store.List())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export_error", Message: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="jobs.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ExportHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/export/csv", h.ExportCSV)
	r.GET("/export/xlsx", h.ExportXLSX)
}
