package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eventhub-api/internal/dto"
	"github.com/noah-isme/eventhub-api/internal/models"
	"github.com/noah-isme/eventhub-api/internal/service"
	"github.com/noah-isme/eventhub-api/pkg/response"
)

type xpReader interface {
	GetXP(ctx context.Context, uid string) (*models.XPData, error)
}

type resultsExporter interface {
	Export(ctx context.Context, id, format string) (*service.ResultsFile, error)
}

type operationReplayer interface {
	Replay(ctx context.Context, actor models.Actor, envelopes []models.OperationEnvelope) ([]models.OperationResult, error)
}

// ResultsHandler exposes XP records, results exports and offline replay.
type ResultsHandler struct {
	xp       xpReader
	exporter resultsExporter
	replayer operationReplayer
}

// NewResultsHandler builds a new handler.
func NewResultsHandler(xp xpReader, exporter resultsExporter, replayer operationReplayer) *ResultsHandler {
	return &ResultsHandler{xp: xp, exporter: exporter, replayer: replayer}
}

// XP godoc
// @Summary Get a user's accumulated XP
// @Tags XP
// @Param uid path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /xp/{uid} [get]
func (h *ResultsHandler) XP(c *gin.Context) {
	record, err := h.xp.GetXP(c.Request.Context(), c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Export godoc
// @Summary Download winners and XP awards
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Event ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /events/{id}/results [get]
func (h *ResultsHandler) Export(c *gin.Context) {
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// Replay godoc
// @Summary Apply queued offline operations in order
// @Tags Operations
// @Accept json
// @Param payload body dto.ReplayRequest true "Operations"
// @Success 200 {object} response.Envelope
// @Router /operations/replay [post]
func (h *ResultsHandler) Replay(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ReplayRequest
	if !bindJSON(c, &req, "replay") {
		return
	}
	results, err := h.replayer.Replay(c.Request.Context(), actor, req.Operations)
	if err != nil {
		response.Error(c, err)
		return
	}
	applied := 0
	for _, result := range results {
		if result.Applied {
			applied++
		}
	}
	response.JSON(c, http.StatusOK, results, nil, map[string]interface{}{
		"applied":  applied,
		"rejected": len(results) - applied,
	})
}
