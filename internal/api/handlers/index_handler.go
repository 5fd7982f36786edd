package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/services"
	"github.com/yoockh/legalmatch/internal/utils"
)

type IndexHandler struct {
	svc services.IndexerService
}

func NewIndexHandler(svc services.IndexerService) *IndexHandler {
	return &IndexHandler{svc: svc}
}

type GenerateResponse struct {
	Message   string                   `json:"message"`
	RunID     string                   `json:"run_id"`
	Model     string                   `json:"model"`
	Scanned   int                      `json:"scanned"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	Skipped   int                      `json:"skipped"`
	Results   []models.IndexItemResult `json:"results"`
}

// Generate runs one indexer pass synchronously. The pass continues if the
// caller disconnects.
func (h *IndexHandler) Generate(c *gin.Context) {
	run, err := h.svc.Run(context.WithoutCancel(c.Request.Context()), services.TriggerManual)
	if err != nil {
		writeError(c, err)
		return
	}

	items := run.Items
	if items == nil {
		items = []models.IndexItemResult{}
	}
	c.JSON(http.StatusOK, GenerateResponse{
		Message:   run.Message(),
		RunID:     run.RunID,
		Model:     run.Model,
		Scanned:   run.Scanned,
		Succeeded: run.Succeeded,
		Failed:    run.Failed,
		Skipped:   run.Skipped,
		Results:   items,
	})
}

func (h *IndexHandler) Runs(c *gin.Context) {
	limit := int64(20)
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "IndexHandler.Runs", "limit must be a positive integer", err))
			return
		}
		limit = n
	}

	runs, err := h.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (h *IndexHandler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
