package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/legalmatch/internal/services"
	"github.com/yoockh/legalmatch/internal/utils"
)

type SearchHandler struct {
	svc services.SearchService
}

func NewSearchHandler(svc services.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search serves POST /functions/v1/search-lawyers.
func (h *SearchHandler) Search(c *gin.Context) {
	var req services.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SearchHandler.Search", "invalid request body", err))
		return
	}

	resp, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
