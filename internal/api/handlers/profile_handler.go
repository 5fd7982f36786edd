package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/legalmatch/internal/models"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/services"
	"github.com/yoockh/legalmatch/internal/utils"
)

type ProfileHandler struct {
	svc services.ProfileService
}

func NewProfileHandler(svc services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.svc.GetMe(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateSearchableRequest carries only the fields search is computed from.
type UpdateSearchableRequest struct {
	PracticeAreas        *[]string `json:"practice_areas,omitempty"`
	ExpertiseDescription *string   `json:"expertise_description,omitempty"`
	ProfessionalBio      *string   `json:"professional_bio,omitempty"`
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateSearchableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.Update", "invalid request body", err))
		return
	}

	p, err := h.svc.UpdateSearchable(c.Request.Context(), userID, models.SearchableFields{
		PracticeAreas:        req.PracticeAreas,
		ExpertiseDescription: req.ExpertiseDescription,
		ProfessionalBio:      req.ProfessionalBio,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// List serves the non-semantic directory used while AI search is off.
func (h *ProfileHandler) List(c *gin.Context) {
	f := pgrepo.ListFilter{
		Text:         c.Query("q"),
		PracticeArea: c.Query("practice_area"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.List", "limit must be a positive integer", err))
			return
		}
		f.Limit = n
	}

	out, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}
