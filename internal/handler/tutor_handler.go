package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edumarket/tutorhub-api/internal/models"
	"github.com/edumarket/tutorhub-api/pkg/response"
)

type tutorService interface {
	List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.TutorProfile, error)
}

// TutorHandler exposes the public tutor directory.
type TutorHandler struct {
	tutors tutorService
}

// NewTutorHandler constructs a new TutorHandler.
func NewTutorHandler(tutors tutorService) *TutorHandler {
	return &TutorHandler{tutors: tutors}
}

// List godoc
// @Summary Browse the tutor directory
// @Tags Tutors
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param min_rating query number false "Minimum rating"
// @Param mode query string false "Tutoring mode (online,in_person,hybrid)"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	filter := models.TutorFilter{
		Subject: strings.TrimSpace(c.Query("subject")),
		Mode:    models.TutoringMode(c.Query("mode")),
	}
	if raw := c.Query("min_rating"); raw != "" {
		if rating, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinRating = &rating
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	tutors, pagination, err := h.tutors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors, pagination)
}

// Get godoc
// @Summary Get one tutor profile
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor profile ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	tutor, err := h.tutors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}
