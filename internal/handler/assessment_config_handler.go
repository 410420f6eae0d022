package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-grade-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
	"github.com/noah-isme/sma-grade-engine/pkg/response"
)

type assessmentConfigResolver interface {
	Resolve(ctx context.Context, scope models.ConfigScope) models.AssessmentConfig
}

// AssessmentConfigHandler exposes the effective assessment config.
type AssessmentConfigHandler struct {
	resolver  assessmentConfigResolver
	validator *validator.Validate
}

// NewAssessmentConfigHandler constructs handler.
func NewAssessmentConfigHandler(resolver assessmentConfigResolver, validate *validator.Validate) *AssessmentConfigHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AssessmentConfigHandler{resolver: resolver, validator: validate}
}

// Resolve godoc
// @Summary Resolve the effective assessment configuration
// @Tags Assessment Configs
// @Produce json
// @Param classId query string true "Class ID"
// @Param subjectId query string true "Subject ID"
// @Param semester query int true "Semester"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /assessment-configs/resolve [get]
func (h *AssessmentConfigHandler) Resolve(c *gin.Context) {
	var scope models.ConfigScope
	if err := c.ShouldBindQuery(&scope); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(scope); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scope"))
		return
	}
	response.JSON(c, http.StatusOK, h.resolver.Resolve(c.Request.Context(), scope))
}
