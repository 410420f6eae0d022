package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grade-engine/internal/models"
	"github.com/noah-isme/sma-grade-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
	"github.com/noah-isme/sma-grade-engine/pkg/response"
)

type recalculationService interface {
	OnGradeChanged(ctx context.Context, event models.GradeChangedEvent) (*service.CascadeReport, error)
	OnConfigChanged(ctx context.Context, event models.ConfigChangedEvent) (*service.BatchResult, error)
	CalculateClassAverages(ctx context.Context, classID string, req models.ClassRecalculationRequest) (*service.BatchResult, error)
}

// RecalculationHandler exposes the change triggers to internal callers.
type RecalculationHandler struct {
	recalc recalculationService
}

// NewRecalculationHandler constructs handler.
func NewRecalculationHandler(recalc recalculationService) *RecalculationHandler {
	return &RecalculationHandler{recalc: recalc}
}

// GradeChanged godoc
// @Summary Recalculate after a grade write
// @Tags Recalculation
// @Accept json
// @Produce json
// @Param payload body models.GradeChangedEvent true "Changed grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /recalculations/grade-changed [post]
func (h *RecalculationHandler) GradeChanged(c *gin.Context) {
	var event models.GradeChangedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.recalc.OnGradeChanged(c.Request.Context(), event)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ConfigChanged godoc
// @Summary Recalculate after an assessment config change
// @Tags Recalculation
// @Accept json
// @Produce json
// @Param payload body models.ConfigChangedEvent true "Changed config scope"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /recalculations/config-changed [post]
func (h *RecalculationHandler) ConfigChanged(c *gin.Context) {
	var event models.ConfigChangedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.recalc.OnConfigChanged(c.Request.Context(), event)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeBatch(c, batch)
}

// Class godoc
// @Summary Recalculate every average of a class
// @Tags Recalculation
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body models.ClassRecalculationRequest true "Semester and academic year"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /recalculations/classes/{classId} [post]
func (h *RecalculationHandler) Class(c *gin.Context) {
	var req models.ClassRecalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.recalc.CalculateClassAverages(c.Request.Context(), c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeBatch(c, batch)
}

func writeBatch(c *gin.Context, batch *service.BatchResult) {
	if batch.Partial() {
		response.JSON(c, appErrors.ErrPartialBatch.Status, batch, map[string]interface{}{
			"code":     appErrors.ErrPartialBatch.Code,
			"failures": len(batch.Failures),
		})
		return
	}
	response.JSON(c, http.StatusOK, batch)
}
