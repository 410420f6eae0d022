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

type resultReader interface {
	Result(ctx context.Context, key models.ResultKey) (*models.CalculationResult, error)
}

// ResultHandler serves computed averages.
type ResultHandler struct {
	results   resultReader
	validator *validator.Validate
}

// NewResultHandler constructs handler.
func NewResultHandler(results resultReader, validate *validator.Validate) *ResultHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ResultHandler{results: results, validator: validate}
}

// Student godoc
// @Summary Get a student's computed average
// @Tags Results
// @Produce json
// @Param studentId path string true "Student ID"
// @Param level query string true "MONTHLY, SUBJECT_SEMESTER, OVERALL_SEMESTER, SUBJECT_ANNUAL or OVERALL_ANNUAL"
// @Param subjectId query string false "Subject ID for per-subject levels"
// @Param semester query int false "Semester for semester levels"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/students/{studentId} [get]
func (h *ResultHandler) Student(c *gin.Context) {
	var query models.ResultQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	key, err := query.Key(c.Param("studentId"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid level"))
		return
	}
	result, err := h.results.Result(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
