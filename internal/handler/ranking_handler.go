package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grade-engine/internal/models"
	"github.com/noah-isme/sma-grade-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grade-engine/pkg/errors"
	"github.com/noah-isme/sma-grade-engine/pkg/export"
	"github.com/noah-isme/sma-grade-engine/pkg/response"
)

type rankingService interface {
	Get(ctx context.Context, scope models.RankingScope) (*models.Ranking, error)
	Export(ctx context.Context, scope models.RankingScope, format export.Format) (*service.RankingExport, error)
}

// RankingHandler serves class rankings.
type RankingHandler struct {
	rankings rankingService
}

// NewRankingHandler constructs handler.
func NewRankingHandler(rankings rankingService) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

// Class godoc
// @Summary Get a class ranking
// @Tags Rankings
// @Produce json
// @Param classId path string true "Class ID"
// @Param subjectId query string false "Subject ID; omit for the overall ranking"
// @Param semester query int false "Semester; omit for the annual ranking"
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /rankings/classes/{classId} [get]
func (h *RankingHandler) Class(c *gin.Context) {
	scope, ok := bindRankingScope(c)
	if !ok {
		return
	}
	ranking, err := h.rankings.Get(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking, map[string]interface{}{"count": len(ranking.Entries)})
}

// Export godoc
// @Summary Export a class ranking
// @Tags Rankings
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param subjectId query string false "Subject ID"
// @Param semester query int false "Semester"
// @Param academicYear query string true "Academic year"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /rankings/classes/{classId}/export [get]
func (h *RankingHandler) Export(c *gin.Context) {
	scope, ok := bindRankingScope(c)
	if !ok {
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	file, err := h.rankings.Export(c.Request.Context(), scope, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

func bindRankingScope(c *gin.Context) (models.RankingScope, bool) {
	var scope models.RankingScope
	if err := c.ShouldBindQuery(&scope); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return scope, false
	}
	scope.ClassID = c.Param("classId")
	return scope, true
}
