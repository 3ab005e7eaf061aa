package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/schema"
	appErrors "github.com/clinsg/medexam-api/pkg/errors"
	"github.com/clinsg/medexam-api/pkg/response"
)

// SchemaHandler serves the exam-type form catalog so clients render forms
// from the same definitions the server validates against.
type SchemaHandler struct{}

// NewSchemaHandler constructs the handler.
func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

// List godoc
// @Summary List supported exam types
// @Tags Schemas
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schemas [get]
func (h *SchemaHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, schema.ExamTypes(), nil)
}

// Get godoc
// @Summary Get the form schema for an exam type
// @Tags Schemas
// @Produce json
// @Param examType path string true "Exam type"
// @Success 200 {object} response.Envelope
// @Router /schemas/{examType} [get]
func (h *SchemaHandler) Get(c *gin.Context) {
	examType := models.ExamType(strings.ToUpper(strings.TrimSpace(c.Param("examType"))))
	spec, ok := schema.For(examType)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown exam type"))
		return
	}
	response.JSON(c, http.StatusOK, spec, nil)
}
