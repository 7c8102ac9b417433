package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/edu-portal-api/internal/service"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
	"github.com/campushq/edu-portal-api/pkg/export"
	"github.com/campushq/edu-portal-api/pkg/response"
)

// StudentHandler exposes student roster management endpoints.
type StudentHandler struct {
	service *service.StudentService
	metrics *service.MetricsService
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(svc *service.StudentService, metrics *service.MetricsService) *StudentHandler {
	return &StudentHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List students
// @Description List all students (admin)
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	students, cacheHit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheLookup(cacheHit)

	response.JSON(c, http.StatusOK, students, nil, map[string]interface{}{"cache_hit": cacheHit})
}

// Create godoc
// @Summary Enroll student
// @Description Create a student account with the default starting password (admin)
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	student, err := h.service.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Description Patch a student's details (admin)
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}

	student, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Remove student
// @Description Delete a student account (admin)
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export student roster
// @Description Download the student roster as CSV or PDF (admin)
// @Tags Students
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}

	data, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=student-roster.%s", format))
	c.Data(http.StatusOK, format.ContentType(), data)
}
