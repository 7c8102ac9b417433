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

// FacultyHandler exposes faculty roster management endpoints.
type FacultyHandler struct {
	service *service.FacultyService
	metrics *service.MetricsService
}

// NewFacultyHandler creates a new faculty handler.
func NewFacultyHandler(svc *service.FacultyService, metrics *service.MetricsService) *FacultyHandler {
	return &FacultyHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List faculty
// @Description List all faculty members (admin)
// @Tags Faculty
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /faculty [get]
func (h *FacultyHandler) List(c *gin.Context) {
	members, cacheHit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheLookup(cacheHit)

	response.JSON(c, http.StatusOK, members, nil, map[string]interface{}{"cache_hit": cacheHit})
}

// Create godoc
// @Summary Add faculty member
// @Description Create a faculty account with the default starting password (admin)
// @Tags Faculty
// @Accept json
// @Produce json
// @Param payload body service.CreateFacultyRequest true "Faculty payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /faculty [post]
func (h *FacultyHandler) Create(c *gin.Context) {
	var req service.CreateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid faculty payload"))
		return
	}

	member, err := h.service.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, member)
}

// Update godoc
// @Summary Update faculty member
// @Description Patch a faculty member's details (admin)
// @Tags Faculty
// @Accept json
// @Produce json
// @Param id path string true "Faculty ID"
// @Param payload body service.UpdateFacultyRequest true "Faculty fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculty/{id} [put]
func (h *FacultyHandler) Update(c *gin.Context) {
	var req service.UpdateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid faculty payload"))
		return
	}

	member, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, member, nil)
}

// Delete godoc
// @Summary Remove faculty member
// @Description Delete a faculty account (admin)
// @Tags Faculty
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculty/{id} [delete]
func (h *FacultyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export faculty roster
// @Description Download the faculty roster as CSV or PDF (admin)
// @Tags Faculty
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /faculty/export [get]
func (h *FacultyHandler) Export(c *gin.Context) {
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

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=faculty-roster.%s", format))
	c.Data(http.StatusOK, format.ContentType(), data)
}
