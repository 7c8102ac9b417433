package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/internal/service"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
	"github.com/campushq/edu-portal-api/pkg/response"
)

// UserHandler handles account listing and profile endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering (admin)
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Description Get a user's public profile (admin or self)
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateProfile godoc
// @Summary Update profile
// @Description Patch profile fields (admin or self); role and email are immutable
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Delete user
// @Description Remove a user account (admin)
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
