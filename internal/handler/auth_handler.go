package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/edu-portal-api/internal/middleware"
	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/internal/service"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
	"github.com/campushq/edu-portal-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Register godoc
// @Summary Register a new account
// @Description Create a user with one of the portal roles and return a session token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid register payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email and password, returning a fresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's current profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.UserFromContext(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user": user}, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Change password for the current user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ChangePasswordRequest true "Change password"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID, req, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
