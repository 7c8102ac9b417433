package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/edu-portal-api/internal/middleware"
	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/internal/service"
)

type authRepoStub struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
}

func newAuthRepoStub(users ...*models.User) *authRepoStub {
	s := &authRepoStub{usersByEmail: map[string]*models.User{}, usersByID: map[string]*models.User{}}
	for _, u := range users {
		s.usersByEmail[u.Email] = u
		s.usersByID[u.ID] = u
	}
	return s
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) Create(ctx context.Context, user *models.User) error {
	s.usersByEmail[user.Email] = user
	s.usersByID[user.ID] = user
	return nil
}

func (s *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := s.usersByID[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func newAuthHandlerWithRepo(repo *authRepoStub) *AuthHandler {
	svc := service.NewAuthService(repo, validator.New(), zap.NewNop(), nil, service.AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
	})
	return NewAuthHandler(svc)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerWithRepo(newAuthRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"email":"new@example.com","password":"secret123","fullName":"New User","role":"student"}`
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.Token)
	assert.Equal(t, "new@example.com", envelope.Data.User.Email)
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestAuthHandlerRegisterBadRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerWithRepo(newAuthRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"email":"new@example.com","password":"secret123","fullName":"New User","role":"root"}`
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid role. Must be admin, faculty, or student")
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: mustHash(t, "password"), Role: models.RoleStudent}
	handler := newAuthHandlerWithRepo(newAuthRepoStub(user))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"user@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: mustHash(t, "password"), FullName: "User", Role: models.RoleAdmin}
	handler := newAuthHandlerWithRepo(newAuthRepoStub(user))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"user@example.com","password":"password"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.Token)
	assert.Equal(t, models.RoleAdmin, envelope.Data.User.Role)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerWithRepo(newAuthRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Request = req
	c.Set(middleware.ContextUserViewKey, &models.UserView{ID: "u1", Email: "user@example.com", FullName: "User", Role: models.RoleFaculty})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user"`)
	assert.Contains(t, w.Body.String(), "user@example.com")
}

func TestAuthHandlerMeUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerWithRepo(newAuthRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Request = req

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: mustHash(t, "oldpass"), Role: models.RoleStudent}
	repo := newAuthRepoStub(user)
	handler := newAuthHandlerWithRepo(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/change-password", bytes.NewBufferString(`{"old_password":"oldpass","new_password":"newpass123"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.ChangePassword(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpass123")))
}
