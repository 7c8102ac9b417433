package middleware

import (
	"context"
	"database/sql"
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
	return nil
}

func newAuthFixture(t *testing.T) (*service.AuthService, *authRepoStub, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), FullName: "User", Role: models.RoleFaculty}
	repo := newAuthRepoStub(user)
	svc := service.NewAuthService(repo, validator.New(), zap.NewNop(), nil, service.AuthConfig{TokenSecret: "secret", TokenExpiry: time.Hour})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"}, models.RequestMeta{})
	require.NoError(t, err)
	return svc, repo, res.Token
}

func authTestContext(t *testing.T, header string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c.Request = req
	return c, w
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	svc, _, token := newAuthFixture(t)
	c, w := authTestContext(t, "Bearer "+token)

	Auth(svc, service.NewMetricsService())(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, w.Code)

	claims := ClaimsFromContext(c)
	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.UserID)

	user := UserFromContext(c)
	require.NotNil(t, user)
	assert.Equal(t, "user@example.com", user.Email)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	c, w := authTestContext(t, "")

	Auth(svc, service.NewMetricsService())(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "No token provided")
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	svc, _, token := newAuthFixture(t)
	c, w := authTestContext(t, "Token "+token)

	Auth(svc, service.NewMetricsService())(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid authorization header")
}

func TestAuthMiddlewareGarbageToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	c, w := authTestContext(t, "Bearer not-a-token")

	Auth(svc, service.NewMetricsService())(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareDeletedUser(t *testing.T) {
	svc, repo, token := newAuthFixture(t)
	delete(repo.usersByID, "u1")
	c, w := authTestContext(t, "Bearer "+token)

	Auth(svc, service.NewMetricsService())(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "User not found")
}
