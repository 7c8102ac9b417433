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

	"github.com/campushq/edu-portal-api/internal/middleware"
	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/internal/service"
)

type rosterRepoStub struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	deletedIDs   []string
}

func newRosterRepoStub(users ...*models.User) *rosterRepoStub {
	s := &rosterRepoStub{usersByEmail: map[string]*models.User{}, usersByID: map[string]*models.User{}}
	for _, u := range users {
		s.usersByEmail[u.Email] = u
		s.usersByID[u.ID] = u
	}
	return s
}

func (s *rosterRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *rosterRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *rosterRepoStub) Create(ctx context.Context, user *models.User) error {
	s.usersByEmail[user.Email] = user
	s.usersByID[user.ID] = user
	return nil
}

func (s *rosterRepoStub) Update(ctx context.Context, user *models.User) error {
	return nil
}

func (s *rosterRepoStub) Delete(ctx context.Context, id string) error {
	s.deletedIDs = append(s.deletedIDs, id)
	delete(s.usersByID, id)
	return nil
}

func (s *rosterRepoStub) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var out []models.User
	for _, u := range s.usersByID {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func newFacultyHandlerWithRepo(repo *rosterRepoStub) *FacultyHandler {
	svc := service.NewFacultyService(repo, nil, validator.New(), zap.NewNop(), nil, time.Minute)
	return NewFacultyHandler(svc, service.NewMetricsService())
}

func adminContext(w *httptest.ResponseRecorder) (*gin.Context, func(req *http.Request)) {
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	return c, func(req *http.Request) { c.Request = req }
}

func TestFacultyHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFacultyHandlerWithRepo(newRosterRepoStub(
		&models.User{ID: "f1", Email: "ada@example.com", FullName: "Ada", Role: models.RoleFaculty},
	))

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/faculty", nil)
	setReq(req)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.UserView      `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "ada@example.com", envelope.Data[0].Email)
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestFacultyHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newRosterRepoStub()
	handler := newFacultyHandlerWithRepo(repo)

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	body := `{"fullName":"Dr. Ada","email":"ada@example.com","department":"CS"}`
	req, _ := http.NewRequest(http.MethodPost, "/faculty", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	setReq(req)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestFacultyHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFacultyHandlerWithRepo(newRosterRepoStub(
		&models.User{ID: "f1", Email: "ada@example.com", Role: models.RoleFaculty},
	))

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/faculty", bytes.NewBufferString(`{"fullName":"Dr. Ada","email":"ada@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	setReq(req)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Faculty member with this email already exists")
}

func TestFacultyHandlerUpdateNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFacultyHandlerWithRepo(newRosterRepoStub())

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/faculty/missing", bytes.NewBufferString(`{"fullName":"X"}`))
	req.Header.Set("Content-Type", "application/json")
	setReq(req)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Update(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Faculty member not found")
}

func TestFacultyHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newRosterRepoStub(&models.User{ID: "f1", Email: "ada@example.com", Role: models.RoleFaculty})
	handler := newFacultyHandlerWithRepo(repo)

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/faculty/f1", nil)
	setReq(req)
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.Delete(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"f1"}, repo.deletedIDs)
}

func TestFacultyHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFacultyHandlerWithRepo(newRosterRepoStub(
		&models.User{ID: "f1", Email: "ada@example.com", FullName: "Ada", Role: models.RoleFaculty},
	))

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/faculty/export?format=csv", nil)
	setReq(req)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "faculty-roster.csv")
	assert.Contains(t, w.Body.String(), "ada@example.com")
}

func TestFacultyHandlerExportBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFacultyHandlerWithRepo(newRosterRepoStub())

	w := httptest.NewRecorder()
	c, setReq := adminContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/faculty/export?format=xlsx", nil)
	setReq(req)

	handler.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
