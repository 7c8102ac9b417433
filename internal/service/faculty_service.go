package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/edu-portal-api/internal/models"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
	"github.com/campushq/edu-portal-api/pkg/export"
)

// Accounts created through roster management start with a well-known
// password the member is expected to change on first login.
const defaultFacultyPassword = "Faculty@123"

const facultyCacheKey = "roster:faculty"

type rosterRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CreateFacultyRequest is the admin payload for adding a faculty member.
type CreateFacultyRequest struct {
	FullName   string   `json:"fullName" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Phone      string   `json:"phone"`
	Department string   `json:"department"`
	Courses    []string `json:"courses"`
}

// UpdateFacultyRequest patches a faculty member; empty fields are kept.
type UpdateFacultyRequest struct {
	FullName   string   `json:"fullName"`
	Phone      string   `json:"phone"`
	Department string   `json:"department"`
	Courses    []string `json:"courses"`
}

// FacultyService manages the faculty roster (users with the faculty role).
type FacultyService struct {
	repo      rosterRepository
	cache     rosterCache
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
	cacheTTL  time.Duration
}

// NewFacultyService creates a FacultyService.
func NewFacultyService(repo rosterRepository, cache rosterCache, validate *validator.Validate, logger *zap.Logger, audit *AuditService, cacheTTL time.Duration) *FacultyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FacultyService{repo: repo, cache: cache, validator: validate, logger: logger, audit: audit, cacheTTL: cacheTTL}
}

// List returns all faculty members, served from cache when possible. The
// second return value reports a cache hit.
func (s *FacultyService) List(ctx context.Context) ([]models.UserView, bool, error) {
	if s.cache != nil {
		var cached []models.UserView
		if err := s.cache.Get(ctx, facultyCacheKey, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("faculty cache read failed", zap.Error(err))
		}
	}

	users, err := s.repo.ListByRole(ctx, models.RoleFaculty)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}

	views := make([]models.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].PublicView())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, facultyCacheKey, views, s.cacheTTL); err != nil {
			s.logger.Warn("faculty cache write failed", zap.Error(err))
		}
	}

	return views, false, nil
}

// Create adds a faculty member with the default starting password.
func (s *FacultyService) Create(ctx context.Context, req CreateFacultyRequest, actorID string, meta models.RequestMeta) (*models.UserView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	email := normalizeEmail(req.Email)

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Faculty member with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(defaultFacultyPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(passwordHash),
		FullName:     req.FullName,
		Role:         models.RoleFaculty,
		Courses:      cleanList(req.Courses),
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if req.Department != "" {
		user.Department = &req.Department
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty member")
	}

	s.invalidate(ctx)
	s.recordAudit(actorID, models.AuditActionRosterCreate, user, meta)

	view := user.PublicView()
	return &view, nil
}

// Update patches an existing faculty member.
func (s *FacultyService) Update(ctx context.Context, id string, req UpdateFacultyRequest, actorID string, meta models.RequestMeta) (*models.UserView, error) {
	user, err := s.loadFaculty(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if req.Department != "" {
		user.Department = &req.Department
	}
	if req.Courses != nil {
		user.Courses = cleanList(req.Courses)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty member")
	}

	s.invalidate(ctx)
	s.recordAudit(actorID, models.AuditActionRosterUpdate, user, meta)

	view := user.PublicView()
	return &view, nil
}

// Delete removes a faculty member entirely.
func (s *FacultyService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	user, err := s.loadFaculty(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete faculty member")
	}

	s.invalidate(ctx)
	s.recordAudit(actorID, models.AuditActionRosterDelete, user, meta)

	return nil
}

// Export renders the faculty roster in the requested format.
func (s *FacultyService) Export(ctx context.Context, format export.Format) ([]byte, error) {
	users, err := s.repo.ListByRole(ctx, models.RoleFaculty)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}

	roster := export.Roster{
		Title:   "Faculty Roster",
		Headers: []string{"Name", "Email", "Phone", "Department", "Courses"},
	}
	for i := range users {
		u := &users[i]
		roster.Rows = append(roster.Rows, []string{
			u.FullName,
			u.Email,
			strOrEmpty(u.Phone),
			strOrEmpty(u.Department),
			strings.Join(u.Courses, "; "),
		})
	}

	return export.Render(format, roster)
}

func (s *FacultyService) loadFaculty(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Faculty member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty member")
	}
	if user.Role != models.RoleFaculty {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Faculty member not found")
	}
	return user, nil
}

func (s *FacultyService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, facultyCacheKey); err != nil {
		s.logger.Warn("faculty cache invalidation failed", zap.Error(err))
	}
}

func (s *FacultyService) recordAudit(actorID, action string, user *models.User, meta models.RequestMeta) {
	payload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "role": user.Role})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "faculty",
		ResourceID: &user.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
}

func cleanList(values []string) models.StringList {
	out := make(models.StringList, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
