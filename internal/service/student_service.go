package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
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

const defaultStudentPassword = "Student@123"

const studentCacheKey = "roster:students"

// CreateStudentRequest is the admin payload for enrolling a student.
type CreateStudentRequest struct {
	FullName string  `json:"fullName" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	RollNo   string  `json:"rollNo"`
	Class    string  `json:"class"`
	Year     string  `json:"year"`
	GPA      float64 `json:"gpa" validate:"gte=0,lte=10"`
}

// UpdateStudentRequest patches a student; absent fields are kept.
type UpdateStudentRequest struct {
	FullName string   `json:"fullName"`
	RollNo   string   `json:"rollNo"`
	Class    *string  `json:"class"`
	Year     string   `json:"year"`
	GPA      *float64 `json:"gpa" validate:"omitempty,gte=0,lte=10"`
}

// StudentService manages the student roster (users with the student role).
type StudentService struct {
	repo      rosterRepository
	cache     rosterCache
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
	cacheTTL  time.Duration
}

// NewStudentService creates a StudentService.
func NewStudentService(repo rosterRepository, cache rosterCache, validate *validator.Validate, logger *zap.Logger, audit *AuditService, cacheTTL time.Duration) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger, audit: audit, cacheTTL: cacheTTL}
}

// List returns all students, served from cache when possible.
func (s *StudentService) List(ctx context.Context) ([]models.UserView, bool, error) {
	if s.cache != nil {
		var cached []models.UserView
		if err := s.cache.Get(ctx, studentCacheKey, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("student cache read failed", zap.Error(err))
		}
	}

	users, err := s.repo.ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	views := make([]models.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].PublicView())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, studentCacheKey, views, s.cacheTTL); err != nil {
			s.logger.Warn("student cache write failed", zap.Error(err))
		}
	}

	return views, false, nil
}

// Create enrolls a student with the default starting password.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, actorID string, meta models.RequestMeta) (*models.UserView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	email := normalizeEmail(req.Email)

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Student with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(defaultStudentPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(passwordHash),
		FullName:     req.FullName,
		Role:         models.RoleStudent,
		GPA:          req.GPA,
	}
	if req.RollNo != "" {
		user.RollNo = &req.RollNo
	}
	if req.Class != "" {
		user.Class = &req.Class
	}
	if req.Year != "" {
		user.Year = &req.Year
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.invalidate(ctx)
	s.recordAudit(actorID, models.AuditActionRosterCreate, user, meta)

	view := user.PublicView()
	return &view, nil
}

// Update patches an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, actorID string, meta models.RequestMeta) (*models.UserView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	user, err := s.loadStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.RollNo != "" {
		user.RollNo = &req.RollNo
	}
	if req.Class != nil {
		user.Class = req.Class
	}
	if req.Year != "" {
		user.Year = &req.Year
	}
	if req.GPA != nil {
		user.GPA = *req.GPA
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidate(ctx)
	s.recordAudit(actorID, models.AuditActionRosterUpdate, user, meta)

	view := user.PublicView()
	return &view, nil
}

// Delete removes a student entirely.
func (s *StudentService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	user, err := s.loadStudent(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	s.invalidate(ctx)
	s.recordAudit(actorID, models.AuditActionRosterDelete, user, meta)

	return nil
}

// Export renders the student roster in the requested format.
func (s *StudentService) Export(ctx context.Context, format export.Format) ([]byte, error) {
	users, err := s.repo.ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	roster := export.Roster{
		Title:   "Student Roster",
		Headers: []string{"Name", "Email", "Roll No", "Class", "Year", "GPA"},
	}
	for i := range users {
		u := &users[i]
		roster.Rows = append(roster.Rows, []string{
			u.FullName,
			u.Email,
			strOrEmpty(u.RollNo),
			strOrEmpty(u.Class),
			strOrEmpty(u.Year),
			strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", u.GPA), "0"), "."),
		})
	}

	return export.Render(format, roster)
}

func (s *StudentService) loadStudent(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
	}
	return user, nil
}

func (s *StudentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, studentCacheKey); err != nil {
		s.logger.Warn("student cache invalidation failed", zap.Error(err))
	}
}

func (s *StudentService) recordAudit(actorID, action string, user *models.User, meta models.RequestMeta) {
	payload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "role": user.Role})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "students",
		ResourceID: &user.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
}
