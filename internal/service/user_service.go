package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/edu-portal-api/internal/models"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// UpdateProfileRequest carries the caller-editable profile fields. Role and
// email are immutable through this path; absent fields are left untouched.
type UpdateProfileRequest struct {
	FullName   *string  `json:"full_name"`
	AvatarURL  *string  `json:"avatar_url"`
	Phone      *string  `json:"phone"`
	Department *string  `json:"department"`
	RollNo     *string  `json:"roll_no"`
	Class      *string  `json:"class"`
	Year       *string  `json:"year"`
	GPA        *float64 `json:"gpa" validate:"omitempty,gte=0,lte=10"`
	Subjects   []string `json:"subjects"`
	Courses    []string `json:"courses"`
}

// UserService handles account listing and profile maintenance.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger, audit *AuditService) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger, audit: audit}
}

// List returns paginated public user views.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserView, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	views := make([]models.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].PublicView())
	}

	return views, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns the public view of a single user.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserView, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	view := user.PublicView()
	return &view, nil
}

// UpdateProfile patches the profile fields of a user. Authorization (owner
// or admin) is enforced at the route gate.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest, actorID string, meta models.RequestMeta) (*models.UserView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if req.FullName != nil && *req.FullName != "" {
		user.FullName = *req.FullName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Department != nil {
		user.Department = req.Department
	}
	if req.RollNo != nil {
		user.RollNo = req.RollNo
	}
	if req.Class != nil {
		user.Class = req.Class
	}
	if req.Year != nil {
		user.Year = req.Year
	}
	if req.GPA != nil {
		user.GPA = *req.GPA
	}
	if req.Subjects != nil {
		user.Subjects = req.Subjects
	}
	if req.Courses != nil {
		user.Courses = req.Courses
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	payload, _ := json.Marshal(map[string]interface{}{"id": user.ID})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	view := user.PublicView()
	return &view, nil
}

// Delete removes a user record. Admin-only at the route gate.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	payload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "role": user.Role})
	s.audit.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}
