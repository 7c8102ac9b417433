package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/edu-portal-api/internal/models"
)

const userColumns = "id, email, password_hash, full_name, role, avatar_url, phone, department, roll_no, class, year, gpa, subjects, courses, created_at, updated_at"

// UserRepository provides database access for portal accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address. Lookup is case-insensitive;
// emails are stored lowercased but legacy rows may predate normalisation.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, avatar_url, phone, department, roll_no, class, year, gpa, subjects, courses, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :full_name, :role, :avatar_url, :phone, :department, :roll_no, :class, :year, :gpa, :subjects, :courses, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update persists the mutable profile fields of a user. Email and role are
// not touched here; role is immutable and email changes go through Create.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, avatar_url = :avatar_url, phone = :phone, department = :department, roll_no = :roll_no, class = :class, year = :year, gpa = :gpa, subjects = :subjects, courses = :courses, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes the user record. Administrative roster management is the
// only caller; ordinary accounts are never hard-deleted.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// List returns users matching the filter with the total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"full_name":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// ListByRole returns every user carrying the given role, ordered by name.
// Roster listings (faculty/student management) use this unfiltered view.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE role = $1 ORDER BY full_name ASC", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
