package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// UserRole is the closed set of portal roles.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleFaculty UserRole = "faculty"
	RoleStudent UserRole = "student"
)

// Valid reports whether the role belongs to the closed enum.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// StringList stores a list column as comma-joined text.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	return strings.Join(l, ","), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if raw == "" {
		*l = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*l = out
	return nil
}

// User is a portal account stored in the users table. The same table backs
// admins, faculty members and students; role-specific profile attributes
// are nullable.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	AvatarURL    *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Department   *string    `db:"department" json:"department,omitempty"`
	RollNo       *string    `db:"roll_no" json:"roll_no,omitempty"`
	Class        *string    `db:"class" json:"class,omitempty"`
	Year         *string    `db:"year" json:"year,omitempty"`
	GPA          float64    `db:"gpa" json:"gpa"`
	Subjects     StringList `db:"subjects" json:"subjects,omitempty"`
	Courses      StringList `db:"courses" json:"courses,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicView strips the credential material from a user record. Every
// payload that leaves the service goes through this.
func (u *User) PublicView() UserView {
	return UserView{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Role:       u.Role,
		AvatarURL:  u.AvatarURL,
		Phone:      u.Phone,
		Department: u.Department,
		RollNo:     u.RollNo,
		Class:      u.Class,
		Year:       u.Year,
		GPA:        u.GPA,
		Subjects:   u.Subjects,
		Courses:    u.Courses,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// UserView is the public projection of a user record. It never carries
// the password hash.
type UserView struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       UserRole   `json:"role"`
	AvatarURL  *string    `json:"avatar_url,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Department *string    `json:"department,omitempty"`
	RollNo     *string    `json:"roll_no,omitempty"`
	Class      *string    `json:"class,omitempty"`
	Year       *string    `json:"year,omitempty"`
	GPA        float64    `json:"gpa"`
	Subjects   StringList `json:"subjects,omitempty"`
	Courses    StringList `json:"courses,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
