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
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushq/edu-portal-api/internal/models"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
}

// AuthService provides registration, login and token verification.
// Tokens are stateless HS256 JWTs with a fixed validity window; there is
// no refresh and no server-side revocation.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	audit     *AuditService
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, audit *AuditService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 7 * 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, audit: audit, config: config}
}

// Register creates an account and returns a freshly minted token. The
// stored password is a bcrypt hash; the plaintext never leaves this call.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta models.RequestMeta) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)

	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid role. Must be admin, faculty, or student")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Please provide all required fields")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists with this email")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		FullName:     req.FullName,
		Role:         req.Role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}

	payload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "role": user.Role})
	s.audit.Record(&models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionRegister,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return &models.AuthResponse{Token: token, User: user.PublicView(), ExpiresAt: expiresAt}, nil
}

// Login authenticates credentials and mints a fresh token. Unknown email
// and wrong password produce the identical error so account existence
// cannot be probed.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Please provide email and password")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}

	s.audit.Record(&models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return &models.AuthResponse{Token: token, User: user.PublicView(), ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and validates a token, returning its claims. Pure
// except for clock access; no store lookup happens here.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "Invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "Invalid token")
	}

	return claims, nil
}

// VerifyToken validates the token and rehydrates the current user record.
// The live lookup guarantees a token for a deleted account is useless even
// though the signature is still valid.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.JWTClaims, *models.UserView, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	view := user.PublicView()
	return claims, &view, nil
}

// ChangePassword swaps the caller's password hash after verifying the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest, meta models.RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	s.audit.Record(&models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionPasswordChange,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"changed"}`),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}

func (s *AuthService) generateToken(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
