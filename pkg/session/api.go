package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campushq/edu-portal-api/internal/models"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
)

// HTTPAPI talks to the portal's auth endpoints over HTTP.
type HTTPAPI struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAPI builds an API client for the given base URL, e.g.
// "http://localhost:8080/api/v1".
func NewHTTPAPI(baseURL string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPAPI{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// Login calls POST /auth/login.
func (a *HTTPAPI) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	payload := models.LoginRequest{Email: email, Password: password}
	return a.postAuth(ctx, "/auth/login", payload)
}

// Register calls POST /auth/register.
func (a *HTTPAPI) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return a.postAuth(ctx, "/auth/register", req)
}

// Me calls GET /auth/me with the given token and returns the current user.
func (a *HTTPAPI) Me(ctx context.Context, token string) (*models.UserView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	env, err := a.do(req)
	if err != nil {
		return nil, err
	}

	var body struct {
		User models.UserView `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		return nil, fmt.Errorf("decode user payload: %w", err)
	}
	return &body.User, nil
}

func (a *HTTPAPI) postAuth(ctx context.Context, path string, payload interface{}) (*models.AuthResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := a.do(req)
	if err != nil {
		return nil, err
	}

	var res models.AuthResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return nil, fmt.Errorf("decode auth payload: %w", err)
	}
	return &res, nil
}

func (a *HTTPAPI) do(req *http.Request) (*envelope, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return nil, env.Error
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return &env, nil
}
