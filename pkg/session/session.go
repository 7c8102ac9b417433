// Package session implements the client-side session lifecycle: a small
// state machine over a persisted token/user pair. The client is only ever
// authenticated when both halves of the pair are present; partial state is
// treated as logged out and wiped.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/campushq/edu-portal-api/internal/models"
)

// State is the session lifecycle state.
type State string

const (
	// StateLoading is the initial state before Bootstrap has inspected storage.
	StateLoading State = "loading"
	// StateAuthenticated means a token and user snapshot are both held.
	StateAuthenticated State = "authenticated"
	// StateUnauthenticated means no usable session exists.
	StateUnauthenticated State = "unauthenticated"
)

// Store persists the session pair. Save must be atomic: after a crash the
// store holds either the complete previous pair or the complete new one,
// never a token without a user.
type Store interface {
	Load() (token string, user []byte, err error)
	Save(token string, user []byte) error
	Clear() error
}

// API is the subset of the auth endpoints the session client drives.
type API interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
}

// Client is the session state machine. Transitions happen only through
// Bootstrap, SignIn, SignUp and SignOut results.
type Client struct {
	mu        sync.Mutex
	api       API
	store     Store
	logger    *zap.Logger
	onSignOut func()

	state State
	token string
	user  *models.UserView
}

// Option customises a Client.
type Option func(*Client)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSignOutHook registers the navigation hook invoked after sign-out has
// cleared memory and storage, in that order.
func WithSignOutHook(fn func()) Option {
	return func(c *Client) { c.onSignOut = fn }
}

// New returns a Client in the loading state.
func New(api API, store Store, opts ...Option) *Client {
	c := &Client{api: api, store: store, state: StateLoading, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap inspects the persisted store exactly once at startup. The
// client becomes authenticated only when both the token and a parsable
// user snapshot are present; anything else lands in unauthenticated, and
// partial or corrupt state is cleared so it cannot resurface.
func (c *Client) Bootstrap() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, rawUser, err := c.store.Load()
	if err != nil {
		c.logger.Warn("session store unreadable", zap.Error(err))
		c.becomeUnauthenticatedLocked(true)
		return c.state
	}

	if token == "" || len(rawUser) == 0 {
		c.becomeUnauthenticatedLocked(token != "" || len(rawUser) != 0)
		return c.state
	}

	var user models.UserView
	if err := json.Unmarshal(rawUser, &user); err != nil {
		c.logger.Warn("stored user snapshot corrupt", zap.Error(err))
		c.becomeUnauthenticatedLocked(true)
		return c.state
	}

	c.state = StateAuthenticated
	c.token = token
	c.user = &user
	return c.state
}

// SignIn authenticates and, on success, persists the token and user
// snapshot together before entering the authenticated state.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	res, err := c.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return c.adopt(res)
}

// SignUp registers a new account and adopts the returned session.
func (c *Client) SignUp(ctx context.Context, req models.RegisterRequest) error {
	res, err := c.api.Register(ctx, req)
	if err != nil {
		return err
	}
	return c.adopt(res)
}

// SignOut tears the session down in a fixed order: in-memory state first,
// then persisted storage, then the navigation hook. The ordering ensures
// no stale in-memory view can outlive the logout.
func (c *Client) SignOut() error {
	c.mu.Lock()
	c.state = StateUnauthenticated
	c.token = ""
	c.user = nil
	err := c.store.Clear()
	c.mu.Unlock()

	if c.onSignOut != nil {
		c.onSignOut()
	}
	return err
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the held user snapshot, nil unless authenticated.
func (c *Client) CurrentUser() *models.UserView {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return nil
	}
	return c.user
}

// Token returns the held token, empty unless authenticated.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return ""
	}
	return c.token
}

func (c *Client) adopt(res *models.AuthResponse) error {
	rawUser, err := json.Marshal(res.User)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(res.Token, rawUser); err != nil {
		return err
	}

	user := res.User
	c.state = StateAuthenticated
	c.token = res.Token
	c.user = &user
	return nil
}

func (c *Client) becomeUnauthenticatedLocked(wipe bool) {
	c.state = StateUnauthenticated
	c.token = ""
	c.user = nil
	if wipe {
		if err := c.store.Clear(); err != nil {
			c.logger.Warn("failed to clear session store", zap.Error(err))
		}
	}
}
