package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/edu-portal-api/internal/models"
)

type memStore struct {
	token   string
	user    []byte
	loadErr error
	saveErr error
	ops     []string
}

func (m *memStore) Load() (string, []byte, error) {
	m.ops = append(m.ops, "load")
	if m.loadErr != nil {
		return "", nil, m.loadErr
	}
	return m.token, m.user, nil
}

func (m *memStore) Save(token string, user []byte) error {
	m.ops = append(m.ops, "save")
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	m.user = user
	return nil
}

func (m *memStore) Clear() error {
	m.ops = append(m.ops, "clear")
	m.token = ""
	m.user = nil
	return nil
}

type stubAPI struct {
	loginResp    *models.AuthResponse
	loginErr     error
	registerResp *models.AuthResponse
	registerErr  error
}

func (a *stubAPI) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	return a.loginResp, a.loginErr
}

func (a *stubAPI) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return a.registerResp, a.registerErr
}

func userJSON(t *testing.T, view models.UserView) []byte {
	t.Helper()
	raw, err := json.Marshal(view)
	require.NoError(t, err)
	return raw
}

func TestClientStartsLoading(t *testing.T) {
	client := New(&stubAPI{}, &memStore{})
	assert.Equal(t, StateLoading, client.State())
	assert.Nil(t, client.CurrentUser())
	assert.Empty(t, client.Token())
}

func TestBootstrapBothKeysPresent(t *testing.T) {
	store := &memStore{token: "tok", user: userJSON(t, models.UserView{ID: "u1", Email: "a@example.com", Role: models.RoleStudent})}
	client := New(&stubAPI{}, store)

	state := client.Bootstrap()
	assert.Equal(t, StateAuthenticated, state)
	require.NotNil(t, client.CurrentUser())
	assert.Equal(t, "u1", client.CurrentUser().ID)
	assert.Equal(t, "tok", client.Token())
}

func TestBootstrapEmptyStore(t *testing.T) {
	store := &memStore{}
	client := New(&stubAPI{}, store)

	state := client.Bootstrap()
	assert.Equal(t, StateUnauthenticated, state)
	assert.NotContains(t, store.ops, "clear")
}

func TestBootstrapTokenWithoutUserWipes(t *testing.T) {
	store := &memStore{token: "tok"}
	client := New(&stubAPI{}, store)

	state := client.Bootstrap()
	assert.Equal(t, StateUnauthenticated, state)
	assert.Contains(t, store.ops, "clear")
	assert.Empty(t, store.token)
}

func TestBootstrapUserWithoutTokenWipes(t *testing.T) {
	store := &memStore{user: userJSON(t, models.UserView{ID: "u1"})}
	client := New(&stubAPI{}, store)

	state := client.Bootstrap()
	assert.Equal(t, StateUnauthenticated, state)
	assert.Contains(t, store.ops, "clear")
	assert.Nil(t, store.user)
}

func TestBootstrapCorruptUserWipes(t *testing.T) {
	store := &memStore{token: "tok", user: []byte("{not json")}
	client := New(&stubAPI{}, store)

	state := client.Bootstrap()
	assert.Equal(t, StateUnauthenticated, state)
	assert.Contains(t, store.ops, "clear")
}

func TestBootstrapUnreadableStoreWipes(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk gone")}
	client := New(&stubAPI{}, store)

	state := client.Bootstrap()
	assert.Equal(t, StateUnauthenticated, state)
	assert.Contains(t, store.ops, "clear")
}

func TestSignInPersistsBeforeAuthenticating(t *testing.T) {
	store := &memStore{}
	api := &stubAPI{loginResp: &models.AuthResponse{
		Token: "tok",
		User:  models.UserView{ID: "u1", Email: "a@example.com", Role: models.RoleFaculty},
	}}
	client := New(api, store)
	client.Bootstrap()

	require.NoError(t, client.SignIn(context.Background(), "a@example.com", "password"))
	assert.Equal(t, StateAuthenticated, client.State())
	assert.Equal(t, "tok", store.token)
	assert.NotEmpty(t, store.user)
}

func TestSignInFailureStaysUnauthenticated(t *testing.T) {
	store := &memStore{}
	api := &stubAPI{loginErr: errors.New("Invalid credentials")}
	client := New(api, store)
	client.Bootstrap()

	err := client.SignIn(context.Background(), "a@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Empty(t, store.token)
	assert.NotContains(t, store.ops, "save")
}

func TestSignInSaveFailureDoesNotAuthenticate(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	api := &stubAPI{loginResp: &models.AuthResponse{Token: "tok", User: models.UserView{ID: "u1"}}}
	client := New(api, store)
	client.Bootstrap()

	err := client.SignIn(context.Background(), "a@example.com", "password")
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Empty(t, client.Token())
}

func TestSignUpAdoptsSession(t *testing.T) {
	store := &memStore{}
	api := &stubAPI{registerResp: &models.AuthResponse{
		Token: "tok",
		User:  models.UserView{ID: "u2", Email: "new@example.com", Role: models.RoleStudent},
	}}
	client := New(api, store)
	client.Bootstrap()

	require.NoError(t, client.SignUp(context.Background(), models.RegisterRequest{
		Email: "new@example.com", Password: "secret123", FullName: "New", Role: models.RoleStudent,
	}))
	assert.Equal(t, StateAuthenticated, client.State())
	assert.Equal(t, "u2", client.CurrentUser().ID)
}

func TestSignOutOrderAndFinalState(t *testing.T) {
	store := &memStore{token: "tok", user: userJSON(t, models.UserView{ID: "u1"})}
	hookAt := -1
	var client *Client
	client = New(&stubAPI{}, store, WithSignOutHook(func() {
		// must run after memory and storage are already cleared
		hookAt = len(store.ops)
		assert.Equal(t, StateUnauthenticated, client.State())
		assert.Empty(t, store.token)
	}))
	client.Bootstrap()
	require.Equal(t, StateAuthenticated, client.State())

	require.NoError(t, client.SignOut())

	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Nil(t, client.CurrentUser())
	assert.Empty(t, client.Token())
	assert.Empty(t, store.token)
	assert.Nil(t, store.user)
	require.Greater(t, hookAt, 0)
	assert.Equal(t, "clear", store.ops[hookAt-1])
}

func TestSignOutWhenAlreadyUnauthenticated(t *testing.T) {
	store := &memStore{}
	client := New(&stubAPI{}, store)
	client.Bootstrap()

	require.NoError(t, client.SignOut())
	assert.Equal(t, StateUnauthenticated, client.State())
}

func TestAccessorsGatedOnAuthenticated(t *testing.T) {
	store := &memStore{token: "tok", user: userJSON(t, models.UserView{ID: "u1"})}
	client := New(&stubAPI{}, store)
	client.Bootstrap()

	require.NoError(t, client.SignOut())
	assert.Nil(t, client.CurrentUser())
	assert.Empty(t, client.Token())
}
