package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/taskboard/app"
	"github.com/upb/taskboard/config"
	"github.com/upb/taskboard/googleauth"
	"github.com/upb/taskboard/middleware"
	"github.com/upb/taskboard/models"
	"github.com/upb/taskboard/repositories"
	"github.com/upb/taskboard/routes"
	"github.com/upb/taskboard/services"
	"github.com/upb/taskboard/session"
	"go.uber.org/zap"
)

// fakeVerifier returns scripted claims instead of calling Google
type fakeVerifier struct {
	claims *googleauth.Claims
	err    error
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*googleauth.Claims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || (user.GoogleSub != "" && u.GoogleSub == user.GoogleSub) {
			return repositories.ErrDuplicate
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memUserRepo) GetByGoogleSub(ctx context.Context, googleSub string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.GoogleSub == googleSub {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memUserRepo) BindGoogleSub(ctx context.Context, id uuid.UUID, googleSub, avatar string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.GoogleSub != "" {
		return repositories.ErrNotFound
	}
	u.GoogleSub = googleSub
	if avatar != "" {
		u.Avatar = avatar
	}
	return nil
}

func (r *memUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, avatar string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Name = name
	u.Avatar = avatar
	return nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
}

func (r *memTaskRepo) Create(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *task
	r.tasks[task.ID] = &clone
	return nil
}

func (r *memTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		clone := *task
		return &clone, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memTaskRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Task
	for _, task := range r.tasks {
		if task.UserID == userID {
			clone := *task
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memTaskRepo) Update(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[task.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	*stored = *task
	return nil
}

func (r *memTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// testEnv wires the full router against in-memory storage and a scripted
// identity verifier.
type testEnv struct {
	router   http.Handler
	deps     *app.Dependencies
	verifier *fakeVerifier
	users    *memUserRepo
	tasks    *memTaskRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Environment: "development",
		LogLevel:    "info",
		Session: config.SessionConfig{
			Secret:      "handler-test-secret",
			TTL:         time.Hour,
			CookieName:  "token",
			DefaultRole: "user",
		},
		Frontend: config.FrontendConfig{Origin: "http://localhost:3001"},
	}

	users := newMemUserRepo()
	tasks := newMemTaskRepo()
	verifier := &fakeVerifier{}

	validator := session.NewValidator(cfg.Session)
	deps := &app.Dependencies{
		Config:           cfg,
		Logger:           logger,
		UserRepo:         users,
		TaskRepo:         tasks,
		Verifier:         verifier,
		Sessions:         session.NewIssuer(cfg.Session, false),
		SessionValidator: validator,
		AuthMiddleware:   middleware.NewAuthMiddleware(validator, cfg.Session.CookieName, logger),
		Accounts:         services.NewAccountService(users, models.RoleUser, logger),
		Tasks:            services.NewTaskService(tasks, logger),
	}

	return &testEnv{
		router:   routes.SetupRoutes(deps),
		deps:     deps,
		verifier: verifier,
		users:    users,
		tasks:    tasks,
	}
}

// login creates an account and returns a valid session token for it
func (e *testEnv) login(t *testing.T, sub, email string) (*models.User, string) {
	t.Helper()
	user := models.NewUser(sub, email, "Test User", "", models.RoleUser)
	require.NoError(t, e.users.Create(context.Background(), user))

	token, err := e.deps.Sessions.Issue(user.ID)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func sessionCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func taskBody(title string) map[string]interface{} {
	return map[string]interface{}{
		"title":       title,
		"description": "A description long enough to pass validation",
		"deadline":    time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"assignedTo":  "alice",
	}
}

func TestGoogleAuthEndpoint(t *testing.T) {
	t.Run("valid credential signs in and sets the session cookie", func(t *testing.T) {
		env := newTestEnv(t)
		env.verifier.claims = &googleauth.Claims{
			Sub:   "ext-1",
			Email: "a@x.com",
			Name:  "A",
		}

		w := env.do(t, http.MethodPost, "/api/v1/auth/google", "",
			map[string]string{"credential": "google-id-token"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool   `json:"success"`
			Token   string `json:"token"`
			User    struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
				Role  string `json:"role"`
			} `json:"user"`
		}
		decodeBody(t, w, &resp)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "a@x.com", resp.User.Email)
		assert.Equal(t, "user", resp.User.Role)
		assert.NotContains(t, w.Body.String(), "ext-1", "external subject must not leak")

		cookie := sessionCookie(w, "token")
		require.NotNil(t, cookie)
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)

		userID, err := env.deps.SessionValidator.Validate(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, userID.String())
	})

	t.Run("missing credential is a bad request", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/api/v1/auth/google", "", map[string]string{})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Google token is required")
	})

	t.Run("failed verification is unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		env.verifier.err = googleauth.ErrInvalidToken

		w := env.do(t, http.MethodPost, "/api/v1/auth/google", "",
			map[string]string{"credential": "bad-token"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Authentication failed")
		assert.Nil(t, sessionCookie(w, "token"))
	})

	t.Run("incomplete claims are a bad request", func(t *testing.T) {
		env := newTestEnv(t)
		env.verifier.err = fmt.Errorf("%w: email", googleauth.ErrMissingClaim)

		w := env.do(t, http.MethodPost, "/api/v1/auth/google", "",
			map[string]string{"credential": "partial-token"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid Google payload")
	})
}

func TestMeEndpoint(t *testing.T) {
	t.Run("returns the current account", func(t *testing.T) {
		env := newTestEnv(t)
		user, token := env.login(t, "ext-1", "a@x.com")

		w := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"data"`
		}
		decodeBody(t, w, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, user.ID.String(), resp.Data.ID)
		assert.Equal(t, "a@x.com", resp.Data.Email)
		assert.NotContains(t, w.Body.String(), "ext-1")
	})

	t.Run("session cookie works as well as the header", func(t *testing.T) {
		env := newTestEnv(t)
		user, token := env.login(t, "ext-1", "a@x.com")

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), user.ID.String())
	})

	t.Run("no session is unauthorized", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("session for a deleted account is not found", func(t *testing.T) {
		env := newTestEnv(t)
		token, err := env.deps.Sessions.Issue(uuid.New())
		require.NoError(t, err)

		w := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.login(t, "ext-1", "a@x.com")

	w := env.do(t, http.MethodGet, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookie := sessionCookie(w, "token")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}

func TestTaskEndpoints(t *testing.T) {
	t.Run("all task routes require a session", func(t *testing.T) {
		env := newTestEnv(t)

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/tasks"},
			{http.MethodPost, "/api/v1/tasks"},
			{http.MethodGet, "/api/v1/tasks/" + uuid.NewString()},
			{http.MethodPut, "/api/v1/tasks/" + uuid.NewString()},
			{http.MethodDelete, "/api/v1/tasks/" + uuid.NewString()},
		} {
			w := env.do(t, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
		}
	})

	t.Run("create and fetch round trip", func(t *testing.T) {
		env := newTestEnv(t)
		user, token := env.login(t, "ext-1", "a@x.com")

		w := env.do(t, http.MethodPost, "/api/v1/tasks", token, taskBody("Write report"))
		require.Equal(t, http.StatusCreated, w.Code)

		var created struct {
			Success bool `json:"success"`
			Data    struct {
				ID    string `json:"id"`
				User  string `json:"user"`
				Title string `json:"title"`
			} `json:"data"`
		}
		decodeBody(t, w, &created)
		assert.True(t, created.Success)
		assert.Equal(t, user.ID.String(), created.Data.User)
		assert.Equal(t, "Write report", created.Data.Title)

		w = env.do(t, http.MethodGet, "/api/v1/tasks/"+created.Data.ID, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Write report")
	})

	t.Run("invalid input returns field details", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.login(t, "ext-1", "a@x.com")

		body := taskBody("ab")
		body["description"] = "short"
		w := env.do(t, http.MethodPost, "/api/v1/tasks", token, body)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp struct {
			Success bool                   `json:"success"`
			Details map[string]interface{} `json:"details"`
		}
		decodeBody(t, w, &resp)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Details, "Title")
		assert.Contains(t, resp.Details, "Description")
	})

	t.Run("list returns only own tasks with a count", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.login(t, "ext-1", "a@x.com")
		other, _ := env.login(t, "ext-2", "b@x.com")

		for i := 0; i < 2; i++ {
			w := env.do(t, http.MethodPost, "/api/v1/tasks", token, taskBody(fmt.Sprintf("Task %d", i)))
			require.Equal(t, http.StatusCreated, w.Code)
		}
		otherTask := models.NewTask(other.ID, "Other's task", "Belongs to someone else entirely",
			time.Now().Add(time.Hour), "bob", models.StatusPending)
		require.NoError(t, env.tasks.Create(context.Background(), otherTask))

		w := env.do(t, http.MethodGet, "/api/v1/tasks", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool              `json:"success"`
			Count   int               `json:"count"`
			Data    []json.RawMessage `json:"data"`
		}
		decodeBody(t, w, &resp)
		assert.Equal(t, 2, resp.Count)
		assert.Len(t, resp.Data, 2)
		assert.NotContains(t, w.Body.String(), "Other's task")
	})

	t.Run("another account's task is forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		owner, _ := env.login(t, "ext-1", "a@x.com")
		_, strangerToken := env.login(t, "ext-2", "b@x.com")

		task := models.NewTask(owner.ID, "Private task", "Visible only to the owning account",
			time.Now().Add(time.Hour), "alice", models.StatusPending)
		require.NoError(t, env.tasks.Create(context.Background(), task))

		for _, tc := range []struct {
			method string
			body   interface{}
		}{
			{http.MethodGet, nil},
			{http.MethodPut, taskBody("Hijack attempt!")},
			{http.MethodDelete, nil},
		} {
			w := env.do(t, tc.method, "/api/v1/tasks/"+task.ID.String(), strangerToken, tc.body)
			assert.Equal(t, http.StatusForbidden, w.Code, tc.method)
		}
	})

	t.Run("missing task is not found even for strangers", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.login(t, "ext-1", "a@x.com")

		w := env.do(t, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed task id is not found", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.login(t, "ext-1", "a@x.com")

		w := env.do(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update changes fields but never the owner", func(t *testing.T) {
		env := newTestEnv(t)
		user, token := env.login(t, "ext-1", "a@x.com")

		w := env.do(t, http.MethodPost, "/api/v1/tasks", token, taskBody("Initial title"))
		require.Equal(t, http.StatusCreated, w.Code)
		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		decodeBody(t, w, &created)

		body := taskBody("Updated title")
		body["status"] = "done"
		w = env.do(t, http.MethodPut, "/api/v1/tasks/"+created.Data.ID, token, body)
		require.Equal(t, http.StatusOK, w.Code)

		var updated struct {
			Data struct {
				User   string `json:"user"`
				Title  string `json:"title"`
				Status string `json:"status"`
			} `json:"data"`
		}
		decodeBody(t, w, &updated)
		assert.Equal(t, "Updated title", updated.Data.Title)
		assert.Equal(t, "done", updated.Data.Status)
		assert.Equal(t, user.ID.String(), updated.Data.User)
	})

	t.Run("delete removes the task", func(t *testing.T) {
		env := newTestEnv(t)
		_, token := env.login(t, "ext-1", "a@x.com")

		w := env.do(t, http.MethodPost, "/api/v1/tasks", token, taskBody("Short lived"))
		require.Equal(t, http.StatusCreated, w.Code)
		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		decodeBody(t, w, &created)

		w = env.do(t, http.MethodDelete, "/api/v1/tasks/"+created.Data.ID, token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/api/v1/tasks/"+created.Data.ID, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNotFoundRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "endpoint not found")
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// No database wired in the test environment
	w = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
