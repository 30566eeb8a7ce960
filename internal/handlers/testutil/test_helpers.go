package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/taskpad/internal/api"
	"github.com/charlesng35/taskpad/internal/app"
	iauth "github.com/charlesng35/taskpad/internal/auth"
	sharedtestutil "github.com/charlesng35/taskpad/internal/database/testutil"
	"github.com/charlesng35/taskpad/internal/middleware"
	"github.com/charlesng35/taskpad/internal/services"
	"github.com/charlesng35/taskpad/internal/store/gormstore"
	"github.com/charlesng35/taskpad/pkg/mail"
	"github.com/charlesng35/taskpad/pkg/response"
)

var codePattern = regexp.MustCompile(`code is: (\d{4})`)

// Outbox is a mail.Mailer that keeps every message in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (o *Outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Fail makes subsequent sends return err; nil restores delivery.
func (o *Outbox) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Messages returns a copy of the delivered messages addressed to email.
func (o *Outbox) Messages(email string) []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []mail.Message
	for _, msg := range o.messages {
		for _, to := range msg.To {
			if strings.EqualFold(to, email) {
				out = append(out, msg)
			}
		}
	}
	return out
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Accounts   *services.AccountService
	Outbox     *Outbox
	dispatcher *services.Dispatcher
}

// EnvOption customises the test environment configuration.
type EnvOption func(*app.Config)

// WithRateLimit overrides the auth rate limit.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	backend := gormstore.New(db)

	cfg := &app.Config{
		Server: app.ServerConfig{
			CORSOrigins: []string{"*"},
			RateLimit:   app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Password: app.PasswordSettings{BcryptCost: bcrypt.MinCost},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	hasher := cfg.Auth.PasswordHasher()
	outbox := &Outbox{}
	dispatcher := services.NewDispatcher(5 * time.Second)

	accounts, err := services.NewAccountService(
		backend.Accounts(),
		backend.Tasks(),
		hasher,
		iauth.NewOTPEngine(hasher, nil),
		jwtSvc,
		services.NewMailNotifier(outbox, services.WithAppName("Taskpad")),
		services.WithDispatcher(dispatcher),
	)
	require.NoError(t, err)

	tasks, err := services.NewTaskService(backend.Tasks(), nil)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:    cfg,
		Store:     backend,
		Accounts:  accounts,
		Tasks:     tasks,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	env := &Env{
		T:          t,
		DB:         db,
		Router:     router,
		JWT:        jwtSvc,
		Accounts:   accounts,
		Outbox:     outbox,
		dispatcher: dispatcher,
	}
	t.Cleanup(env.Drain)
	return env
}

// Drain waits for background emails to finish.
func (e *Env) Drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(e.T, e.dispatcher.Wait(ctx))
}

// LastCode returns the most recent one-time code mailed to email.
func (e *Env) LastCode(email string) string {
	e.T.Helper()
	e.Drain()

	messages := e.Outbox.Messages(email)
	for i := len(messages) - 1; i >= 0; i-- {
		if m := codePattern.FindStringSubmatch(messages[i].Body); m != nil {
			return m[1]
		}
	}
	e.T.Fatalf("no code mailed to %s", email)
	return ""
}

// UserPayload captures the user fields returned from session endpoints.
type UserPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session mirrors the verify-email and login response payload.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserPayload `json:"user"`
}

// Signup registers an account and returns the verification code mailed to it.
func (e *Env) Signup(email, password, name string) string {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())
	return e.LastCode(email)
}

// SignupVerified registers and verifies an account, returning its session.
func (e *Env) SignupVerified(email, password string) Session {
	e.T.Helper()

	code := e.Signup(email, password, "")
	w := e.Request(http.MethodPost, "/api/auth/verify-email", map[string]string{
		"email": email,
		"otp":   code,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var session Session
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &session)
	require.NotEmpty(e.T, session.Token)
	return session
}

// Login authenticates and returns the issued session.
func (e *Env) Login(email, password string) Session {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var session Session
	DecodeInto(e.T, resp.Data, &session)
	require.NotEmpty(e.T, session.Token)
	return session
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// RawRequest sends body verbatim, for malformed payload tests.
func (e *Env) RawRequest(method, path, body, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
