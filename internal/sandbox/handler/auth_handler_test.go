package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/internal/sandbox/query"
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/models"
)

// ---- mock implementations ----

type mockAuthCommander struct {
	signupFn func(cqrs.SignupCommand) (*models.UserProfile, string, error)
	verifyFn func(cqrs.VerifyAccountCommand) error
}

func (m *mockAuthCommander) Signup(cmd cqrs.SignupCommand) (*models.UserProfile, string, error) {
	if m.signupFn != nil {
		return m.signupFn(cmd)
	}
	return nil, "", fmt.Errorf("not configured")
}
func (m *mockAuthCommander) VerifyAccount(cmd cqrs.VerifyAccountCommand) error {
	if m.verifyFn != nil {
		return m.verifyFn(cmd)
	}
	return fmt.Errorf("not configured")
}

type mockAuthQuerier struct {
	loginFn func(cqrs.LoginCommand) (string, error)
}

func (m *mockAuthQuerier) Login(cmd cqrs.LoginCommand) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(cmd)
	}
	return "", fmt.Errorf("not configured")
}

// ---- helper ----

func newAuthTestRouter(cmds AuthCommander, qrys AuthQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(cmds, qrys)
	g := r.Group("/api/auth")
	g.POST("/signup", h.Signup)
	g.GET("/verify-account", h.VerifyAccount)
	g.POST("/login", h.Login)
	return r
}

func aValidSignupBody() map[string]string {
	return map[string]string{
		"email":       "jane@example.com",
		"password":    "securepass123",
		"firstName":   "Jane",
		"lastName":    "Doe",
		"phoneNumber": "+15551234567",
		"birthDate":   "1990-04-01",
	}
}

// ---- tests ----

func TestLogin(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		loginFn        func(cqrs.LoginCommand) (string, error)
		expectedStatus int
	}{
		{
			name:           "success - valid credentials return JWT",
			body:           map[string]string{"email": "alice@example.com", "password": "securepass123"},
			loginFn:        func(cmd cqrs.LoginCommand) (string, error) { return "mock.jwt.token", nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unauthorised - invalid credentials",
			body:           map[string]string{"email": "alice@example.com", "password": "wrongpass"},
			loginFn:        func(cmd cqrs.LoginCommand) (string, error) { return "", query.ErrInvalidCredentials },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "forbidden - email not verified",
			body:           map[string]string{"email": "alice@example.com", "password": "securepass123"},
			loginFn:        func(cmd cqrs.LoginCommand) (string, error) { return "", query.ErrNotVerified },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "bad request - invalid email",
			body:           map[string]string{"email": "not-an-email", "password": "securepass123"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - missing password",
			body:           map[string]string{"email": "alice@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthTestRouter(&mockAuthCommander{}, &mockAuthQuerier{loginFn: tt.loginFn})
			w := doRequest(router, http.MethodPost, "/api/auth/login", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestLogin_ResponseCarriesAuthToken(t *testing.T) {
	qrys := &mockAuthQuerier{loginFn: func(cmd cqrs.LoginCommand) (string, error) { return "mock.jwt.token", nil }}
	router := newAuthTestRouter(&mockAuthCommander{}, qrys)
	w := doRequest(router, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "pw"})

	var resp models.Response[models.LoginData]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasData() || resp.Data.AuthToken != "mock.jwt.token" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestSignup(t *testing.T) {
	profile := &models.UserProfile{ID: "usr-001", Email: "jane@example.com", FirstName: "Jane"}
	tests := []struct {
		name           string
		body           interface{}
		signupFn       func(cqrs.SignupCommand) (*models.UserProfile, string, error)
		expectedStatus int
	}{
		{
			name:           "success - user registered",
			body:           aValidSignupBody(),
			signupFn:       func(cmd cqrs.SignupCommand) (*models.UserProfile, string, error) { return profile, "tok", nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "conflict - email taken",
			body:           aValidSignupBody(),
			signupFn:       func(cmd cqrs.SignupCommand) (*models.UserProfile, string, error) { return nil, "", repository.ErrEmailTaken },
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "bad request - missing fields",
			body:           map[string]string{"email": "jane@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "bad request - malformed birth date",
			body: func() map[string]string {
				b := aValidSignupBody()
				b["birthDate"] = "01/04/1990"
				return b
			}(),
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthTestRouter(&mockAuthCommander{signupFn: tt.signupFn}, &mockAuthQuerier{})
			w := doRequest(router, http.MethodPost, "/api/auth/signup", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestVerifyAccount(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		verifyFn       func(cqrs.VerifyAccountCommand) error
		expectedStatus int
	}{
		{
			name: "success - token accepted",
			url:  "/api/auth/verify-account?token=abc",
			verifyFn: func(cmd cqrs.VerifyAccountCommand) error {
				if cmd.Token != "abc" {
					return fmt.Errorf("unexpected token %s", cmd.Token)
				}
				return nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - token missing",
			url:            "/api/auth/verify-account",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - token unknown",
			url:            "/api/auth/verify-account?token=nope",
			verifyFn:       func(cmd cqrs.VerifyAccountCommand) error { return repository.ErrInvalidVerification },
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthTestRouter(&mockAuthCommander{verifyFn: tt.verifyFn}, &mockAuthQuerier{})
			w := doRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
