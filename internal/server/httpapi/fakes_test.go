package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

const validToken = "valid-access"

var alice = &models.Account{
	ID:         1,
	Username:   "alice",
	Email:      "alice@example.com",
	IsActive:   true,
	IsVerified: true,
	CreatedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
}

// fakeAuth resolves validToken to alice; every other operation is scripted
// per test through the function fields.
type fakeAuth struct {
	register       func(username, email, password string) (*services.Registration, error)
	login          func(identifier, password string) (*services.TokenPair, error)
	logout         func(access, refresh string) error
	changePassword func(a *models.Account, current, next string) error
	requestReset   func(email string) (string, error)
	confirmReset   func(token, password string) error
	refresh        func(token string) (string, error)
	verifyEmail    func(token string) error
}

func (f *fakeAuth) Register(_ context.Context, u, e, p string) (*services.Registration, error) {
	return f.register(u, e, p)
}

func (f *fakeAuth) Login(_ context.Context, id, p string) (*services.TokenPair, error) {
	return f.login(id, p)
}

func (f *fakeAuth) CurrentAccount(_ context.Context, token string) (*models.Account, error) {
	switch token {
	case validToken:
		return alice, nil
	case "expired":
		return nil, common.ErrTokenExpired
	case "revoked":
		return nil, common.ErrTokenRevoked
	}
	return nil, common.ErrInvalidToken
}

func (f *fakeAuth) Logout(_ context.Context, access, refresh string) error {
	return f.logout(access, refresh)
}

func (f *fakeAuth) ChangePassword(_ context.Context, a *models.Account, cur, next string) error {
	return f.changePassword(a, cur, next)
}

func (f *fakeAuth) RequestPasswordReset(_ context.Context, email string) (string, error) {
	return f.requestReset(email)
}

func (f *fakeAuth) ConfirmPasswordReset(_ context.Context, token, p string) error {
	return f.confirmReset(token, p)
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (string, error) {
	return f.refresh(token)
}

func (f *fakeAuth) VerifyEmail(_ context.Context, token string) error {
	return f.verifyEmail(token)
}

type fakeDirectory struct {
	accounts []*models.Account
	deleted  []int64
	update   func(id int64, username, email string) (*models.Account, error)
	err      error
}

func (f *fakeDirectory) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, common.ErrAccountNotFound
}

func (f *fakeDirectory) List(context.Context) ([]*models.Account, error) {
	return f.accounts, f.err
}

func (f *fakeDirectory) ListActive(context.Context) ([]*models.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Account
	for _, a := range f.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeDirectory) UpdateUsernameOrEmail(_ context.Context, id int64, username, email string) (*models.Account, error) {
	return f.update(id, username, email)
}

func (f *fakeDirectory) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeOTP struct {
	send   func(email string) (*models.ResetCode, error)
	verify func(email, code string) error
}

func (f *fakeOTP) Send(_ context.Context, email string) (*models.ResetCode, error) {
	return f.send(email)
}
func (f *fakeOTP) Verify(_ context.Context, email, code string) error { return f.verify(email, code) }

type fakeTwoFactor struct {
	enable  func(id int64) (*services.TwoFactorEnrollment, error)
	disable func(id int64) error
	verify  func(id int64, code string) error
}

func (f *fakeTwoFactor) Enable(_ context.Context, id int64) (*services.TwoFactorEnrollment, error) {
	return f.enable(id)
}

func (f *fakeTwoFactor) Disable(_ context.Context, id int64) error { return f.disable(id) }

func (f *fakeTwoFactor) Verify(_ context.Context, id int64, code string) error {
	return f.verify(id, code)
}

type testAPI struct {
	auth   *fakeAuth
	dir    *fakeDirectory
	otp    *fakeOTP
	twofa  *fakeTwoFactor
	router *gin.Engine
	ready  *Readiness
}

func newTestAPI() *testAPI {
	api := &testAPI{
		auth:  &fakeAuth{},
		dir:   &fakeDirectory{accounts: []*models.Account{alice}},
		otp:   &fakeOTP{},
		twofa: &fakeTwoFactor{},
		ready: NewReadiness(true),
	}
	h := NewHandler(api.auth, api.dir, api.otp, api.twofa, nopLogger{})
	api.router = NewRouter(h, nopLogger{}, api.ready, nil)
	return api
}

// do sends a request with an optional JSON body and bearer token.
func (api *testAPI) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}


func validationError(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}
