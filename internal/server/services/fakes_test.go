package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/resetcodes"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/revokedtokens"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore backs the in-memory repositories. fail, when set, is returned by
// every repository call whose operation name is listed in failOps (or by all
// calls when failOps is empty).
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.Account
	revoked  []models.RevokedToken
	codes    map[int64]*models.ResetCode

	fail    error
	failOps map[string]bool
}

func newMemStore() *memStore {
	return &memStore{accounts: map[int64]*models.Account{}, codes: map[int64]*models.ResetCode{}}
}

func (s *memStore) failing(op string) error {
	if s.fail == nil {
		return nil
	}
	if len(s.failOps) == 0 || s.failOps[op] {
		return s.fail
	}
	return nil
}

func (s *memStore) failOn(err error, ops ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
	s.failOps = map[string]bool{}
	for _, op := range ops {
		s.failOps[op] = true
	}
}

func (s *memStore) account(id int64) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

type memRepos struct{ s *memStore }

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error          { return nil }
func (m *memRepos) Accounts(dbx.DBTX) accounts.Repository                 { return &memAccounts{m.s} }
func (m *memRepos) RevokedTokens(dbx.DBTX) revokedtokens.Repository       { return &memRevoked{m.s} }
func (m *memRepos) ResetCodes(dbx.DBTX) resetcodes.Repository             { return &memCodes{m.s} }

type memAccounts struct{ s *memStore }

func (r *memAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("accounts.Create"); err != nil {
		return nil, err
	}
	if err := r.uniqueLocked(0, a.Username, a.Email); err != nil {
		return nil, err
	}
	r.s.nextID++
	c := *a
	c.ID = r.s.nextID
	r.s.accounts[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memAccounts) uniqueLocked(self int64, username, email string) error {
	for id, a := range r.s.accounts {
		if id == self {
			continue
		}
		if a.Username == username {
			return common.ErrDuplicateUsername
		}
		if a.Email == email {
			return common.ErrDuplicateEmail
		}
	}
	return nil
}

func (r *memAccounts) find(op string, match func(*models.Account) bool) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing(op); err != nil {
		return nil, err
	}
	for _, a := range r.s.accounts {
		if match(a) {
			c := *a
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	return r.find("accounts.GetByID", func(a *models.Account) bool { return a.ID == id })
}

func (r *memAccounts) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	return r.find("accounts.GetByUsername", func(a *models.Account) bool { return a.Username == username })
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find("accounts.GetByEmail", func(a *models.Account) bool { return a.Email == email })
}

func (r *memAccounts) List(_ context.Context, activeOnly bool) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("accounts.List"); err != nil {
		return nil, err
	}
	out := make([]*models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		if activeOnly && !a.IsActive {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAccounts) update(op string, id int64, fn func(*models.Account) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing(op); err != nil {
		return err
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	return fn(a)
}

func (r *memAccounts) UpdatePassword(_ context.Context, id int64, hash string, at time.Time) error {
	return r.update("accounts.UpdatePassword", id, func(a *models.Account) error {
		a.PasswordHash, a.UpdatedAt = hash, at
		return nil
	})
}

func (r *memAccounts) UpdateIdentity(_ context.Context, id int64, username, email string, at time.Time) error {
	return r.update("accounts.UpdateIdentity", id, func(a *models.Account) error {
		if err := r.uniqueLocked(id, username, email); err != nil {
			return err
		}
		a.Username, a.Email, a.UpdatedAt = username, email, at
		return nil
	})
}

func (r *memAccounts) MarkVerified(_ context.Context, id int64, at time.Time) error {
	return r.update("accounts.MarkVerified", id, func(a *models.Account) error {
		a.IsVerified, a.UpdatedAt = true, at
		return nil
	})
}

func (r *memAccounts) SetTwoFactor(_ context.Context, id int64, secret string, enabled bool, at time.Time) error {
	return r.update("accounts.SetTwoFactor", id, func(a *models.Account) error {
		a.TOTPSecret, a.TwoFactorEnabled, a.UpdatedAt = secret, enabled, at
		return nil
	})
}

func (r *memAccounts) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("accounts.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

type memRevoked struct{ s *memStore }

func (r *memRevoked) Create(_ context.Context, t *models.RevokedToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("revoked.Create"); err != nil {
		return err
	}
	for _, row := range r.s.revoked {
		if row.Token == t.Token {
			return common.ErrAlreadyRevoked
		}
	}
	r.s.revoked = append(r.s.revoked, *t)
	return nil
}

func (r *memRevoked) Exists(_ context.Context, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("revoked.Exists"); err != nil {
		return false, err
	}
	for _, row := range r.s.revoked {
		if row.Token == token || (row.RefreshToken != "" && row.RefreshToken == token) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRevoked) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("revoked.DeleteBefore"); err != nil {
		return 0, err
	}
	kept := r.s.revoked[:0]
	var n int64
	for _, row := range r.s.revoked {
		if row.RevokedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.s.revoked = kept
	return n, nil
}

type memCodes struct{ s *memStore }

func (r *memCodes) Create(_ context.Context, c *models.ResetCode) (*models.ResetCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("codes.Create"); err != nil {
		return nil, err
	}
	for _, row := range r.s.codes {
		if row.Code != "" && row.Code == c.Code {
			return nil, common.ErrAlreadyExists
		}
	}
	r.s.nextID++
	cp := *c
	cp.ID = r.s.nextID
	r.s.codes[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memCodes) FindActive(_ context.Context, email, code string) (*models.ResetCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("codes.FindActive"); err != nil {
		return nil, err
	}
	for _, row := range r.s.codes {
		if row.Email == email && row.Code == code && !row.IsUsed {
			cp := *row
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memCodes) Consume(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("codes.Consume"); err != nil {
		return err
	}
	row, ok := r.s.codes[id]
	if !ok || row.IsUsed {
		return common.ErrorNotFound
	}
	row.IsUsed, row.Code, row.UsedAt = true, "", &at
	return nil
}

func (r *memCodes) DeleteStaleBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("codes.DeleteStaleBefore"); err != nil {
		return 0, err
	}
	var n int64
	for id, row := range r.s.codes {
		if (row.IsUsed && row.UsedAt != nil && row.UsedAt.Before(before)) || row.ExpiresAt.Before(before) {
			delete(r.s.codes, id)
			n++
		}
	}
	return n, nil
}

type sentCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (m *recordingMailer) SendCode(_ context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCode{email, code, expiresAt})
	return nil
}

func (m *recordingMailer) last() sentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

// fixture wires every service against one in-memory store. Transactions run
// on an in-memory SQLite database so BEGIN/COMMIT/ROLLBACK are real.
type fixture struct {
	db       *sql.DB
	store    *memStore
	clock    *fakeClock
	codec    *auth.TokenCodec
	totp     *auth.TOTP
	mailer   *recordingMailer
	accounts *AccountService
	ledger   *RevocationLedger
	otp      *OTPManager
	twofa    *TwoFactorManager
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newFixtureWithDB(t, db)
}

func newFixtureWithDB(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	f := &fixture{db: db, store: newMemStore(), clock: newFakeClock(), mailer: &recordingMailer{}}
	repos := &memRepos{s: f.store}

	codec, err := auth.NewTokenCodec("test-secret", "HS256", auth.Lifetimes{
		Access:            30 * time.Minute,
		Refresh:           1440 * time.Minute,
		EmailVerification: 1440 * time.Minute,
		PasswordReset:     15 * time.Minute,
	}, f.clock.Now)
	require.NoError(t, err)
	f.codec = codec
	f.totp = auth.NewTOTP("GophAuth", 1, f.clock.Now)

	f.accounts, err = NewAccountService(db, repos, auth.NewBcryptHasher(bcrypt.MinCost), nopLogger{}, f.clock.Now)
	require.NoError(t, err)
	f.ledger = NewRevocationLedger(db, repos, f.clock.Now)
	f.otp = NewOTPManager(db, repos, f.mailer, nopLogger{}, 5*time.Minute, f.clock.Now)
	f.twofa = NewTwoFactorManager(db, repos, f.totp, nopLogger{}, f.clock.Now)
	f.auth = NewAuthService(f.accounts, f.ledger, f.codec, nopLogger{})
	return f
}

func (f *fixture) mustCreate(t *testing.T, username, email, password string) *models.Account {
	t.Helper()
	a, err := f.accounts.Create(context.Background(), username, email, password)
	require.NoError(t, err)
	return a
}

func (f *fixture) seedAccount(id int64, username, email string) *models.Account {
	now := f.clock.Now()
	if id > f.store.nextID {
		f.store.nextID = id
	}
	return &models.Account{
		ID: id, Username: username, Email: email, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
}
