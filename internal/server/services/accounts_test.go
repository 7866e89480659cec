package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.accounts.Create(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.True(t, a.IsActive)
	assert.False(t, a.IsVerified)
	assert.False(t, a.TwoFactorEnabled)
	assert.NotEqual(t, "s3cret", a.PasswordHash)
	assert.True(t, a.CreatedAt.Equal(f.clock.Now()))
}

func TestAccountService_Create_Duplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, "alice", "alice@example.com", "pw")

	tests := []struct {
		name     string
		username string
		email    string
		wantErr  error
	}{
		{"same username", "alice", "other@example.com", common.ErrDuplicateUsername},
		{"same email", "bob", "alice@example.com", common.ErrDuplicateEmail},
		{"both taken reports username", "alice", "alice@example.com", common.ErrDuplicateUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Create(ctx, tt.username, tt.email, "pw")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := f.accounts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccountService_Create_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "a@example.com", "pw"},
		{"blank username", "   ", "a@example.com", "pw"},
		{"username with at sign", "a@b", "a@example.com", "pw"},
		{"email without at sign", "alice", "example.com", "pw"},
		{"email ending in at sign", "alice", "alice@", "pw"},
		{"empty password", "alice", "a@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Create(context.Background(), tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestAccountService_Find(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "alice", "alice@example.com", "pw")

	got, err := f.accounts.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = f.accounts.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = f.accounts.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = f.accounts.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
	_, err = f.accounts.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestAccountService_Find_StorageError(t *testing.T) {
	f := newFixture(t)
	f.store.failOn(errors.New("connection reset"))

	_, err := f.accounts.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.NotErrorIs(t, err, common.ErrAccountNotFound)
}

func TestAccountService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "alice", "alice@example.com", "correct horse")

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{"by username", "alice", "correct horse", nil},
		{"by email", "alice@example.com", "correct horse", nil},
		{"wrong password", "alice", "battery staple", common.ErrInvalidCredentials},
		{"unknown username", "mallory", "correct horse", common.ErrInvalidCredentials},
		{"unknown email", "mallory@example.com", "correct horse", common.ErrInvalidCredentials},
		{"email looked up as email only", "alice@", "correct horse", common.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.accounts.Authenticate(ctx, tt.identifier, tt.password)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ID)
		})
	}
}

func TestAccountService_UpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "alice", "alice@example.com", "old")

	f.clock.Advance(time.Minute)
	require.NoError(t, f.accounts.UpdatePassword(ctx, a.ID, "new"))

	_, err := f.accounts.Authenticate(ctx, "alice", "old")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = f.accounts.Authenticate(ctx, "alice", "new")
	assert.NoError(t, err)
	assert.True(t, f.store.account(a.ID).UpdatedAt.Equal(f.clock.Now()))

	assert.ErrorIs(t, f.accounts.UpdatePassword(ctx, a.ID, ""), common.ErrValidation)
	assert.ErrorIs(t, f.accounts.UpdatePassword(ctx, 999, "new"), common.ErrAccountNotFound)
}

func TestAccountService_UpdateUsernameOrEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("both fields", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, "alice", "alice@example.com", "pw")

		got, err := f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "alicia", "alicia@example.com")
		require.NoError(t, err)
		assert.Equal(t, "alicia", got.Username)
		assert.Equal(t, "alicia@example.com", got.Email)

		stored := f.store.account(a.ID)
		assert.Equal(t, "alicia", stored.Username)
		assert.Equal(t, "alicia@example.com", stored.Email)
	})

	t.Run("username only", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, "alice", "alice@example.com", "pw")

		got, err := f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "alicia", "")
		require.NoError(t, err)
		assert.Equal(t, "alicia", got.Username)
		assert.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("unchanged values are not written", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, "alice", "alice@example.com", "pw")
		f.clock.Advance(time.Hour)
		f.store.failOn(errors.New("must not write"), "accounts.UpdateIdentity")

		got, err := f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "alice", "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, f.store.account(a.ID).UpdatedAt.Equal(a.UpdatedAt))

		_, err = f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "", "")
		assert.NoError(t, err)
	})

	t.Run("taken email leaves username unchanged", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, "alice", "alice@example.com", "pw")
		f.mustCreate(t, "bob", "bob@example.com", "pw")

		_, err := f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "alicia", "bob@example.com")
		assert.ErrorIs(t, err, common.ErrDuplicateEmail)

		stored := f.store.account(a.ID)
		assert.Equal(t, "alice", stored.Username)
		assert.Equal(t, "alice@example.com", stored.Email)
	})

	t.Run("taken username", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, "alice", "alice@example.com", "pw")
		f.mustCreate(t, "bob", "bob@example.com", "pw")

		_, err := f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "bob", "new@example.com")
		assert.ErrorIs(t, err, common.ErrDuplicateUsername)
		assert.Equal(t, "alice@example.com", f.store.account(a.ID).Email)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := newFixture(t)
		a := f.mustCreate(t, "alice", "alice@example.com", "pw")

		_, err := f.accounts.UpdateUsernameOrEmail(ctx, a.ID, "", "not-an-email")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("missing account", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accounts.UpdateUsernameOrEmail(ctx, 42, "x", "")
		assert.ErrorIs(t, err, common.ErrAccountNotFound)
	})
}

func TestAccountService_UpdateUsernameOrEmail_RollsBackOnStorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newFixtureWithDB(t, db)
	f.store.accounts[1] = f.seedAccount(1, "alice", "alice@example.com")
	f.store.failOn(errors.New("disk full"), "accounts.UpdateIdentity")

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = f.accounts.UpdateUsernameOrEmail(context.Background(), 1, "alicia", "alicia@example.com")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Create_CommitsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := newFixtureWithDB(t, db)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err = f.accounts.Create(context.Background(), "alice", "alice@example.com", "pw")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_DeleteAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "alice", "alice@example.com", "pw")
	b := f.mustCreate(t, "bob", "bob@example.com", "pw")
	f.store.accounts[b.ID].IsActive = false

	all, err := f.accounts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.accounts.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alice", active[0].Username)

	require.NoError(t, f.accounts.Delete(ctx, a.ID))
	_, err = f.accounts.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
	assert.ErrorIs(t, f.accounts.Delete(ctx, a.ID), common.ErrAccountNotFound)

	// the username is free again after a hard delete
	_, err = f.accounts.Create(ctx, "alice", "alice@example.com", "pw")
	assert.NoError(t, err)
}

func TestAccountService_MarkVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "alice", "alice@example.com", "pw")

	require.NoError(t, f.accounts.MarkVerified(ctx, a.ID))
	require.NoError(t, f.accounts.MarkVerified(ctx, a.ID))
	assert.True(t, f.store.account(a.ID).IsVerified)

	assert.ErrorIs(t, f.accounts.MarkVerified(ctx, 999), common.ErrAccountNotFound)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.Equal(t, common.ErrAccountNotFound, classify("op", common.ErrorNotFound))
	assert.Equal(t, common.ErrDuplicateEmail, classify("op", common.ErrDuplicateEmail))

	err := classify("list accounts", errors.New("boom"))
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.EqualError(t, err, common.ErrStorage.Error()+": list accounts: boom")
}
