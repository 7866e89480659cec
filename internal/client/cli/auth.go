package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username, an email and a password and creates the
// account. The verification token is printed so it can be fed to "verify".
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	reg, err := a.authService.Register(ctx, username, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %d)\n", reg.Username, reg.ID)
	fmt.Fprintf(a.out, "Verification token: %s\n", reg.VerificationToken)
	return nil
}

// VerifyEmail prompts for a verification token and submits it.
func (a *App) VerifyEmail(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Enter verification token", a.out)
	if err != nil {
		return err
	}
	if err := a.authService.VerifyEmail(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email verified")
	return nil
}

// Login prompts for credentials and stores the resulting session.
// The password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	login, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, login, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", a.authService.Username(ctx))
	return nil
}

// Me prints the profile of the logged-in account.
func (a *App) Me(ctx context.Context) error {
	acc, err := a.authService.Me(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:        %d\n", acc.ID)
	fmt.Fprintf(a.out, "Username:  %s\n", acc.Username)
	fmt.Fprintf(a.out, "Email:     %s\n", acc.Email)
	fmt.Fprintf(a.out, "Active:    %t\n", acc.IsActive)
	fmt.Fprintf(a.out, "Verified:  %t\n", acc.IsVerified)
	fmt.Fprintf(a.out, "2FA:       %t\n", acc.TwoFactorEnabled)
	fmt.Fprintf(a.out, "Created:   %s\n", acc.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

// Logout revokes the session on the server and forgets it locally.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// ResetRequest asks the server for a password reset token and prints it.
func (a *App) ResetRequest(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	token, err := a.authService.RequestPasswordReset(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reset token: %s\n", token)
	return nil
}

// ResetConfirm sets a new password using a reset token.
func (a *App) ResetConfirm(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Enter reset token", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.ConfirmPasswordReset(ctx, token, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated")
	return nil
}
