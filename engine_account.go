package linkauth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/linkauth/account"
	"github.com/MrEthical07/linkauth/password"
)

const maxEmailLength = 254

// Signup creates a password account and opens its first device session.
func (e *Engine) Signup(ctx context.Context, email, plaintext string) (*SessionTokens, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = account.NormalizeEmail(email)
	if !plausibleEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(plaintext) < e.config.Password.MinLength {
		return nil, ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return nil, ErrPasswordPolicy
		}
		return nil, err
	}

	user := &account.User{
		ID:        account.NewID(),
		Email:     email,
		Status:    account.StatusActive,
		CreatedAt: e.now(),
	}
	if err := e.accounts.CreateAccount(ctx, user, &account.Credential{PasswordHash: hash}, nil); err != nil {
		if errors.Is(err, ErrDuplicate) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignupDuplicate, false, "", "", "", ErrEmailTaken)
			return nil, ErrEmailTaken
		}
		return nil, backendError(err)
	}

	tokens, err := e.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, user.ID, tokens.SessionID, "", nil)
	return tokens, nil
}

// DeleteAccount removes userID with its credential and links after revoking
// every device session. Accounts with a password must confirm it; accounts
// created through a provider pass an empty password.
func (e *Engine) DeleteAccount(ctx context.Context, userID, plaintext string) error {
	if err := e.ready(); err != nil {
		return err
	}

	cred, err := e.accounts.Credential(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return backendError(err)
	}
	if cred.HasPassword() {
		ok, err := e.hasher.Verify(plaintext, cred.PasswordHash)
		if err != nil || !ok {
			e.emitAudit(ctx, auditEventAccountDeleted, false, userID, "", "", ErrInvalidCredentials)
			return ErrInvalidCredentials
		}
	}

	if _, err := e.sessions.DeleteAll(ctx, userID); err != nil {
		return backendError(err)
	}
	if err := e.accounts.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return backendError(err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, "", "", nil)
	return nil
}

// DisableAccount blocks userID from authenticating and revokes its sessions.
// Access tokens already issued stay valid until they expire.
func (e *Engine) DisableAccount(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.accounts.SetStatus(ctx, userID, account.StatusDisabled); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return backendError(err)
	}
	if _, err := e.sessions.DeleteAll(ctx, userID); err != nil {
		return backendError(err)
	}
	e.metricInc(MetricAccountDisabled)
	e.emitAudit(ctx, auditEventAccountStatus, true, userID, "", "", nil)
	return nil
}

// EnableAccount reactivates a disabled account.
func (e *Engine) EnableAccount(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.accounts.SetStatus(ctx, userID, account.StatusActive); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return backendError(err)
	}
	e.emitAudit(ctx, auditEventAccountStatus, true, userID, "", "", nil)
	return nil
}

func plausibleEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1
}
