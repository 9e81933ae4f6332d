package doora

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doora-app/doora/account"
	"github.com/doora-app/doora/internal"
	"github.com/doora-app/doora/mail"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset issues a single-use reset token for the account
// behind the email and dispatches the reset link. Requesting again replaces
// the pending token.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil || e.mailer == nil {
		return ErrEngineNotReady
	}

	rec, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.emitAudit(ctx, auditEventResetRequest, false, "", ErrUserNotFound, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return ErrUserNotFound
		}
		return errors.Join(ErrStoreUnavailable, err)
	}

	secret, err := internal.NewSingleUseSecret()
	if err != nil {
		return err
	}
	token, err := internal.EncodeSingleUseToken(rec.ID, secret)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(e.config.Token.ResetTTL)
	if err := e.accounts.SetReset(ctx, rec.ID, internal.HashSingleUseSecret(secret), expiresAt); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	if err := e.mailer.Send(ctx, mail.Message{
		To:   rec.Email,
		Kind: mail.KindReset,
		Link: actionLink(e.config.Token.ResetBaseURL, token),
	}); err != nil {
		e.metricInc(MetricMailDispatchFailure)
		e.emitAudit(ctx, auditEventResetRequest, false, rec.ID, ErrResetDispatch, nil)
		return ErrResetDispatch
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, rec.ID, nil, nil)
	return nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset consumes the reset token and installs the new
// password. The pending token pair is cleared and any active refresh session
// revoked in the same atomic update that validates the token, so a token
// can never reset two passwords.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	if len(newPassword) < 8 {
		e.metricInc(MetricResetConfirmFailure)
		e.emitAudit(ctx, auditEventResetConfirm, false, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "password_policy",
			}
		})
		return fmt.Errorf("%w: password must be at least 8 characters", ErrPasswordPolicy)
	}

	accountID, secret, err := internal.DecodeSingleUseToken(token)
	if err != nil {
		e.metricInc(MetricResetConfirmFailure)
		e.emitAudit(ctx, auditEventResetConfirm, false, "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return ErrTokenInvalid
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.metricInc(MetricResetConfirmFailure)
		e.emitAudit(ctx, auditEventResetConfirm, false, accountID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "hash_policy",
			}
		})
		return ErrPasswordPolicy
	}
	newPassword = ""

	if _, err := e.accounts.ConsumeReset(ctx, accountID, internal.HashSingleUseSecret(secret), newHash); err != nil {
		if errors.Is(err, account.ErrTokenMismatch) || errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricResetConfirmFailure)
			e.emitAudit(ctx, auditEventResetConfirm, false, accountID, ErrTokenInvalid, func() map[string]string {
				return map[string]string{
					"reason": "token_mismatch",
				}
			})
			return ErrTokenInvalid
		}
		return errors.Join(ErrStoreUnavailable, err)
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, accountID, nil, nil)
	return nil
}
