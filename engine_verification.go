package doora

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/doora-app/doora/account"
	"github.com/doora-app/doora/internal"
	"github.com/doora-app/doora/mail"
)

// dispatchVerification installs a fresh verification token on the account
// and emails the action link. Replaces any previously pending token.
func (e *Engine) dispatchVerification(ctx context.Context, rec *account.Record) error {
	secret, err := internal.NewSingleUseSecret()
	if err != nil {
		return err
	}
	token, err := internal.EncodeSingleUseToken(rec.ID, secret)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(e.config.Token.VerificationTTL)
	if err := e.accounts.SetVerification(ctx, rec.ID, internal.HashSingleUseSecret(secret), expiresAt); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	return e.mailer.Send(ctx, mail.Message{
		To:   rec.Email,
		Kind: mail.KindVerify,
		Link: actionLink(e.config.Token.VerifyBaseURL, token),
	})
}

// VerifyEmail describes the verifyemail operation and its observable behavior.
//
// VerifyEmail consumes a single-use verification token and marks the account
// verified. A wrong, expired, or already-consumed token uniformly yields
// ErrTokenInvalid.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	accountID, secret, err := internal.DecodeSingleUseToken(token)
	if err != nil {
		e.metricInc(MetricVerificationFailure)
		e.emitAudit(ctx, auditEventVerificationConfirm, false, "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return nil, ErrTokenInvalid
	}

	rec, err := e.accounts.ConsumeVerification(ctx, accountID, internal.HashSingleUseSecret(secret))
	if err != nil {
		if errors.Is(err, account.ErrTokenMismatch) || errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricVerificationFailure)
			e.emitAudit(ctx, auditEventVerificationConfirm, false, accountID, ErrTokenInvalid, func() map[string]string {
				return map[string]string{
					"reason": "token_mismatch",
				}
			})
			return nil, ErrTokenInvalid
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventVerificationConfirm, true, accountID, nil, nil)

	return accountView(rec), nil
}

// ResendVerification describes the resendverification operation and its observable behavior.
//
// ResendVerification issues a new verification token for an unverified
// account, invalidating the previous one.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil || e.mailer == nil {
		return ErrEngineNotReady
	}

	rec, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.emitAudit(ctx, auditEventVerificationRequest, false, "", ErrUserNotFound, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return ErrUserNotFound
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	if rec.IsVerified {
		e.emitAudit(ctx, auditEventVerificationRequest, false, rec.ID, ErrAlreadyVerified, nil)
		return ErrAlreadyVerified
	}

	if err := e.dispatchVerification(ctx, rec); err != nil {
		e.metricInc(MetricMailDispatchFailure)
		e.emitAudit(ctx, auditEventVerificationRequest, false, rec.ID, ErrVerificationDispatch, nil)
		return ErrVerificationDispatch
	}

	e.metricInc(MetricVerificationRequest)
	e.emitAudit(ctx, auditEventVerificationRequest, true, rec.ID, nil, nil)
	return nil
}

func actionLink(baseURL, token string) string {
	if baseURL == "" {
		return token
	}
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + "token=" + token
}
