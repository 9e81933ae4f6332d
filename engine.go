package doora

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/doora-app/doora/account"
	"github.com/doora-app/doora/internal"
	"github.com/doora-app/doora/jwt"
	"github.com/doora-app/doora/mail"
	"github.com/doora-app/doora/password"
	"github.com/doora-app/doora/upload"
)

// Engine defines a public type used by doora APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	accounts   *account.Store
	hasher     *password.Hasher
	jwtManager *jwt.Manager
	uploader   upload.Uploader
	mailer     mail.Sender
	audit      *auditDispatcher
	metrics    *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under load.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if e == nil || e.hasher == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if email == "" || pw == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	rec, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "user_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(pw, rec.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		if needsRehash, err := e.hasher.NeedsRehash(rec.PasswordHash); err == nil && needsRehash {
			if upgraded, err := e.hasher.Hash(pw); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.accounts.SetPassword(ctx, rec.ID, upgraded); err != nil {
					log.Print("doora: password hash upgrade update failed")
				}
			} else {
				log.Print("doora: password hash upgrade generation failed")
			}
		}
	}
	pw = ""

	result, err := e.issueTokenPair(ctx, rec)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "token_issue_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})

	return result, nil
}

// issueTokenPair mints an access and refresh token for rec and installs the
// refresh hash, superseding any previously active session.
func (e *Engine) issueTokenPair(ctx context.Context, rec *account.Record) (*LoginResult, error) {
	access, err := e.jwtManager.CreateAccess(rec.ID, rec.Email, rec.Firstname, rec.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := e.jwtManager.CreateRefresh(rec.ID)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.SetRefreshHash(ctx, rec.ID, internal.HashRefreshToken(refresh)); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Account:      accountView(rec),
	}, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return nil, ErrRefreshInvalid
	}
	accountID := claims.Subject

	nextRefresh, err := e.jwtManager.CreateRefresh(accountID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, err, func() map[string]string {
			return map[string]string{
				"reason": "next_token_generation",
			}
		})
		return nil, err
	}

	rotated, err := e.accounts.RotateRefreshHash(
		ctx,
		accountID,
		internal.HashRefreshToken(refreshToken),
		internal.HashRefreshToken(nextRefresh),
	)
	if err != nil {
		if errors.Is(err, account.ErrRefreshMismatch) {
			// A valid signature with a stale hash means this token was
			// already rotated: replay. Revoke the whole session.
			if clearErr := e.accounts.ClearRefresh(ctx, accountID); clearErr != nil {
				log.Print("doora: session revocation after refresh reuse failed")
			}
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, accountID, ErrRefreshReuse, nil)
			return nil, ErrRefreshReuse
		}
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, ErrRefreshInvalid, func() map[string]string {
				return map[string]string{
					"reason": "account_not_found",
				}
			})
			return nil, ErrRefreshInvalid
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, err, func() map[string]string {
			return map[string]string{
				"reason": "rotate_failed",
			}
		})
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	access, err := e.jwtManager.CreateAccess(rotated.ID, rotated.Email, rotated.Firstname, rotated.Role)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, accountID, nil, nil)

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: nextRefresh,
		Account:      accountView(rotated),
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return ErrRefreshInvalid
	}

	err = e.accounts.ClearRefresh(ctx, claims.Subject)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		e.emitAudit(ctx, auditEventLogoutSession, false, claims.Subject, err, nil)
		return errors.Join(ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, claims.Subject, nil, nil)
	return nil
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
	}, nil
}
