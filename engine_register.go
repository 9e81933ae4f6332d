package doora

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"github.com/doora-app/doora/account"
)

// Register describes the register operation and its observable behavior.
//
// Register creates the account, stores the avatar, and dispatches the
// verification email. An avatar is mandatory; registration without one fails
// with ErrValidation. The upload happens before the record is written; if the
// record write then fails, the uploaded object is deleted so no orphan
// remains. A failed verification email does NOT roll the account back: the
// caller gets ErrVerificationDispatch and the user can request a resend.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	if e == nil || e.hasher == nil || e.mailer == nil {
		return nil, ErrEngineNotReady
	}

	input.Firstname = strings.TrimSpace(input.Firstname)
	input.Lastname = strings.TrimSpace(input.Lastname)
	email := account.NormalizeEmail(input.Email)
	phone := account.NormalizePhone(input.Phone)

	if err := e.validateRegisterInput(input.Firstname, email, input.Password); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "validation",
			}
		})
		return nil, err
	}

	// Advisory pre-check; the store's create script is the authoritative
	// uniqueness gate. Failing early here just avoids a wasted upload.
	if _, err := e.accounts.FindByEmailOrPhone(ctx, email, phone); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrAccountExists, func() map[string]string {
			return map[string]string{
				"identifier": email,
			}
		})
		return nil, ErrAccountExists
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if input.Avatar == nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrValidation, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "avatar_missing",
			}
		})
		return nil, fmt.Errorf("%w: avatar is required", ErrValidation)
	}
	if e.uploader == nil {
		return nil, ErrEngineNotReady
	}
	if !e.avatarTypeAllowed(input.AvatarContentType) {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrValidation, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "avatar_content_type",
			}
		})
		return nil, fmt.Errorf("%w: unsupported avatar type %q", ErrValidation, input.AvatarContentType)
	}
	stored, err := e.uploader.Upload(ctx, input.Avatar, input.AvatarContentType)
	if err != nil {
		e.metricInc(MetricUploadFailure)
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrUpload, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "upload_failed",
			}
		})
		return nil, errors.Join(ErrUpload, err)
	}
	avatarURL, avatarPublicID := stored.URL, stored.PublicID

	rec, err := e.accounts.Create(ctx, account.Draft{
		Firstname:      input.Firstname,
		Lastname:       input.Lastname,
		Email:          email,
		Phone:          phone,
		Password:       input.Password,
		Role:           e.config.Register.DefaultRole,
		AvatarURL:      avatarURL,
		AvatarPublicID: avatarPublicID,
	})
	if err != nil {
		e.compensateAvatar(ctx, avatarPublicID)
		if errors.Is(err, account.ErrDuplicateIdentity) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrAccountExists, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return nil, ErrAccountExists
		}
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "store_create_failed",
			}
		})
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if err := e.dispatchVerification(ctx, rec); err != nil {
		// Account creation already succeeded; surface the dispatch
		// failure without rolling back.
		e.metricInc(MetricMailDispatchFailure)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, ErrVerificationDispatch, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "verification_dispatch_failed",
			}
		})
		return accountView(rec), ErrVerificationDispatch
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})

	return accountView(rec), nil
}

func (e *Engine) validateRegisterInput(firstname, email, pw string) error {
	if firstname == "" {
		return fmt.Errorf("%w: firstname is required", ErrValidation)
	}
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if len(pw) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrPasswordPolicy)
	}
	return nil
}

func (e *Engine) avatarTypeAllowed(contentType string) bool {
	if len(e.config.Register.AllowedAvatarTypes) == 0 {
		return true
	}
	for _, allowed := range e.config.Register.AllowedAvatarTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// compensateAvatar deletes an uploaded object after a failed create.
// Best-effort: a leaked object is logged, not surfaced.
func (e *Engine) compensateAvatar(ctx context.Context, publicID string) {
	if publicID == "" || e.uploader == nil {
		return
	}
	if err := e.uploader.Delete(ctx, publicID); err != nil {
		log.Print("doora: avatar compensation delete failed")
	}
}
