package doora

import (
	"io"
	"time"

	"github.com/doora-app/doora/account"
)

// Account is the public view of a stored account. It never carries the
// password hash, refresh hash, or pending token material.
type Account struct {
	ID         string
	Email      string
	Phone      string
	Firstname  string
	Lastname   string
	Role       string
	AvatarURL  string
	IsVerified bool
	CreatedAt  time.Time
}

// RegisterInput is the input to Engine.Register. Avatar is mandatory; a nil
// reader fails validation before anything is written.
type RegisterInput struct {
	Firstname string
	Lastname  string
	Email     string
	Phone     string
	Password  string

	Avatar            io.Reader
	AvatarContentType string
}

// LoginResult carries the freshly issued token pair and the authenticated
// account. Refresh and Register (when dispatch succeeds) return the same
// shape.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Account      *Account
}

// AuthResult is the identity extracted from a validated access token.
type AuthResult struct {
	AccountID string
	Email     string
	Name      string
	Role      string
}

func accountView(rec *account.Record) *Account {
	if rec == nil {
		return nil
	}
	return &Account{
		ID:         rec.ID,
		Email:      rec.Email,
		Phone:      rec.Phone,
		Firstname:  rec.Firstname,
		Lastname:   rec.Lastname,
		Role:       rec.Role,
		AvatarURL:  rec.AvatarURL,
		IsVerified: rec.IsVerified,
		CreatedAt:  time.Unix(rec.CreatedAt, 0),
	}
}
