package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

// Config defines the signing material and lifetimes for a [Manager].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

// Manager issues and parses the two signed token kinds. Access tokens carry
// minimal identity claims for per-request authorization and are never
// persisted; refresh tokens carry the account id only and are matched against
// the hash the credential store keeps for the account.
type Manager struct {
	config Config
}

// AccessClaims is the claim set of an access token.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token. It deliberately carries
// nothing beyond the account id in the subject.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
//
// NewManager may return an error when a secret is too short, the two secrets are
// identical, or a TTL is not positive.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if len(cfg.AccessSecret) < minSecretBytes {
		return nil, errors.New("access secret must be at least 256 bits")
	}
	if len(cfg.RefreshSecret) < minSecretBytes {
		return nil, errors.New("refresh secret must be at least 256 bits")
	}
	// A shared secret would let an attacker replay a refresh token as an
	// access token past the access expiry.
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &Manager{config: cfg}, nil
}

// CreateAccess signs a short-lived access token for the given account identity.
func (j *Manager) CreateAccess(accountID, email, name, role string) (string, error) {
	if accountID == "" {
		return "", errors.New("access token requires account id")
	}

	now := time.Now()
	claims := AccessClaims{
		Email: email,
		Name:  name,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.AccessSecret)
}

// CreateRefresh signs a long-lived refresh token for the given account id.
func (j *Manager) CreateRefresh(accountID string) (string, error) {
	if accountID == "" {
		return "", errors.New("refresh token requires account id")
	}

	now := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.RefreshSecret)
}

// ParseAccess verifies signature, expiry, and issuer of an access token and
// returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, j.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ParseRefresh verifies signature, expiry, and issuer of a refresh token and
// returns its claims. A token that parses here is NOT yet valid for rotation:
// the caller must still match it against the hash stored on the account.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, j.config.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}

	iat, err := token.Claims.GetIssuedAt()
	if err != nil {
		return err
	}
	if iat != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(j.config.MaxFutureIAT)
		if iat.After(maxAllowed) {
			return errors.New("token iat too far in the future")
		}
	}

	return nil
}
