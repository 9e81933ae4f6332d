package doora

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by doora APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Token    TokenConfig
	Store    StoreConfig
	Register RegisterConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by doora APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by doora APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Cost           int
	UpgradeOnLogin bool
}

// TokenConfig governs the single-use email tokens. The base URLs are the
// pages that receive the token as a query parameter; the full link is what
// lands in the email.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	VerifyBaseURL   string
	ResetBaseURL    string
}

// StoreConfig defines a public type used by doora APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix string
}

// RegisterConfig defines a public type used by doora APIs.
//
// RegisterConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterConfig struct {
	DefaultRole        string
	MaxAvatarBytes     int64
	AllowedAvatarTypes []string
}

// AuditConfig defines a public type used by doora APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by doora APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Callers must still set
// both JWT secrets and the token base URLs before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "doora",
		},
		Password: PasswordConfig{
			Cost:           10,
			UpgradeOnLogin: true,
		},
		Token: TokenConfig{
			VerificationTTL: time.Hour,
			ResetTTL:        time.Hour,
		},
		Store: StoreConfig{
			RedisPrefix: "doora",
		},
		Register: RegisterConfig{
			DefaultRole:    "user",
			MaxAvatarBytes: 5 << 20,
			AllowedAvatarTypes: []string{
				"image/jpeg",
				"image/png",
				"image/webp",
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.Register.AllowedAvatarTypes = append([]string(nil), cfg.Register.AllowedAvatarTypes...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < 32 {
		return errors.New("JWT AccessSecret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		return errors.New("JWT RefreshSecret must be at least 32 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}

	// Password
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be between 4 and 31")
	}

	// Single-use tokens
	if c.Token.VerificationTTL <= 0 {
		return errors.New("Token VerificationTTL must be > 0")
	}
	if c.Token.ResetTTL <= 0 {
		return errors.New("Token ResetTTL must be > 0")
	}

	// Store
	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}
	if strings.Contains(c.Store.RedisPrefix, " ") {
		return errors.New("Store RedisPrefix must not contain spaces")
	}

	// Registration
	if c.Register.DefaultRole == "" {
		return errors.New("Register DefaultRole is required")
	}
	if c.Register.MaxAvatarBytes <= 0 {
		return errors.New("Register MaxAvatarBytes must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
