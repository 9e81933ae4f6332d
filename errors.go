package doora

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("invalid registration input")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrAlreadyVerified is an exported constant or variable used by the authentication engine.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRefreshInvalid is an exported constant or variable used by the authentication engine.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is an exported constant or variable used by the authentication engine.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUpload is an exported constant or variable used by the authentication engine.
	ErrUpload = errors.New("avatar upload failed")
	// ErrVerificationDispatch is an exported constant or variable used by the authentication engine.
	ErrVerificationDispatch = errors.New("verification email dispatch failed")
	// ErrResetDispatch is an exported constant or variable used by the authentication engine.
	ErrResetDispatch = errors.New("password reset email dispatch failed")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
