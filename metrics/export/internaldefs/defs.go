package internaldefs

import (
	doora "github.com/doora-app/doora"
)

// CounterDef defines a public type used by doora APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   doora.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by doora APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   doora.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: doora.MetricLoginSuccess, Name: "doora_login_success_total", Help: "Successful login attempts."},
	{ID: doora.MetricLoginFailure, Name: "doora_login_failure_total", Help: "Failed login attempts."},
	{ID: doora.MetricRefreshSuccess, Name: "doora_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: doora.MetricRefreshFailure, Name: "doora_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: doora.MetricRefreshReuseDetected, Name: "doora_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: doora.MetricLogout, Name: "doora_logout_total", Help: "Logout operations."},
	{ID: doora.MetricRegisterSuccess, Name: "doora_register_success_total", Help: "Successful registrations."},
	{ID: doora.MetricRegisterDuplicate, Name: "doora_register_duplicate_total", Help: "Registration attempts rejected as duplicate."},
	{ID: doora.MetricRegisterFailure, Name: "doora_register_failure_total", Help: "Failed registrations."},
	{ID: doora.MetricUploadFailure, Name: "doora_upload_failure_total", Help: "Failed avatar uploads."},
	{ID: doora.MetricVerificationRequest, Name: "doora_email_verification_request_total", Help: "Email verification requests."},
	{ID: doora.MetricVerificationSuccess, Name: "doora_email_verification_success_total", Help: "Successful email verifications."},
	{ID: doora.MetricVerificationFailure, Name: "doora_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: doora.MetricResetRequest, Name: "doora_password_reset_request_total", Help: "Password reset requests."},
	{ID: doora.MetricResetConfirmSuccess, Name: "doora_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: doora.MetricResetConfirmFailure, Name: "doora_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: doora.MetricMailDispatchFailure, Name: "doora_mail_dispatch_failure_total", Help: "Failed transactional mail dispatches."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: doora.MetricValidateLatency, Name: "doora_validate_latency_seconds", Help: "Access token validation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
