package attendance

import "errors"

// Reason is a rejection code returned to callers.
type Reason string

const (
	ReasonIdentityInvalid          Reason = "identity_invalid"
	ReasonIdentityResolutionFailed Reason = "identity_resolution_failed"
	ReasonNotOrganizationMember    Reason = "not_organization_member"
	ReasonNotAdmin                 Reason = "not_admin"
	ReasonSessionNotFound          Reason = "session_not_found"
	ReasonWindowClosed             Reason = "window_closed"
	ReasonExcusedWindowClosed      Reason = "excused_window_closed"
	ReasonInvalidExcusedReason     Reason = "invalid_excused_reason"
	ReasonDuplicateCheckIn         Reason = "duplicate_check_in"
	ReasonInvalidTimestamp         Reason = "invalid_timestamp"
	ReasonInvalidKind              Reason = "invalid_kind"
	ReasonInternal                 Reason = "internal"
)

// Retryable reports whether a caller may retry a request that failed with r.
func (r Reason) Retryable() bool {
	return r == ReasonInternal || r == ReasonIdentityResolutionFailed
}

// ErrCodeSpaceExhausted is returned when no free session code was found
// within the configured number of attempts.
var ErrCodeSpaceExhausted = errors.New("attendance: no free session code")

// Rejection is a terminal failure carrying its Reason.
type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return string(r.Reason) + ": " + r.Err.Error()
	}
	return string(r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(reason Reason, err error) error {
	return &Rejection{Reason: reason, Err: err}
}

// ReasonOf classifies err; anything that is not a Rejection is internal.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonInternal
}
