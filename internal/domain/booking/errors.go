package booking

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound  = errors.New("appointment not found")
	ErrInvalid   = errors.New("invalid input")
	ErrForbidden = errors.New("not allowed")

	// ErrStatusConflict means the appointment changed status underneath the caller.
	ErrStatusConflict = errors.New("appointment status changed concurrently")
	// ErrTransition is an illegal status change, including any change out of
	// a terminal status.
	ErrTransition = errors.New("status transition not allowed")
)

// Booking rejection causes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrBranchNotFound     = errors.New("branch not found")
	ErrBranchUnresolvable = errors.New("doctor has no branch, cannot infer")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrSlotTaken          = errors.New("slot already taken")
)

// Rejection is a booking refused for per-field reasons. It wraps exactly one
// cause so callers can branch with errors.Is.
type Rejection struct {
	Fields map[string]string
	cause  error
}

func reject(cause error, field, reason string) *Rejection {
	return &Rejection{Fields: map[string]string{field: reason}, cause: cause}
}

func (r *Rejection) Error() string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + r.Fields[k]
	}
	return r.cause.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (r *Rejection) Unwrap() error { return r.cause }
