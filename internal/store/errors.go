package store

// PreconditionError is returned when a business rule fails locally,
// before any network call is issued.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

var (
	// ErrNotAuthenticated is returned by mutations that require a session.
	ErrNotAuthenticated = &PreconditionError{Reason: "not authenticated"}

	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = &PreconditionError{Reason: "cannot follow yourself"}

	// ErrProfileMissing is returned when a confirmed mutation references a
	// profile the daemon no longer returns.
	ErrProfileMissing = &PreconditionError{Reason: "profile not found"}
)
