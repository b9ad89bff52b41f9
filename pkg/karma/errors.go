package karma

import "errors"

var (
	// ErrIntentNotFound is returned by store lookups for an unknown intent.
	ErrIntentNotFound = errors.New("karma: intent not found")
	// ErrNotLive names a settlement attempted when execution mode is not
	// "live". Settle itself returns no error: it logs such an attempt and
	// returns nil.
	ErrNotLive = errors.New("karma: settlement attempted outside live execution mode")
	// ErrPolicyImmutable is returned when a non-elevated caller tries to
	// change settlement policy after the first settlement has happened.
	ErrPolicyImmutable = errors.New("karma: settlement policy is immutable after first settlement")
)
