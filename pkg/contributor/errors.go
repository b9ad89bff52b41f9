package contributor

import "errors"

var (
	// ErrDuplicateNodeID means a contributor already registered under this
	// node id. Rejected at ingestion; no state change.
	ErrDuplicateNodeID = errors.New("contributor: duplicate node id")
	// ErrContributorNotFound means the referenced contributor id does not
	// exist.
	ErrContributorNotFound = errors.New("contributor: not found")
	// ErrInvalidEventType means a submission's event type is not under the
	// signal.* namespace.
	ErrInvalidEventType = errors.New("contributor: event type not under signal.* namespace")
	// ErrRateLimited means this contributor has exceeded its submission
	// rate limit. Rejected at ingestion; no state change.
	ErrRateLimited = errors.New("contributor: rate limited")
	// ErrDuplicatePayload means another contributor submitted an
	// identical canonicalized payload within the dedupe window. Rejected
	// at ingestion; no state change.
	ErrDuplicatePayload = errors.New("contributor: duplicate payload within window")
	// ErrAttributionNotFound means the referenced attribution id does not
	// exist.
	ErrAttributionNotFound = errors.New("contributor: attribution not found")
)
