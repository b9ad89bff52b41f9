package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/escalation"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/karma"
	"github.com/P-U-C/b1e55ed/pkg/killswitch"
)

// Sentinel errors for conditions that have no existing typed error lower
// in the stack — everything else in this table wraps a sentinel a core
// package already exports.
var (
	ErrRoleForbidden          = errors.New("httpapi: role forbidden for this action")
	ErrKillSwitchActive       = errors.New("httpapi: kill switch active, action refused")
	ErrNonMonotonicTransition = errors.New("httpapi: kill switch transition is not monotonic without elevated authorization")
	ErrDuplicateDedupeKey     = errors.New("httpapi: dedupe key already seen")
	ErrSchemaVersionUnknown   = errors.New("httpapi: schema version unknown")
	ErrInvalidType            = errors.New("httpapi: invalid event type")
	ErrUnauthenticated        = errors.New("httpapi: missing or invalid bearer token")
)

// wireError is the response body shape spec.md's ingress boundary
// mandates: {error: {code, message, detail?}}.
type wireError struct {
	Error wireErrorBody `json:"error"`
}

type wireErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// codeFor maps an error to its stable wire code and HTTP status by walking
// the typed-sentinel table. The default is an opaque 500 — an error this
// function doesn't recognize is a bug, not something safe to describe to
// the caller.
func codeFor(err error) (status int, code string) {
	switch {
	case errors.Is(err, eventstore.ErrChainBroken):
		return http.StatusInternalServerError, "ChainBroken"
	case errors.Is(err, eventstore.ErrGenesisMismatch):
		return http.StatusInternalServerError, "GenesisMismatch"
	case errors.Is(err, eventstore.ErrWriterBusy):
		return http.StatusServiceUnavailable, "WriterBusy"
	case errors.Is(err, eventstore.ErrSignerUnavailable):
		return http.StatusServiceUnavailable, "SignerUnavailable"

	case errors.Is(err, ErrKillSwitchActive):
		return http.StatusConflict, "KillSwitchActive"
	case errors.Is(err, ErrRoleForbidden):
		return http.StatusForbidden, "RoleForbidden"
	case errors.Is(err, contributor.ErrRateLimited):
		return http.StatusTooManyRequests, "RateLimited"
	case errors.Is(err, ErrNonMonotonicTransition):
		return http.StatusConflict, "NonMonotonicTransition"

	case errors.Is(err, ErrInvalidType):
		return http.StatusBadRequest, "InvalidType"
	case errors.Is(err, contributor.ErrInvalidEventType):
		return http.StatusBadRequest, "InvalidType"
	case errors.Is(err, ErrSchemaVersionUnknown):
		return http.StatusBadRequest, "SchemaVersionUnknown"
	case errors.Is(err, ErrDuplicateDedupeKey):
		return http.StatusConflict, "DuplicateDedupeKey"
	case errors.Is(err, contributor.ErrDuplicatePayload):
		return http.StatusConflict, "DuplicateDedupeKey"
	case errors.Is(err, contributor.ErrContributorNotFound):
		return http.StatusNotFound, "ContributorNotFound"
	case errors.Is(err, contributor.ErrDuplicateNodeID):
		return http.StatusConflict, "DuplicateDedupeKey"
	case errors.Is(err, contributor.ErrAttributionNotFound):
		return http.StatusNotFound, "ContributorNotFound"

	case errors.Is(err, karma.ErrPolicyImmutable):
		return http.StatusConflict, "PolicyImmutable"
	case errors.Is(err, killswitch.ErrNotElevated):
		return http.StatusForbidden, "RoleForbidden"
	case errors.Is(err, killswitch.ErrDeescalateDenied):
		return http.StatusForbidden, "RoleForbidden"

	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthenticated"

	case errors.Is(err, escalation.ErrCeremonyRejected):
		return http.StatusUnprocessableEntity, "CeremonyRejected"

	default:
		return http.StatusInternalServerError, "Internal"
	}
}

// writeError maps err to the wire format and writes it. Anything mapped to
// 500 is logged with the underlying error; the response body never
// includes it.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := codeFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("httpapi: internal error", "code", code, "err", err)
		msg = "an internal error occurred"
	}
	writeJSONError(w, status, code, msg)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(wireError{Error: wireErrorBody{Code: code, Message: message}})
}
