package httpapi

import (
	"log/slog"
	"net/http"
)

// CodeForTest exposes codeFor to the external test package. Internal
// callers use codeFor directly; this indirection exists only so
// errors_test.go can live in package httpapi_test alongside the rest of
// this package's tests.
func CodeForTest(err error) (status int, code string) {
	return codeFor(err)
}

// WriteErrorForTest exposes writeError to the external test package, using
// a discard logger so a deliberately-internal test error doesn't spam test
// output.
func WriteErrorForTest(w http.ResponseWriter, err error) {
	writeError(w, slog.New(slog.NewTextHandler(discardWriter{}, nil)), err)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
