package httpapi_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/P-U-C/b1e55ed/pkg/contributor"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/httpapi"
	"github.com/P-U-C/b1e55ed/pkg/karma"
	"github.com/stretchr/testify/require"
)

func TestWriteError_MapsTypedSentinelsToStatusAndWireCode(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"role forbidden", httpapi.ErrRoleForbidden, http.StatusForbidden, "RoleForbidden"},
		{"kill switch active", httpapi.ErrKillSwitchActive, http.StatusConflict, "KillSwitchActive"},
		{"invalid type", httpapi.ErrInvalidType, http.StatusBadRequest, "InvalidType"},
		{"unauthenticated", httpapi.ErrUnauthenticated, http.StatusUnauthorized, "Unauthenticated"},
		{"writer busy", eventstore.ErrWriterBusy, http.StatusServiceUnavailable, "WriterBusy"},
		{"rate limited", contributor.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
		{"contributor not found", contributor.ErrContributorNotFound, http.StatusNotFound, "ContributorNotFound"},
		{"policy immutable", karma.ErrPolicyImmutable, http.StatusConflict, "PolicyImmutable"},
		{"wrapped sentinel", fmt.Errorf("context: %w", httpapi.ErrRoleForbidden), http.StatusForbidden, "RoleForbidden"},
		{"unknown error", fmt.Errorf("something exploded"), http.StatusInternalServerError, "Internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpapi.WriteErrorForTest(rec, tc.err)
			require.Equal(t, tc.wantStatus, rec.Code)
			require.Contains(t, rec.Body.String(), tc.wantCode)
		})
	}
}

func TestWriteError_InternalErrorsNeverLeakTheirMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	httpapi.WriteErrorForTest(rec, fmt.Errorf("database password is %q", "secret"))
	require.NotContains(t, rec.Body.String(), "secret")
	require.Contains(t, rec.Body.String(), "Internal")
}
