// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/stretchr/testify/assert"
)

func TestReasonFor(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		err    error
		want   Reason
	}{
		{"not found", http.StatusNotFound, "", nil, ReasonNotFound},
		{"forbidden", http.StatusForbidden, "", nil, ReasonAccessDenied},
		{"unauthorized", http.StatusUnauthorized, "", nil, ReasonInvalidCredentials},
		{"precondition", http.StatusPreconditionFailed, "PreconditionFailed", nil, ReasonResourceConflict},
		{"throttled", http.StatusTooManyRequests, "", nil, ReasonThrottling},
		{"gateway timeout", http.StatusGatewayTimeout, "", nil, ReasonServiceTimeout},
		{"unavailable", http.StatusServiceUnavailable, "", nil, ReasonServiceInternalError},
		{"bad request", http.StatusBadRequest, "InvalidRequestParameter", nil, ReasonInvalidRequest},
		{"quota", http.StatusBadRequest, "IndexQuotaExceeded", nil, ReasonServiceLimitExceeded},
		{"teapot", http.StatusTeapot, "", nil, ReasonGeneralServiceException},
		{"refused", 0, "", errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), ReasonNetworkFailure},
		{"eof", 0, "", io.ErrUnexpectedEOF, ReasonNetworkFailure},
		{"code only", 0, "TooManyRequests", nil, ReasonThrottling},
		{"nothing", 0, "", nil, ReasonGeneralServiceException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reasonFor(tt.status, tt.code, tt.err))
		})
	}
}

func TestNewRemoteError_FromResponseError(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://contoso.search.windows.net/indexes('x')", nil)
	respErr := runtime.NewResponseError(&http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Status:     "503 Service Unavailable",
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":"ServiceUnavailable","message":"busy"}}`)),
		Request:    req,
	})

	err := NewRemoteError(OpGet, KindIndex, "x", 0, "", "busy", respErr)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, "ServiceUnavailable", err.Code)
	assert.True(t, err.Transient())
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "503 ServiceUnavailable: busy")
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Kind: KindIndexer, Name: "docs-indexer", Timeout: time.Second, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "docs-indexer")
}
