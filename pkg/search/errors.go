// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package search

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// Operation names recorded on RemoteError and by the fake service.
const (
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpStatus = "status"
)

// Reason is a machine-readable classification of a failed call.
type Reason string

const (
	ReasonNotFound                Reason = "NotFound"
	ReasonAccessDenied            Reason = "AccessDenied"
	ReasonInvalidCredentials      Reason = "InvalidCredentials"
	ReasonResourceConflict        Reason = "ResourceConflict"
	ReasonThrottling              Reason = "Throttling"
	ReasonServiceInternalError    Reason = "ServiceInternalError"
	ReasonServiceTimeout          Reason = "ServiceTimeout"
	ReasonServiceLimitExceeded    Reason = "ServiceLimitExceeded"
	ReasonInvalidRequest          Reason = "InvalidRequest"
	ReasonNetworkFailure          Reason = "NetworkFailure"
	ReasonGeneralServiceException Reason = "GeneralServiceException"
)

// Transient reports whether a call failing for this reason may succeed on retry.
func (r Reason) Transient() bool {
	switch r {
	case ReasonThrottling, ReasonServiceInternalError, ReasonServiceTimeout, ReasonNetworkFailure:
		return true
	}
	return false
}

// RemoteError is a call the search service rejected or that never reached it.
type RemoteError struct {
	Op         string
	Kind       Kind
	Name       string
	StatusCode int    // 0 when no response was received
	Code       string // error code reported by the service, if any
	Reason     Reason
	Message    string
	RequestID  string
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "search %s %s/%s failed", e.Op, e.Kind, e.Name)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	switch {
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Transient reports whether the call may be retried.
func (e *RemoteError) Transient() bool {
	return e.Reason.Transient()
}

// NewRemoteError classifies err and wraps it. statusCode may be 0.
func NewRemoteError(op string, kind Kind, name string, statusCode int, code, message string, err error) *RemoteError {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if statusCode == 0 {
			statusCode = respErr.StatusCode
		}
		if code == "" {
			code = respErr.ErrorCode
		}
	}
	return &RemoteError{
		Op:         op,
		Kind:       kind,
		Name:       name,
		StatusCode: statusCode,
		Code:       code,
		Reason:     reasonFor(statusCode, code, err),
		Message:    message,
		Err:        err,
	}
}

// TimeoutError means a sync did not finish before its deadline.
type TimeoutError struct {
	Kind    Kind
	Name    string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sync of %s %q did not finish within %s", e.Kind.Label(), e.Name, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a RemoteError for a missing resource.
func IsNotFound(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Reason == ReasonNotFound
}

// IsTransient reports whether err is a RemoteError worth retrying.
func IsTransient(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Transient()
}

// reasonFor maps a failed call to a Reason. The HTTP status wins when there is
// one; otherwise the service code and error text are matched.
func reasonFor(statusCode int, code string, err error) Reason {
	switch statusCode {
	case 0:
	case http.StatusNotFound:
		return ReasonNotFound
	case http.StatusForbidden:
		return ReasonAccessDenied
	case http.StatusUnauthorized:
		return ReasonInvalidCredentials
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ReasonResourceConflict
	case http.StatusTooManyRequests:
		return ReasonThrottling
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ReasonServiceTimeout
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return ReasonServiceInternalError
	case http.StatusBadRequest:
		if strings.Contains(code, "QuotaExceeded") || strings.Contains(code, "LimitExceeded") {
			return ReasonServiceLimitExceeded
		}
		return ReasonInvalidRequest
	default:
		return ReasonGeneralServiceException
	}

	if err == nil && code == "" {
		return ReasonGeneralServiceException
	}
	errStr := code
	if err != nil {
		errStr += " " + err.Error()
	}

	switch {
	case strings.Contains(errStr, "ResourceNotFound"),
		strings.Contains(errStr, "NotFound"):
		return ReasonNotFound

	case strings.Contains(errStr, "AuthorizationFailed"),
		strings.Contains(errStr, "Forbidden"):
		return ReasonAccessDenied

	case strings.Contains(errStr, "Unauthorized"),
		strings.Contains(errStr, "AuthenticationFailed"),
		strings.Contains(errStr, "InvalidAuthenticationToken"):
		return ReasonInvalidCredentials

	case strings.Contains(errStr, "Conflict"),
		strings.Contains(errStr, "ResourceExists"):
		return ReasonResourceConflict

	case strings.Contains(errStr, "TooManyRequests"),
		strings.Contains(errStr, "Throttling"):
		return ReasonThrottling

	case strings.Contains(errStr, "Timeout"),
		strings.Contains(errStr, "timeout"):
		return ReasonServiceTimeout

	case strings.Contains(errStr, "QuotaExceeded"),
		strings.Contains(errStr, "LimitExceeded"):
		return ReasonServiceLimitExceeded

	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "dial"),
		strings.Contains(errStr, "EOF"):
		return ReasonNetworkFailure

	default:
		return ReasonGeneralServiceException
	}
}
