// Copyright 2025 XynergyOS
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrorCode is a stable, machine-readable gateway error code.
// Codes are part of the API contract and must not change between releases.
type ErrorCode string

const (
	// ErrCodeAuthenticationRequired indicates no authenticated identity was present.
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"

	// ErrCodeTenantIDRequired indicates no tenant could be resolved for the request.
	ErrCodeTenantIDRequired ErrorCode = "TENANT_ID_REQUIRED"

	// ErrCodeTenantAccessDenied indicates the identity has no access to the target tenant.
	ErrCodeTenantAccessDenied ErrorCode = "TENANT_ACCESS_DENIED"

	// ErrCodePermissionDenied indicates the identity lacks a required permission.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrCodeCircuitOpen indicates a target's circuit breaker rejected the call.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"

	// ErrCodeUpstreamTimeout indicates the guarded call exceeded its deadline.
	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"

	// ErrCodeUpstreamFailure indicates the guarded call itself failed.
	ErrCodeUpstreamFailure ErrorCode = "UPSTREAM_FAILURE"

	// ErrCodeAllProvidersUnavailable indicates AI routing exhausted every candidate.
	ErrCodeAllProvidersUnavailable ErrorCode = "ALL_PROVIDERS_UNAVAILABLE"

	// ErrCodeUnknownService indicates a routed call named an unconfigured service.
	ErrCodeUnknownService ErrorCode = "UNKNOWN_SERVICE"

	// ErrCodeInvalidRequest indicates a malformed inbound request.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeInternal indicates an unexpected gateway-side failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is the structured error surfaced by the gateway core.
// It carries a stable code, a human-readable message and a correlation id.
// Internal causes are preserved for logging but never serialized to callers.
type Error struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id"`
	Cause         error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Expected reports whether this error is part of normal control flow
// (handled gracefully by callers) rather than an unexpected fault.
func (e *Error) Expected() bool {
	switch e.Code {
	case ErrCodeCircuitOpen, ErrCodeAllProvidersUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps the error code to an HTTP status for edge handlers.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrCodeAuthenticationRequired:
		return http.StatusUnauthorized
	case ErrCodeTenantIDRequired, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeTenantAccessDenied, ErrCodePermissionDenied:
		return http.StatusForbidden
	case ErrCodeUnknownService:
		return http.StatusNotFound
	case ErrCodeCircuitOpen, ErrCodeAllProvidersUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a gateway error with a fresh correlation id.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: uuid.New().String(),
	}
}

// WrapError creates a gateway error preserving the underlying cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Cause = cause
	return e
}

// CodeOf extracts the gateway error code from err, or ErrCodeInternal
// if err is not a gateway error.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given gateway error code.
func IsCode(err error, code ErrorCode) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Code == code
}
