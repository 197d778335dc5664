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
	"testing"
)

func TestNewErrorAssignsCorrelationID(t *testing.T) {
	e := NewError(ErrCodeCircuitOpen, "service billing unavailable")

	if e.CorrelationID == "" {
		t.Error("expected non-empty correlation id")
	}
	if e.Code != ErrCodeCircuitOpen {
		t.Errorf("expected code CIRCUIT_OPEN, got %s", e.Code)
	}

	other := NewError(ErrCodeCircuitOpen, "service billing unavailable")
	if e.CorrelationID == other.CorrelationID {
		t.Error("expected distinct correlation ids per error")
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := WrapError(ErrCodeUpstreamFailure, "billing call failed", cause)

	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	wrapped := fmt.Errorf("routing: %w", e)
	if CodeOf(wrapped) != ErrCodeUpstreamFailure {
		t.Errorf("expected code to survive wrapping, got %s", CodeOf(wrapped))
	}
	if !IsCode(wrapped, ErrCodeUpstreamFailure) {
		t.Error("expected IsCode to match through wrapping")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR for plain errors, got %s", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeAuthenticationRequired, http.StatusUnauthorized},
		{ErrCodeTenantIDRequired, http.StatusBadRequest},
		{ErrCodeTenantAccessDenied, http.StatusForbidden},
		{ErrCodePermissionDenied, http.StatusForbidden},
		{ErrCodeCircuitOpen, http.StatusServiceUnavailable},
		{ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{ErrCodeUpstreamFailure, http.StatusBadGateway},
		{ErrCodeAllProvidersUnavailable, http.StatusServiceUnavailable},
		{ErrCodeUnknownService, http.StatusNotFound},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := NewError(tt.code, "x")
			if got := e.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestExpected(t *testing.T) {
	if !NewError(ErrCodeCircuitOpen, "x").Expected() {
		t.Error("circuit open should be an expected control-flow error")
	}
	if NewError(ErrCodeUpstreamFailure, "x").Expected() {
		t.Error("upstream failure should not be an expected control-flow error")
	}
}
