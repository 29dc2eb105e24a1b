package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_MessageIncludesField(t *testing.T) {
	err := Validation("email", "is required")
	if got := err.Error(); got != "validation: email: is required" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := Capacity("slot is full")
	wrapped := fmt.Errorf("commit: %w", base)
	if KindOf(wrapped) != KindCapacity {
		t.Errorf("expected capacity kind, got %q", KindOf(wrapped))
	}
	if !IsCapacity(wrapped) {
		t.Error("expected IsCapacity to be true")
	}
	if IsTransient(wrapped) {
		t.Error("expected IsTransient to be false")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != "" {
		t.Error("expected empty kind for plain error")
	}
}

func TestTransient_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("load windows", cause)
	if !errors.Is(err, cause) {
		t.Error("expected transient error to unwrap to its cause")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("time", "bad"), http.StatusBadRequest},
		{NotFound("doctor"), http.StatusNotFound},
		{Capacity("full"), http.StatusConflict},
		{Conflict("state"), http.StatusConflict},
		{Unauthorized("no user"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{Transient("db", nil), http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
