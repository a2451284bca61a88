package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "fetch payment")

	if !stdErrors.Is(err, cause) {
		t.Fatal("cause lost through Wrap")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("code = %s", err.Code())
	}
	if err.Error() != "DEPENDENCY_ERROR: fetch payment" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeConflict, "insufficient stock")
	wrapped := fmt.Errorf("checkout: %w", inner)

	typed := As(wrapped)
	if typed == nil || typed.Code() != CodeConflict {
		t.Fatalf("expected conflict, got %v", typed)
	}

	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors must not match")
	}
	if As(nil) != nil {
		t.Fatal("nil must not match")
	}
}

func TestWithDetails(t *testing.T) {
	t.Parallel()

	err := New(CodeValidation, "bad input").WithDetails(map[string]any{"campo": "cantidad"})
	details, ok := err.Details().(map[string]any)
	if !ok || details["campo"] != "cantidad" {
		t.Fatalf("details = %v", err.Details())
	}
}

func TestMetadataForStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeInternal, http.StatusInternalServerError},
		{CodeDependency, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.code, got, tc.status)
		}
	}

	if got := MetadataFor(Code("MYSTERY")).HTTPStatus; got != http.StatusInternalServerError {
		t.Fatalf("unknown code must fall back to internal, got %d", got)
	}
}
