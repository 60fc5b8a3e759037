package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError("load faults", "warehouse unavailable", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause")
	}
	if got := err.Error(); got != "load faults: warehouse unavailable: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Op != "load faults" {
		t.Fatalf("expected AppError with op")
	}
	if got := NewAppError("search", "no index", nil).Error(); got != "search: no index" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewAppError("procedure", "fault not found", errors.New("no rows")))
	if got := UserMessage(wrapped); got != "fault not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UserMessage(errors.New("boom")); got != "internal error" {
		t.Fatalf("unexpected message %q", got)
	}
}
