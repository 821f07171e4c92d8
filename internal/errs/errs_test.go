package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	wrapped := fmt.Errorf("approve sale: %w", Transition("sale", "s1", "completed", "approve"))
	if !errors.Is(wrapped, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", wrapped)
	}

	var te *TransitionError
	if !errors.As(wrapped, &te) || te.From != "completed" {
		t.Errorf("Expected TransitionError from completed, got %v", wrapped)
	}

	nf := fmt.Errorf("complete sale: %w", NotFound("variant", "v9"))
	if !errors.Is(nf, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", nf)
	}
	if errors.Is(nf, ErrInvalidTransition) {
		t.Error("NotFound must not match ErrInvalidTransition")
	}
}

func TestHelpersWrapSentinels(t *testing.T) {
	if !errors.Is(Invalid("quantity %d", 0), ErrInvalidInput) {
		t.Error("Invalid should wrap ErrInvalidInput")
	}
	if !errors.Is(Insufficient("product p1", 1, 3), ErrInsufficientStock) {
		t.Error("Insufficient should wrap ErrInsufficientStock")
	}
}
