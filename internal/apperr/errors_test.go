package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorIsInvalid(t *testing.T) {
	err := fmt.Errorf("repository: create: %w", Invalid("a: required", "b: must be int"))
	if !errors.Is(err, ErrInvalid) {
		t.Fatal("expected ErrInvalid")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Messages) != 2 {
		t.Fatalf("messages = %v", ve)
	}
}

func TestIOWrapsPlainErrors(t *testing.T) {
	base := errors.New("disk full")
	err := IO("storage: save", base)
	if !errors.Is(err, ErrIO) || !errors.Is(err, base) {
		t.Errorf("err = %v, want ErrIO wrapping base", err)
	}
}

func TestIOKeepsTaxonomy(t *testing.T) {
	err := IO("index: get", fmt.Errorf("page 3: %w", ErrNotFound))
	if errors.Is(err, ErrIO) {
		t.Error("NotFound must not be reclassified as IO")
	}
	if IO("x", nil) != nil {
		t.Error("nil should stay nil")
	}
}
