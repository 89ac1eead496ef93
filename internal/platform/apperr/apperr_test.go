package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFieldErrors(t *testing.T) {
	fe := FieldErrors{}
	if fe.OrNil() != nil {
		t.Fatalf("empty field errors should be nil")
	}

	fe.Add("title", "title is required")
	fe.Add("title", "ignored second message")
	fe.Add("endDate", "endDate must be after startDate")

	err := fmt.Errorf("create election: %w", fe.OrNil())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected wrapped field errors to match ErrValidation")
	}
	if fe["title"] != "title is required" {
		t.Fatalf("first message should win, got %q", fe["title"])
	}
	if got := fe.Error(); got != "validation failed: endDate: endDate must be after startDate; title: title is required" {
		t.Fatalf("unexpected message %q", got)
	}

	appErr := Validation(fe)
	if appErr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", appErr.StatusCode())
	}
	if appErr.Details["endDate"] == "" {
		t.Fatalf("expected field detail in app error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}

	conflict := Conflict("duplicate_vote", "already voted", nil)
	if got := FromError(fmt.Errorf("wrap: %w", conflict)); got != conflict {
		t.Fatalf("expected wrapped app error to be returned as is")
	}

	internal := FromError(errors.New("boom"))
	if internal.StatusCode() != http.StatusInternalServerError || internal.Code != "internal_error" {
		t.Fatalf("unexpected internal mapping %+v", internal)
	}

	var nilErr *AppError
	if nilErr.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("nil app error should report 500")
	}
}
