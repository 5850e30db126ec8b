package serviceerr

import (
	"errors"
	"fmt"
	"testing"
)

var errSample = errors.New("sample: boom")

func TestErrorCarriesCodeKindAndCause(t *testing.T) {
	err := New("documents.save_version", "head_lock_failed", KindInternal, errSample)

	if CodeOf(err) != "documents.save_version.head_lock_failed" {
		t.Fatalf("unexpected code %q", CodeOf(err))
	}
	if KindOf(err) != KindInternal {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
	if !errors.Is(err, errSample) {
		t.Fatalf("expected cause to be unwrappable")
	}
	if MessageOf(err) != "internal error" {
		t.Fatalf("internal causes must not leak, got %q", MessageOf(err))
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New("citations.create", "missing_source", KindValidation, errSample))

	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind through wrapping, got %q", KindOf(err))
	}
	if MessageOf(err) != errSample.Error() {
		t.Fatalf("expected validation message to surface cause, got %q", MessageOf(err))
	}
}

func TestNewfOverridesMessage(t *testing.T) {
	err := Newf("contributions.review", "not_pending", KindConflict, errSample, "contribution is %s", "approved")

	if MessageOf(err) != "contribution is approved" {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}
}

func TestPlainErrorsAreInternal(t *testing.T) {
	if KindOf(errSample) != KindInternal {
		t.Fatalf("plain errors should map to internal")
	}
	if CodeOf(errSample) != "" {
		t.Fatalf("plain errors carry no code")
	}
}
