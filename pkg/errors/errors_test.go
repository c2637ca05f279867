package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	if meta := MetadataFor(CodeUnauthorized); meta.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeUpstreamTransient); !meta.Retryable {
		t.Fatal("upstream transient should be retryable")
	}
	if meta := MetadataFor(CodeUpstreamRejected); meta.Retryable {
		t.Fatal("upstream rejection must not be retryable")
	}
	if meta := MetadataFor(Code("BOGUS")); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code should map to internal, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(CodeDependency, cause, "call fleet api")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeNotFound, "agent missing")
	wrapped := fmt.Errorf("handling request: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeUpstreamAuth, errors.New("401 from upstream"), "list drivers")
	d := Dump(err)

	if d.Code != CodeUpstreamAuth {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries got %d", len(d.Chain))
	}
}
