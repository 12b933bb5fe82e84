package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesOpAndCode(t *testing.T) {
	err := New(
		"codec/configure",
		CodeNotSupported,
		WithMessage("engine rejected configuration"),
		WithCause(errors.New("unknown codec string")),
	)

	out := err.Error()
	if !strings.Contains(out, "op=codec/configure") {
		t.Fatalf("expected op marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=not_supported") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "message=\"engine rejected configuration\"") {
		t.Fatalf("expected message in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"unknown codec string\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("drain interrupted")
	err := New("codec/flush", CodeEncoding, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause through Unwrap")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New("codec/process", CodeData))
	if !errors.Is(err, New("", CodeData)) {
		t.Fatalf("expected code-based match through wrapping")
	}
	if errors.Is(err, New("", CodeAbort)) {
		t.Fatalf("unexpected match against a different code")
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidState("codec/decode", "codec is closed"))
	if got := CodeOf(err); got != CodeInvalidState {
		t.Fatalf("expected invalid_state, got %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code for plain error, got %q", got)
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if e.Error() != "<nil>" {
		t.Fatalf("expected <nil> for nil receiver, got %q", e.Error())
	}
}
