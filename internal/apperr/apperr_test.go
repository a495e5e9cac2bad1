package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsByKind(t *testing.T) {
	err := fmt.Errorf("failed to load products: %w", Server(500, "boom"))

	if !errors.Is(err, ErrServer) {
		t.Error("expected wrapped server error to match ErrServer")
	}
	if errors.Is(err, ErrAuth) {
		t.Error("server error must not match ErrAuth")
	}
	if KindOf(err) != KindServer {
		t.Errorf("KindOf = %s, want %s", KindOf(err), KindServer)
	}
}

func TestErrorIsDistinguishesSentinels(t *testing.T) {
	errA := Validation("Name is required")
	errB := Validation("Your cart is empty")
	sameText := Validation("Name is required")

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same sentinel", errA, errA, true},
		{"wrapped sentinel", fmt.Errorf("failed to register: %w", errA), errA, true},
		{"other sentinel of same kind", errA, errB, false},
		{"same message, different value", errA, sameText, false},
		{"kind sentinel", errA, ErrValidation, true},
		{"other kind sentinel", errA, ErrServer, false},
		{"status is not a kind sentinel", Server(500, ""), Server(500, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"server message", Server(400, "Product not found"), "Product not found"},
		{"server without message", Server(500, ""), GenericMessage},
		{"validation", Validation("Passwords do not match"), "Passwords do not match"},
		{"network", Network(errors.New("dial tcp: refused")), "Network error, please try again"},
		{"unclassified", errors.New("bad things"), GenericMessage},
		{"cancelled", context.Canceled, "Request cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Network(cause)

	if !errors.Is(err, cause) {
		t.Error("expected network error to unwrap to its cause")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf = %s, want %s", KindOf(err), KindNetwork)
	}
}
