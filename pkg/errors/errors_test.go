package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindInvalidInput, "invalid_input"},
		{KindAuthentication, "authentication"},
		{KindNotFound, "not_found"},
		{KindAlgorithmUnavailable, "algorithm_unavailable"},
		{KindNetwork, "network"},
		{KindServer, "server"},
		{KindPolicy, "policy"},
		{KindInternal, "internal"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "op and message and err",
			err:      &Error{Op: "client.TransferScan", Message: "transfer failed", Err: fmt.Errorf("connection refused")},
			expected: "client.TransferScan: transfer failed: connection refused",
		},
		{
			name:     "op and err",
			err:      &Error{Op: "checksum.File", Err: fmt.Errorf("no such file")},
			expected: "checksum.File: no such file",
		},
		{
			name:     "op and message",
			err:      &Error{Op: "client.TransferScan", Message: "transfer failed"},
			expected: "client.TransferScan: transfer failed",
		},
		{
			name:     "message and err",
			err:      &Error{Message: "transfer failed", Err: fmt.Errorf("connection refused")},
			expected: "transfer failed: connection refused",
		},
		{
			name:     "message only",
			err:      &Error{Message: "transfer failed"},
			expected: "transfer failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestE(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := E(KindNotFound, "checksum.File", "open artifact", cause)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("E() did not return *Error")
	}
	if e.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", e.Kind, KindNotFound)
	}
	if e.Op != "checksum.File" {
		t.Errorf("Op = %q, want checksum.File", e.Op)
	}
	if e.Message != "open artifact" {
		t.Errorf("Message = %q, want 'open artifact'", e.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestWrap_KeepsKind(t *testing.T) {
	inner := E(KindPolicy, "check.Evaluate", "found legal violations")
	wrapped := Wrap(inner, "runner.Check")

	if GetKind(wrapped) != KindPolicy {
		t.Errorf("GetKind(wrapped) = %v, want %v", GetKind(wrapped), KindPolicy)
	}
	if !errors.Is(wrapped, ErrPolicyBreak) {
		t.Error("wrapped policy error should match ErrPolicyBreak")
	}
	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestGetKind_ForeignError(t *testing.T) {
	if got := GetKind(fmt.Errorf("plain")); got != KindUnknown {
		t.Errorf("GetKind(plain) = %v, want unknown", got)
	}
	if IsNotFound(fmt.Errorf("plain")) {
		t.Error("plain error should not be not_found")
	}
}

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, KindAuthentication},
		{403, KindAuthentication},
		{404, KindNotFound},
		{422, KindInvalidInput},
		{500, KindServer},
		{503, KindServer},
		{302, KindUnknown},
	}
	for _, tt := range tests {
		if got := KindFromStatus(tt.status); got != tt.want {
			t.Errorf("KindFromStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
