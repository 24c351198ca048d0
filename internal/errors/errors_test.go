package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_SentinelMatching(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindMalformedRequest, ErrMalformedRequest},
		{KindUnknownOperation, ErrUnknownOperation},
		{KindUnexpectedPayload, ErrUnexpectedPayload},
		{KindPayloadTooLong, ErrPayloadTooLong},
		{KindResourceUnavailable, ErrResourceUnavailable},
		{KindSelfReferentialOperation, ErrSelfReferentialOperation},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewRequestError(tt.kind, "line")
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", err)
			}
			wrapped := fmt.Errorf("handler: %w", err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Error("sentinel should match through wrapping")
			}
			for _, other := range kindSentinels {
				if other != tt.sentinel && errors.Is(err, other) {
					t.Errorf("%v unexpectedly matches %v", err, other)
				}
			}
			if got := KindOf(wrapped); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestRequestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RequestError
		want string
	}{
		{
			name: "kind only",
			err:  NewRequestError(KindMalformedRequest, "read"),
			want: "malformed request",
		},
		{
			name: "target and detail",
			err:  NewRequestError(KindPayloadTooLong, "write a.txt x").WithTarget("a.txt").WithDetail("%d bytes, limit %d", 62, 50),
			want: "payload too long [target=a.txt]: 62 bytes, limit 50",
		},
		{
			name: "with cause",
			err:  NewRequestError(KindResourceUnavailable, "read a.txt").WithTarget("a.txt").WithCause(fs.ErrPermission),
			want: "resource unavailable [target=a.txt]: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestError_UnwrapCause(t *testing.T) {
	err := NewRequestError(KindResourceUnavailable, "read a.txt").WithCause(fs.ErrNotExist)

	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("cause should be reachable through errors.Is")
	}
	if errors.Unwrap(err) != fs.ErrNotExist {
		t.Error("Unwrap() should return the cause")
	}
}

func TestRequestError_IsSameKind(t *testing.T) {
	a := NewRequestError(KindUnknownOperation, "copy a.txt")
	b := NewRequestError(KindUnknownOperation, "move b.txt")
	c := NewRequestError(KindMalformedRequest, "read")

	if !errors.Is(a, b) {
		t.Error("errors of the same kind should match")
	}
	if errors.Is(a, c) {
		t.Error("errors of different kinds should not match")
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"validation", NewRequestError(KindUnexpectedPayload, "empty a.txt x"), SeverityWarning},
		{"self reference", NewRequestError(KindSelfReferentialOperation, "read read.txt"), SeverityWarning},
		{"io", NewRequestError(KindResourceUnavailable, "read a.txt"), SeverityError},
		{"foreign", New("boom"), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeverityOf(tt.err); got != tt.want {
				t.Errorf("SeverityOf() = %v, want %v", got, tt.want)
			}
		})
	}
	if got := KindOf(New("boom")); got != KindUnknown {
		t.Errorf("KindOf(foreign) = %v, want %v", got, KindUnknown)
	}
}
