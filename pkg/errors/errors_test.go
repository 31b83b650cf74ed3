package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name         string
		err          *Error
		expectedType ErrorType
	}{
		{
			name:         "OutOfMemory",
			err:          NewOutOfMemoryError("read_buffer.new", fmt.Errorf("alloc failed")),
			expectedType: ErrorTypeOutOfMemory,
		},
		{
			name:         "Protocol",
			err:          NewProtocolError("tokenizer.next_line", "bare CR in header region"),
			expectedType: ErrorTypeProtocol,
		},
		{
			name:         "Transport",
			err:          NewTransportError("read", fmt.Errorf("connection reset")),
			expectedType: ErrorTypeTransport,
		},
		{
			name:         "Canceled",
			err:          NewCanceledError("read_request"),
			expectedType: ErrorTypeCanceled,
		},
		{
			name:         "Validation",
			err:          NewValidationError("header.set", "header name contains invalid characters"),
			expectedType: ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.expectedType {
				t.Fatalf("expected type %s, got %s", tt.expectedType, tt.err.Type)
			}
			if tt.err.Error() == "" {
				t.Fatalf("expected non-empty error string")
			}
			if GetErrorType(tt.err) != tt.expectedType {
				t.Fatalf("GetErrorType mismatch")
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewTransportError("write", cause)
	if err.Unwrap() != cause {
		t.Fatalf("expected Unwrap to return cause")
	}
}

func TestErrorIs(t *testing.T) {
	a := NewProtocolError("parser", "bad status line")
	b := NewProtocolError("tokenizer", "oversize line")
	if !a.Is(b) {
		t.Fatalf("expected errors of the same type to match Is")
	}

	c := NewTransportError("read", nil)
	if a.Is(c) {
		t.Fatalf("expected errors of different types not to match Is")
	}
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(NewCanceledError("read")) {
		t.Fatalf("expected structured canceled error to report canceled")
	}
	if !IsCanceled(context.Canceled) {
		t.Fatalf("expected context.Canceled to report canceled")
	}
	if IsCanceled(NewProtocolError("x", "y")) {
		t.Fatalf("expected protocol error not to report canceled")
	}
}

func TestIsProtocolAndTransport(t *testing.T) {
	if !IsProtocolError(NewProtocolError("x", "y")) {
		t.Fatalf("expected protocol error to be detected")
	}
	if !IsTransportError(NewTransportError("x", nil)) {
		t.Fatalf("expected transport error to be detected")
	}
	if IsProtocolError(NewTransportError("x", nil)) {
		t.Fatalf("transport error should not be a protocol error")
	}
}
