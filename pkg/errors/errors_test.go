package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "coach not found",
			},
			expected: "NOT_FOUND: coach not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeGateway,
				Message: "payment intent creation failed",
				Err:     errors.New("connection refused"),
			},
			expected: "GATEWAY_ERROR: payment intent creation failed (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructorStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("booking"), CodeNotFound, http.StatusNotFound},
		{"precondition failed", PreconditionFailed("booking cutoff passed"), CodePreconditionFailed, http.StatusBadRequest},
		{"invalid transition", InvalidTransition("booking", "completed", "pending"), CodeInvalidTransition, http.StatusBadRequest},
		{"forbidden", Forbidden("not the booking owner"), CodeForbidden, http.StatusForbidden},
		{"validation", Validation("invalid time format", nil), CodeValidation, http.StatusBadRequest},
		{"gateway", Gateway("refund failed", errors.New("timeout")), CodeGateway, http.StatusBadGateway},
		{"conflict", Conflict("slot is being booked by another request"), CodeConflict, http.StatusConflict},
		{"invalid input", InvalidInput("invalid id"), CodeInvalidInput, http.StatusBadRequest},
		{"internal", Internal("db down", errors.New("eof")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestInvalidTransition_NamesBothStates(t *testing.T) {
	err := InvalidTransition("booking", "completed", "confirmed")

	want := `booking cannot transition from "completed" to "confirmed"`
	if err.Message != want {
		t.Errorf("expected message %q, got %q", want, err.Message)
	}
	if err.Details["from"] != "completed" || err.Details["to"] != "confirmed" {
		t.Errorf("expected details to carry both states, got %v", err.Details)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Internal("wrapped", originalErr)

	if unwrapped := errors.Unwrap(appErr); unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("time slot")
	if got := AsAppError(appErr); got != appErr {
		t.Errorf("AsAppError should return the same AppError")
	}

	plain := errors.New("boom")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("expected plain errors to convert to %s, got %s", CodeInternal, got.Code)
	}
	if got.Err != plain {
		t.Errorf("expected converted error to wrap the original")
	}
}

func TestIsCode(t *testing.T) {
	err := PreconditionFailed("slot is not available")

	if !IsCode(err, CodePreconditionFailed) {
		t.Errorf("expected IsCode to match %s", CodePreconditionFailed)
	}
	if IsCode(err, CodeNotFound) {
		t.Errorf("IsCode matched the wrong code")
	}
	if IsCode(errors.New("plain"), CodeInternal) {
		t.Errorf("IsCode should not match plain errors")
	}
}
