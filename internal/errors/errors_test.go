package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/safe-solver/internal/types"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "categorized error passes through",
			err:        NewNotFoundError("account", "12"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "wrapped categorized error is found",
			err:        fmt.Errorf("lookup: %w", NewInvalidParameterError("id", "not a number")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PARAMETER",
		},
		{
			name:       "service error for unknown user",
			err:        &types.ServiceError{Code: types.CodeUserNotFound, Message: "no such user"},
			wantStatus: http.StatusNotFound,
			wantCode:   types.CodeUserNotFound,
		},
		{
			name:       "service error for bad signature",
			err:        &types.ServiceError{Code: types.CodeInvalidSig, Message: "bad"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   types.CodeInvalidSig,
		},
		{
			name:       "plain error becomes internal",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err)
			if got.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantStatus)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", got.Code, tt.wantCode)
			}
		})
	}

	if Categorize(nil) != nil {
		t.Error("Categorize(nil) should be nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewDatabaseError("commit block", fmt.Errorf("conn reset"))) {
		t.Error("database errors should be retryable")
	}
	if !IsRetryable(fmt.Errorf("raw driver failure")) {
		t.Error("uncategorized errors should be retryable")
	}
	if IsRetryable(NewInvalidInputError("empty address")) {
		t.Error("user input errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(NewInvalidSignatureError("0xabc")) {
		t.Error("signature errors are user errors")
	}
	if IsUserError(NewServiceUnavailableError("events")) {
		t.Error("unavailable is not a user error")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root")
	err := NewDatabaseError("read", cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	if err.ToServiceError().Code != "DATABASE_ERROR" {
		t.Error("ToServiceError should keep the code")
	}
}
