package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := New(CodeEthereumRPCError, WithContext("eth_call"), WithCause(cause))

	got := err.Error()
	if !strings.HasPrefix(got, string(CodeEthereumRPCError)+": ") {
		t.Errorf("Error() = %q, want code prefix", got)
	}
	if !strings.Contains(got, "(eth_call)") || !strings.HasSuffix(got, cause.Error()) {
		t.Errorf("Error() = %q, missing context or cause", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeTradingPaused))
	if !errors.Is(err, New(CodeTradingPaused)) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, New(CodeNotFound)) {
		t.Error("errors.Is matched a different code")
	}
}

func TestRetryableDefaults(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeServiceTimeout, true},
		{CodeNonceConflict, true},
		{CodeUnderpriced, true},
		{CodeEthereumConnectionFailed, true},
		{CodeTxReverted, false},
		{CodeValidationError, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(New(tt.code)); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestWrapKeepsExistingAppError(t *testing.T) {
	inner := New(CodeQuoteUnavailable)
	wrapped := Wrap(inner, CodeInternalError, "leg 1")
	if wrapped != inner {
		t.Fatal("Wrap should return the existing AppError")
	}
	if wrapped.Context != "leg 1" {
		t.Errorf("Context = %q, want %q", wrapped.Context, "leg 1")
	}
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if GetCode(Wrap(errors.New("x"), CodeStoreFailure, "")) != CodeStoreFailure {
		t.Error("Wrap of a plain error should carry the code")
	}
}

func TestHasCodeWalksCauses(t *testing.T) {
	err := New(CodeSubmissionFailed, WithCause(New(CodeNonceConflict)))
	if !HasCode(err, CodeNonceConflict) {
		t.Error("HasCode should find the nested code")
	}
	if HasCode(err, CodeTxReverted) {
		t.Error("HasCode found an absent code")
	}
}

func TestMessagesCoverCodes(t *testing.T) {
	if New(CodeTradingPaused).Message == string(CodeTradingPaused) {
		t.Error("CodeTradingPaused has no message")
	}
}
