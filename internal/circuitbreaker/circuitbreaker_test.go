package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/circuitbreaker"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("quotes")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour

	var transitions []circuitbreaker.State
	cfg.OnStateChange = func(_ string, _, to circuitbreaker.State) {
		transitions = append(transitions, to)
	}
	b := circuitbreaker.New[int](cfg)

	boom := errors.New("rpc down")
	for i := 0; i < 2; i++ {
		if _, err := b.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}

	if b.State() != circuitbreaker.StateOpen {
		t.Fatalf("State = %s, want open", b.State())
	}

	_, err := b.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeCircuitOpen)
	}
	if !apperror.IsRetryable(err) {
		t.Error("open breaker errors should be retryable")
	}
	if len(transitions) != 1 || transitions[0] != circuitbreaker.StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}

func TestBreaker_PassesResults(t *testing.T) {
	b := circuitbreaker.New[string](circuitbreaker.DefaultConfig("ok"))
	got, err := b.Execute(func() (string, error) { return "fine", nil })
	if err != nil || got != "fine" {
		t.Errorf("Execute = %q, %v", got, err)
	}
}

func TestBreaker_IgnoredCodesDoNotTrip(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("quotes")
	cfg.ConsecutiveFailures = 2
	cfg.IsSuccessful = circuitbreaker.IgnoreCodes(apperror.CodeQuoteUnavailable)
	b := circuitbreaker.New[int](cfg)

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (int, error) { return 0, apperror.New(apperror.CodeQuoteUnavailable) })
		if apperror.GetCode(err) != apperror.CodeQuoteUnavailable {
			t.Fatalf("call %d: code = %s", i, apperror.GetCode(err))
		}
	}
	if b.State() != circuitbreaker.StateClosed {
		t.Errorf("State = %s, want closed", b.State())
	}
}
