package authfail

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/hitoshi/campushub/internal/identity"
)

func providerErr(code string) error {
	return &identity.AuthError{Code: code, StatusCode: 400}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{name: "nil error", err: nil, want: ReasonOther},
		{name: "wrong password", err: providerErr("ERROR_WRONG_PASSWORD"), want: ReasonInvalidCredentials},
		{name: "invalid password", err: providerErr("INVALID_PASSWORD"), want: ReasonInvalidCredentials},
		{name: "invalid login credentials", err: providerErr("INVALID_LOGIN_CREDENTIALS"), want: ReasonInvalidCredentials},
		{name: "invalid email", err: providerErr("INVALID_EMAIL"), want: ReasonInvalidEmailFormat},
		{name: "email not found", err: providerErr("EMAIL_NOT_FOUND"), want: ReasonUserNotFound},
		{name: "email exists", err: providerErr("EMAIL_EXISTS"), want: ReasonEmailInUse},
		{name: "weak password", err: providerErr("ERROR_WEAK_PASSWORD"), want: ReasonWeakPassword},
		{name: "too many attempts", err: providerErr("TOO_MANY_ATTEMPTS_TRY_LATER"), want: ReasonRateLimited},
		{name: "unknown provider code", err: providerErr("SOMETHING_NEW"), want: ReasonOther},
		{name: "wrapped provider error", err: fmt.Errorf("sign in: %w", providerErr("ERROR_USER_NOT_FOUND")), want: ReasonUserNotFound},
		{name: "network error", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: ReasonNetwork},
		{name: "wrapped network error", err: fmt.Errorf("identity request failed: %w", &net.DNSError{Name: "identity.example.com"}), want: ReasonNetwork},
		{name: "plain error", err: errors.New("boom"), want: ReasonOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage_FixedWording(t *testing.T) {
	tests := []struct {
		reason Reason
		want   string
	}{
		{reason: ReasonInvalidCredentials, want: "Incorrect email or password."},
		{reason: ReasonUserNotFound, want: "No account exists for this email address."},
		{reason: ReasonEmailInUse, want: "An account already exists for this email address."},
		{reason: ReasonRateLimited, want: "Too many attempts. Please try again later."},
		{reason: ReasonNetwork, want: "Network error. Check your connection and try again."},
		{reason: ReasonOther, want: "Sign-in failed. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			if got := Message(tt.reason); got != tt.want {
				t.Errorf("Message(%v) = %q, want %q", tt.reason, got, tt.want)
			}
		})
	}
}

func TestMessage_UnknownReasonFallsBack(t *testing.T) {
	if got := Message(Reason(99)); got != "Sign-in failed. Please try again." {
		t.Errorf("Message(99) = %q, want fallback wording", got)
	}
}

func TestReason_String(t *testing.T) {
	if got := ReasonInvalidCredentials.String(); got != "INVALID_CREDENTIALS" {
		t.Errorf("String() = %q, want INVALID_CREDENTIALS", got)
	}
	if got := Reason(99).String(); got != "OTHER" {
		t.Errorf("String() = %q, want OTHER", got)
	}
}
