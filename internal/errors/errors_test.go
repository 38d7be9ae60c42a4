package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceErrorUnwraps(t *testing.T) {
	base := NotFound("post", "p1")
	wrapped := fmt.Errorf("load feed: %w", base)

	got := GetServiceError(wrapped)
	if got == nil {
		t.Fatal("expected service error")
	}
	if got.HTTPStatus != http.StatusNotFound || got.Details["id"] != "p1" {
		t.Fatalf("unexpected error: %#v", got)
	}
	if GetServiceError(stderrors.New("plain")) != nil {
		t.Fatal("plain errors must not convert")
	}
	if GetServiceError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *ServiceError
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("dup"), http.StatusConflict},
		{Forbidden("no"), http.StatusForbidden},
		{Unauthorized(""), http.StatusUnauthorized},
		{InvalidToken(nil), http.StatusUnauthorized},
		{RateLimitExceeded(10, "1s"), http.StatusTooManyRequests},
		{LimitExceeded("quota"), http.StatusPaymentRequired},
		{InvalidState("nope"), http.StatusConflict},
		{Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if tc.err.HTTPStatus != tc.want {
			t.Errorf("%s: status %d, want %d", tc.err.Code, tc.err.HTTPStatus, tc.want)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Internal("store failed", stderrors.New("disk full"))
	if got := err.Error(); got != "INTERNAL_ERROR: store failed: disk full" {
		t.Fatalf("Error() = %q", got)
	}
	if !stderrors.Is(err, err.Err) {
		t.Fatal("expected unwrap to reach cause")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("create page: %w", LimitExceeded("page quota reached"))
	if !HasCode(err, CodeLimitExceeded) {
		t.Fatal("expected plan limit code")
	}
	if HasCode(err, CodeConflict) || HasCode(stderrors.New("x"), CodeLimitExceeded) {
		t.Fatal("unexpected code match")
	}
}
