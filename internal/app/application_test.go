package app

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"github.com/letsbefriends/platform/internal/app/services/payments"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

func TestNewWiresDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	application, err := New(Stores{}, Options{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if application.Users == nil || application.Sites == nil || application.Payments == nil || application.Uploads == nil {
		t.Fatal("services not wired")
	}
	if got := application.Services(); len(got) != 1 || got[0] != "booking-sweeper" {
		t.Fatalf("services = %v", got)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := application.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestNewSharesStores(t *testing.T) {
	store := memory.New()
	application, err := New(StoresFrom(store), Options{DisableSweeper: true}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(application.Services()) != 0 {
		t.Fatalf("services = %v", application.Services())
	}

	ctx := context.Background()
	u, err := application.Users.Store(ctx, "sub-1", "Ana", "ana@example.com")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if _, err := store.GetUser(ctx, u.ID); err != nil {
		t.Fatalf("user not persisted in shared store: %v", err)
	}
}

func TestNewRejectsBadSweepSpec(t *testing.T) {
	if _, err := New(Stores{}, Options{SweepSpec: "every now and then"}, nil); err == nil {
		t.Fatal("expected invalid schedule error")
	}
}

func TestNewRequiresSignedWebhooksWithoutSecret(t *testing.T) {
	application, err := New(Stores{}, Options{DisableSweeper: true}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	body := []byte(`{"type":"x","data":{"reference":"bk_1","status":"paid"}}`)
	outcome, err := application.Payments.HandleWebhook(context.Background(), body, "")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("HandleWebhook() = %q, %v; want unauthorized", outcome, err)
	}
	if outcome != payments.OutcomeRejected {
		t.Fatalf("outcome = %q", outcome)
	}
}
