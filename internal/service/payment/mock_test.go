package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/skooli/storefront/internal/domain"
)

func TestMockProvider_Defaults(t *testing.T) {
	mock := NewMockProvider("momo")
	if mock.Method() != "momo" {
		t.Fatalf("unexpected method: %s", mock.Method())
	}

	handle, err := mock.Initiate(context.Background(), domain.Order{Number: "ORD-1"}, domain.ChargeDetails{})
	if err != nil {
		t.Fatalf("unexpected initiate error: %v", err)
	}
	if handle.Status != domain.PaymentStatusPending {
		t.Fatalf("unexpected initiate status: %s", handle.Status)
	}
	if handle.ProviderTxID == "" {
		t.Fatal("expected provider tx id")
	}
	if handle.Reference != "ORD-1" {
		t.Fatalf("unexpected reference: %s", handle.Reference)
	}

	check, err := mock.CheckStatus(context.Background(), handle.ProviderTxID)
	if err != nil {
		t.Fatalf("unexpected check error: %v", err)
	}
	if check.Status != domain.PaymentStatusSuccess {
		t.Fatalf("expected success by default, got %s", check.Status)
	}
}

func TestMockProvider_UniqueTransactionIDs(t *testing.T) {
	mock := NewMockProvider("card")

	first, err := mock.Initiate(context.Background(), domain.Order{}, domain.ChargeDetails{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := mock.Initiate(context.Background(), domain.Order{}, domain.ChargeDetails{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ProviderTxID == second.ProviderTxID {
		t.Fatalf("expected unique tx ids, both are %s", first.ProviderTxID)
	}
	if mock.InitiateCalls() != 2 {
		t.Fatalf("expected 2 initiate calls, got %d", mock.InitiateCalls())
	}
}

func TestMockProvider_ConfiguredFailures(t *testing.T) {
	mock := NewMockProvider("paypal")
	mock.InitiateErr = errors.New("gateway down")
	mock.CheckErr = errors.New("status unavailable")

	if _, err := mock.Initiate(context.Background(), domain.Order{}, domain.ChargeDetails{}); err == nil {
		t.Fatal("expected initiate error")
	}
	if _, err := mock.CheckStatus(context.Background(), "paypal-tx-1"); err == nil {
		t.Fatal("expected check error")
	}
}

func TestMockProvider_PerTransactionStatuses(t *testing.T) {
	mock := NewMockProvider("momo")
	mock.CheckStatuses = map[string]domain.PaymentStatus{
		"momo-tx-1": domain.PaymentStatusPending,
		"momo-tx-2": domain.PaymentStatusFailed,
	}

	pending, err := mock.CheckStatus(context.Background(), "momo-tx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", pending.Status)
	}

	failed, err := mock.CheckStatus(context.Background(), "momo-tx-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
}
