package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/skooli/storefront/internal/domain"
)

func TestIdempotencyCreateAndReplay(t *testing.T) {
	repo := NewIdempotencyRepository()

	record, err := repo.CreateProcessing("momo:tx-1", "hash-1", time.Time{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("status = %s, want processing", record.Status)
	}

	// Повторная доставка того же события.
	existing, err := repo.CreateProcessing("momo:tx-1", "hash-1", time.Time{})
	if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if existing.Key != "momo:tx-1" {
		t.Fatalf("unexpected existing record: %+v", existing)
	}
}

func TestIdempotencyMarkDone(t *testing.T) {
	repo := NewIdempotencyRepository()
	if _, err := repo.CreateProcessing("momo:tx-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.MarkDone("momo:tx-1", "success"); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	record, err := repo.Get("momo:tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != domain.IdempotencyStatusDone || record.Outcome != "success" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestIdempotencyDeleteExpired(t *testing.T) {
	repo := NewIdempotencyRepository()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	if _, err := repo.CreateProcessing("momo:old", "h", past); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if _, err := repo.CreateProcessing("momo:new", "h", future); err != nil {
		t.Fatalf("create new: %v", err)
	}

	removed, err := repo.DeleteExpired(time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := repo.Get("momo:old"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected old record gone, got %v", err)
	}
	if _, err := repo.Get("momo:new"); err != nil {
		t.Fatalf("new record must survive: %v", err)
	}
}

func TestIdempotencyEmptyKey(t *testing.T) {
	repo := NewIdempotencyRepository()
	if _, err := repo.CreateProcessing("  ", "h", time.Time{}); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
}
