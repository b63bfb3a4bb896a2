package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"treasury/internal/storage"
)

func TestAddGetAndQueryOrdered(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Gala", "createdAt": base})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Fair", "createdAt": base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	rec, err := s.GetRecord(ctx, "budgets", first)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Data["eventName"] != "Gala" || storage.Int64(rec.Data[storage.KeyVersion]) != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	records, err := s.QueryOrdered(ctx, "budgets", "createdAt", storage.Desc)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 || records[0].ID != second || records[1].ID != first {
		t.Fatalf("unexpected order: %+v", records)
	}
}

func TestUpdateMergesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Gala", "spentAmount": 10.0})

	if err := s.UpdateRecord(ctx, "budgets", id, storage.Document{"spentAmount": 20.0}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ := s.GetRecord(ctx, "budgets", id)
	if rec.Data["eventName"] != "Gala" || rec.Data["spentAmount"] != 20.0 {
		t.Fatalf("merge lost data: %+v", rec.Data)
	}
	if v := storage.Int64(rec.Data[storage.KeyVersion]); v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Gala"})

	err := s.UpdateRecord(ctx, "budgets", id, storage.Document{"eventName": "X", storage.KeyExpectedVersion: int64(7)})
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if err := s.UpdateRecord(ctx, "budgets", id, storage.Document{"eventName": "X", storage.KeyExpectedVersion: int64(1)}); err != nil {
		t.Fatalf("matching version rejected: %v", err)
	}
}

func TestUpdateMissingAndDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.UpdateRecord(ctx, "budgets", "nope", storage.Document{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteRecord(ctx, "budgets", "nope"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	ctx := context.Background()
	s := New()
	var kinds []storage.ChangeKind
	unsub := s.Subscribe("budgets", func(ev storage.ChangeEvent) { kinds = append(kinds, ev.Kind) })
	defer unsub()

	id, _ := s.AddRecord(ctx, "budgets", storage.Document{"eventName": "Gala"})
	_ = s.UpdateRecord(ctx, "budgets", id, storage.Document{"eventName": "Gala 2"})
	_ = s.DeleteRecord(ctx, "budgets", id)
	_ = s.DeleteRecord(ctx, "budgets", id)

	want := []storage.ChangeKind{storage.Created, storage.Updated, storage.Deleted}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("got %v, want %v", kinds, want)
		}
	}
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("unavailable")
	s.FailNext(boom)
	if _, err := s.AddRecord(ctx, "budgets", storage.Document{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := s.AddRecord(ctx, "budgets", storage.Document{}); err != nil {
		t.Fatalf("failure should be one-shot: %v", err)
	}
}

func TestQueryRejectsBadField(t *testing.T) {
	if _, err := New().QueryOrdered(context.Background(), "budgets", "a;b", storage.Asc); !errors.Is(err, storage.ErrInvalidField) {
		t.Fatalf("expected invalid field, got %v", err)
	}
}
