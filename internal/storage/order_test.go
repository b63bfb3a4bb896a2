package storage

import (
	"testing"
	"time"
)

func TestSortRecordsMixedTimestamps(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{ID: "a", Data: Document{"createdAt": base}},
		{ID: "b", Data: Document{"createdAt": base.Add(time.Hour).Format(time.RFC3339)}},
		{ID: "c", Data: Document{"createdAt": FormatTime(base.Add(-time.Hour))}},
		{ID: "d", Data: Document{}},
	}

	SortRecords(records, "createdAt", Desc)

	want := []string{"b", "a", "c", "d"}
	for i, id := range want {
		if records[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, records[i].ID, id)
		}
	}
}

func TestSortRecordsNumbersAscending(t *testing.T) {
	records := []Record{
		{ID: "x", Data: Document{"n": 10.0}},
		{ID: "y", Data: Document{"n": int64(2)}},
		{ID: "z", Data: Document{"n": 2}},
	}
	SortRecords(records, "n", Asc)
	if records[0].ID != "y" || records[1].ID != "z" || records[2].ID != "x" {
		t.Fatalf("unexpected order: %v %v %v", records[0].ID, records[1].ID, records[2].ID)
	}
}

func TestFormatTimeIsFixedWidth(t *testing.T) {
	a := FormatTime(time.Date(2024, 1, 1, 0, 0, 5, 100_000_000, time.UTC))
	b := FormatTime(time.Date(2024, 1, 1, 0, 0, 5, 120_000_000, time.UTC))
	if len(a) != len(b) || !(a < b) {
		t.Fatalf("lexical order broken: %s vs %s", a, b)
	}
	if _, ok := ParseTime(a); !ok {
		t.Fatalf("cannot parse %s", a)
	}
}
