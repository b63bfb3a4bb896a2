package sqlstore

import (
	"testing"
	"time"

	"treasury/internal/storage"
)

func TestRebindNumbered(t *testing.T) {
	d := Dialect{Numbered: true, JSONArg: "CAST(? AS JSONB)"}
	got := d.rebind(`INSERT INTO t VALUES (?, {json}, ?)`)
	want := `INSERT INTO t VALUES ($1, CAST($2 AS JSONB), $3)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRebindQuestionMarks(t *testing.T) {
	d := Dialect{JSONArg: "json(?)"}
	got := d.rebind(`UPDATE t SET data = {json} WHERE id = ?`)
	want := `UPDATE t SET data = json(?) WHERE id = ?`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeDecodeTimestamps(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	payload, err := Encode(storage.Document{"createdAt": ts, "updatedAt": time.Time{}, "allocatedAmount": 12.5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["createdAt"] != "2024-06-01T10:30:00.000000000Z" {
		t.Fatalf("createdAt = %v", doc["createdAt"])
	}
	if doc["updatedAt"] != nil {
		t.Fatalf("zero time should encode as null, got %v", doc["updatedAt"])
	}
	if doc["allocatedAmount"] != 12.5 {
		t.Fatalf("amount = %v", doc["allocatedAmount"])
	}
	parsed, ok := storage.ParseTime(doc["createdAt"])
	if !ok || !parsed.Equal(ts) {
		t.Fatalf("round trip lost time: %v", parsed)
	}
}
