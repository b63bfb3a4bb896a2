// Package sqlstore keeps documents as JSON rows in a single SQL table. The
// sqlite and postgres packages provide the dialects and schema migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"treasury/internal/storage"
)

const maxUpdateAttempts = 3

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of '?'.
	Numbered bool
	// JSONArg wraps a bound JSON text parameter, e.g. "CAST(? AS JSONB)".
	JSONArg string
	// OrderExpr returns an expression extracting field from the data column.
	OrderExpr func(field string) string
}

func (d Dialect) rebind(query string) string {
	query = strings.ReplaceAll(query, "{json}", d.JSONArg)
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ storage.Store = (*Store)(nil)

type Store struct {
	*storage.Hub
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database whose schema is already migrated.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		Hub:     storage.NewHub(),
		db:      db,
		dialect: dialect,
		now:     time.Now,
	}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) AddRecord(ctx context.Context, collection string, data storage.Document) (string, error) {
	id := uuid.NewString()
	doc := storage.Merge(data, storage.Document{storage.KeyVersion: int64(1)})
	payload, err := Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		 VALUES (?, ?, {json}, 1, ?, ?)`),
		collection, id, payload, now, now)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}

	slog.DebugContext(ctx, "Document inserted", "backend", s.dialect.Name, "collection", collection, "id", id)
	s.publish(storage.Created, collection, id, payload)
	return id, nil
}

func (s *Store) UpdateRecord(ctx context.Context, collection, id string, patch storage.Document) error {
	expected := storage.ExpectedVersion(patch)

	for attempt := 1; ; attempt++ {
		current, version, err := s.load(ctx, collection, id)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if expected != 0 && expected != version {
			return fmt.Errorf("update %s/%s: have %d, want %d: %w", collection, id, version, expected, storage.ErrVersionConflict)
		}

		doc := storage.Merge(current, patch)
		doc[storage.KeyVersion] = version + 1
		payload, err := Encode(doc)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}

		res, err := s.db.ExecContext(ctx, s.dialect.rebind(
			`UPDATE documents SET data = {json}, version = ?, updated_at = ?
			 WHERE collection = ? AND id = ? AND version = ?`),
			payload, version+1, s.now().UTC(), collection, id, version)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update %s/%s: rows affected: %w", collection, id, err)
		}
		if n == 1 {
			s.publish(storage.Updated, collection, id, payload)
			return nil
		}

		// Another writer won the race.
		if expected != 0 {
			return fmt.Errorf("update %s/%s: %w", collection, id, storage.ErrVersionConflict)
		}
		if attempt >= maxUpdateAttempts {
			return fmt.Errorf("update %s/%s: gave up after %d attempts: %w", collection, id, attempt, storage.ErrVersionConflict)
		}
		slog.WarnContext(ctx, "Concurrent update detected, retrying",
			"collection", collection, "id", id, "attempt", attempt)
	}
}

func (s *Store) DeleteRecord(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.Publish(storage.ChangeEvent{
			Collection: collection,
			Kind:       storage.Deleted,
			Record:     storage.Record{ID: id},
		})
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, collection, id string) (storage.Record, error) {
	doc, _, err := s.load(ctx, collection, id)
	if err != nil {
		return storage.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return storage.Record{ID: id, Data: doc}, nil
}

func (s *Store) QueryOrdered(ctx context.Context, collection, field string, dir storage.Direction) ([]storage.Record, error) {
	if !storage.ValidField(field) {
		return nil, fmt.Errorf("order by %q: %w", field, storage.ErrInvalidField)
	}
	order := "ASC"
	if dir == storage.Desc {
		order = "DESC"
	}

	query := fmt.Sprintf(
		`SELECT id, data, version FROM documents WHERE collection = ? ORDER BY %s %s, id ASC`,
		s.dialect.OrderExpr(field), order)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		var (
			id      string
			payload string
			version int64
		)
		if err := rows.Scan(&id, &payload, &version); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		doc[storage.KeyVersion] = version
		records = append(records, storage.Record{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) load(ctx context.Context, collection, id string) (storage.Document, int64, error) {
	var (
		payload string
		version int64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT data, version FROM documents WHERE collection = ? AND id = ?`),
		collection, id).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	doc, err := Decode(payload)
	if err != nil {
		return nil, 0, err
	}
	doc[storage.KeyVersion] = version
	return doc, version, nil
}

func (s *Store) publish(kind storage.ChangeKind, collection, id, payload string) {
	doc, err := Decode(payload)
	if err != nil {
		slog.Error("Failed to decode document for change event", "collection", collection, "id", id, "error", err)
		return
	}
	s.Publish(storage.ChangeEvent{
		Collection: collection,
		Kind:       kind,
		Record:     storage.Record{ID: id, Data: doc},
	})
}

// Encode serializes a document, rendering timestamps in storage.TimeLayout.
func Encode(doc storage.Document) (string, error) {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				out[k] = nil
				continue
			}
			out[k] = storage.FormatTime(t)
		default:
			out[k] = v
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a JSON document. Numbers come back as float64 and
// timestamps as strings.
func Decode(payload string) (storage.Document, error) {
	doc := storage.Document{}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
