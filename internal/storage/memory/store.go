// Package memory is an in-process document store used by tests and the
// "memory" data backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"treasury/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	*storage.Hub

	mu          sync.RWMutex
	collections map[string]map[string]storage.Document

	failNext error
}

func New() *Store {
	return &Store{
		Hub:         storage.NewHub(),
		collections: make(map[string]map[string]storage.Document),
	}
}

// FailNext arranges for the next write or query to fail with err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *Store) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *Store) AddRecord(ctx context.Context, collection string, data storage.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	doc := storage.Merge(data, storage.Document{storage.KeyVersion: int64(1)})

	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]storage.Document)
	}
	s.collections[collection][id] = doc
	s.mu.Unlock()

	s.Publish(storage.ChangeEvent{
		Collection: collection,
		Kind:       storage.Created,
		Record:     storage.Record{ID: id, Data: doc.Clone()},
	})
	return id, nil
}

func (s *Store) UpdateRecord(ctx context.Context, collection, id string, patch storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	current, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, storage.ErrNotFound)
	}
	version := storage.Int64(current[storage.KeyVersion])
	if expected := storage.ExpectedVersion(patch); expected != 0 && expected != version {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: have %d, want %d: %w", collection, id, version, expected, storage.ErrVersionConflict)
	}
	doc := storage.Merge(current, patch)
	doc[storage.KeyVersion] = version + 1
	s.collections[collection][id] = doc
	s.mu.Unlock()

	s.Publish(storage.ChangeEvent{
		Collection: collection,
		Kind:       storage.Updated,
		Record:     storage.Record{ID: id, Data: doc.Clone()},
	})
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return err
	}
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if existed {
		s.Publish(storage.ChangeEvent{
			Collection: collection,
			Kind:       storage.Deleted,
			Record:     storage.Record{ID: id},
		})
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, collection, id string) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return storage.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, storage.ErrNotFound)
	}
	return storage.Record{ID: id, Data: doc.Clone()}, nil
}

func (s *Store) QueryOrdered(ctx context.Context, collection, field string, dir storage.Direction) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !storage.ValidField(field) {
		return nil, fmt.Errorf("order by %q: %w", field, storage.ErrInvalidField)
	}

	s.mu.Lock()
	if err := s.takeFailure(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	records := make([]storage.Record, 0, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		records = append(records, storage.Record{ID: id, Data: doc.Clone()})
	}
	s.mu.Unlock()

	storage.SortRecords(records, field, dir)
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}
