package budget

import (
	"context"
	"errors"
	"fmt"

	"treasury/internal/core"
	"treasury/internal/storage"
)

// ListAll reads every budget of collection straight from the store, newest
// first. It is meant for one-shot readers that do not need a Repository.
func ListAll(ctx context.Context, store storage.Store, collection string) ([]core.Budget, error) {
	records, err := store.QueryOrdered(ctx, collection, core.FieldCreatedAt, storage.Desc)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list", Err: err}
	}
	budgets := make([]core.Budget, 0, len(records))
	for _, rec := range records {
		budgets = append(budgets, Decode(rec))
	}
	return budgets, nil
}

// Fetch reads one budget. A missing id yields an error matching
// core.ErrNotFound.
func Fetch(ctx context.Context, store storage.Store, collection, id string) (core.Budget, error) {
	rec, err := store.GetRecord(ctx, collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("%w: %w", core.ErrNotFound, err)
		}
		return core.Budget{}, &core.PersistenceError{Op: "get", ID: id, Err: err}
	}
	return Decode(rec), nil
}
