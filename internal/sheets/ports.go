// Package sheets defines the ledger mirror: a spreadsheet copy of every
// budget kept for officers without console access.
package sheets

import (
	"context"

	"treasury/internal/core"
)

// Mirror holds one row per budget, keyed by budget id.
type Mirror interface {
	// Upsert writes b over its existing row or appends a new one.
	Upsert(ctx context.Context, b core.Budget) error
	// Delete removes the row for id. A missing row is not an error.
	Delete(ctx context.Context, id string) error
	// Replace rewrites the whole ledger with budgets.
	Replace(ctx context.Context, budgets []core.Budget) error
}
