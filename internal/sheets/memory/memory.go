package memory

import (
	"context"
	"sync"

	"treasury/internal/core"
	"treasury/internal/sheets"
)

var _ sheets.Mirror = (*Mirror)(nil)

// Mirror keeps ledger rows in memory, in insertion order.
type Mirror struct {
	mu       sync.Mutex
	ids      []string
	rows     map[string]core.Budget
	failNext error

	Upserts, Deletes, Replaces int
}

func New() *Mirror {
	return &Mirror{rows: make(map[string]core.Budget)}
}

// FailNext makes the next call return err.
func (m *Mirror) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *Mirror) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Mirror) Upsert(_ context.Context, b core.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Upserts++
	if _, ok := m.rows[b.ID]; !ok {
		m.ids = append(m.ids, b.ID)
	}
	m.rows[b.ID] = b
	return nil
}

func (m *Mirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Deletes++
	if _, ok := m.rows[id]; !ok {
		return nil
	}
	delete(m.rows, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mirror) Replace(_ context.Context, budgets []core.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Replaces++
	m.ids = m.ids[:0]
	m.rows = make(map[string]core.Budget, len(budgets))
	for _, b := range budgets {
		if _, ok := m.rows[b.ID]; !ok {
			m.ids = append(m.ids, b.ID)
		}
		m.rows[b.ID] = b
	}
	return nil
}

// Rows returns the mirrored budgets in row order.
func (m *Mirror) Rows() []core.Budget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Budget, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.rows[id])
	}
	return out
}

// Row returns the mirrored budget for id.
func (m *Mirror) Row(id string) (core.Budget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	return b, ok
}
