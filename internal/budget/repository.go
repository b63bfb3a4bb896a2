// Package budget owns the in-memory budget collection: the repository that
// talks to the document store and the form controller that feeds it.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"treasury/internal/core"
	"treasury/internal/identity"
	"treasury/internal/metrics"
	"treasury/internal/storage"
)

const (
	defaultCollection = "budgets"
	loadTimeout       = 30 * time.Second
	// recentDeletes bounds how many deleted ids are remembered to drop
	// late store events for them.
	recentDeletes = 256
)

// Snapshot is an immutable view of the collection. Budgets is ordered by
// creation time, newest first, and must not be modified by consumers.
type Snapshot struct {
	Budgets []core.Budget
	Stats   core.Statistics
	// Loading is true until the first bulk load completes.
	Loading bool
	// Err is the most recent persistence failure, cleared by the next
	// successful store call.
	Err error
	// Seq increases with every published snapshot.
	Seq uint64
}

// Find returns the budget with id.
func (s Snapshot) Find(id string) (core.Budget, bool) {
	for _, b := range s.Budgets {
		if b.ID == id {
			return b, true
		}
	}
	return core.Budget{}, false
}

type Options struct {
	Collection string
	Identity   *identity.Provider
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Repository is the single owner of the budget collection and the only
// component that calls the store. Consumers read snapshots or subscribe to
// them; every change replaces the snapshot wholesale.
type Repository struct {
	store      storage.Store
	collection string
	ids        *identity.Provider
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	snap       Snapshot
	started    bool
	closed     bool
	loadedOnce bool
	querying   bool
	pending    []func([]core.Budget) []core.Budget
	observers  map[int]func(Snapshot)
	nextObs    int
	unsubStore func()
	deleted    map[string]struct{}
	deletedIDs []string
}

func NewRepository(store storage.Store, opts Options) *Repository {
	if opts.Collection == "" {
		opts.Collection = defaultCollection
	}
	if opts.Identity == nil {
		opts.Identity = identity.NewProvider("system", "")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Repository{
		store:      store,
		collection: opts.Collection,
		ids:        opts.Identity,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("component", "budget_repository"),
		now:        opts.Now,
		ctx:        ctx,
		cancel:     cancel,
		snap:       Snapshot{Stats: core.Aggregate(nil)},
		observers:  make(map[int]func(Snapshot)),
		deleted:    make(map[string]struct{}),
	}
}

// List returns the current collection. The first call starts the bulk load
// in the background and returns an empty, loading snapshot.
func (r *Repository) List() []core.Budget {
	return r.Snapshot().Budgets
}

// Stats returns the aggregate of the current collection.
func (r *Repository) Stats() core.Statistics {
	return r.Snapshot().Stats
}

// Snapshot returns the current snapshot, starting the bulk load on first use.
func (r *Repository) Snapshot() Snapshot {
	r.ensureStarted()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Subscribe registers fn for every future snapshot and calls it once with
// the current one. The returned function removes the subscription.
func (r *Repository) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.ensureStarted()

	r.mu.Lock()
	r.nextObs++
	id := r.nextObs
	r.observers[id] = fn
	current := r.snap
	r.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

// Refresh re-runs the bulk load. Concurrent calls share one store query.
func (r *Repository) Refresh(ctx context.Context) error {
	r.ensureStarted()
	return r.load(ctx, false)
}

// Create stamps identity and timestamps on a validated input and persists
// it. The collection is only updated after the store accepts the write.
func (r *Repository) Create(ctx context.Context, in core.BudgetInput) (core.Budget, error) {
	r.ensureStarted()
	user := r.ids.Current(ctx)
	doc := encodeCreate(in, user, r.now().UTC())

	started := time.Now()
	id, err := r.store.AddRecord(ctx, r.collection, doc)
	r.metrics.ObserveStore("add", started, err)
	if err != nil {
		perr := &core.PersistenceError{Op: "create", Err: err}
		r.fail(perr)
		r.logger.ErrorContext(ctx, "Failed to create budget", "event_name", in.EventName, "error", err)
		return core.Budget{}, perr
	}

	doc[storage.KeyVersion] = int64(1)
	b := Decode(storage.Record{ID: id, Data: doc})
	r.commit(func(list []core.Budget) []core.Budget { return upsert(list, b) }, "created")

	r.logger.InfoContext(ctx, "Budget created",
		"id", id,
		"event_name", b.EventName,
		"allocated_cents", b.Allocated.Cents,
		"spent_cents", b.Spent.Cents,
		"status", b.Status,
		"created_by", b.CreatedBy)
	return b, nil
}

// Update merges in over the stored record. A missing id or a stale version
// fails remotely and leaves the collection untouched.
func (r *Repository) Update(ctx context.Context, id string, in core.BudgetInput) (core.Budget, error) {
	r.ensureStarted()
	user := r.ids.Current(ctx)
	patch := encodeUpdate(in, user, r.now().UTC())

	started := time.Now()
	err := r.store.UpdateRecord(ctx, r.collection, id, patch)
	r.metrics.ObserveStore("update", started, err)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("%w: %w", core.ErrNotFound, err)
		}
		perr := &core.PersistenceError{Op: "update", ID: id, Err: err}
		r.fail(perr)
		r.logger.ErrorContext(ctx, "Failed to update budget", "id", id, "error", err)
		return core.Budget{}, perr
	}

	b, err := r.fetch(ctx, id, in, user)
	if err != nil {
		r.logger.WarnContext(ctx, "Updated budget could not be re-read, using local merge", "id", id, "error", err)
	}
	r.commit(func(list []core.Budget) []core.Budget { return upsert(list, b) }, "updated")

	r.logger.InfoContext(ctx, "Budget updated",
		"id", id,
		"version", b.Version,
		"status", b.Status,
		"updated_by", b.UpdatedBy)
	return b, nil
}

// Delete removes the record permanently.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.ensureStarted()

	started := time.Now()
	err := r.store.DeleteRecord(ctx, r.collection, id)
	r.metrics.ObserveStore("delete", started, err)
	if err != nil {
		perr := &core.PersistenceError{Op: "delete", ID: id, Err: err}
		r.fail(perr)
		r.logger.ErrorContext(ctx, "Failed to delete budget", "id", id, "error", err)
		return perr
	}

	r.commit(func(list []core.Budget) []core.Budget {
		r.forgetLocked(id)
		return remove(list, id)
	}, "deleted")
	r.logger.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

// Get returns a budget from the current snapshot.
func (r *Repository) Get(id string) (core.Budget, bool) {
	return r.Snapshot().Find(id)
}

// Close stops change notifications and drops every observer.
func (r *Repository) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsub := r.unsubStore
	r.unsubStore = nil
	r.observers = make(map[int]func(Snapshot))
	r.mu.Unlock()

	r.cancel()
	if unsub != nil {
		unsub()
	}
}

func (r *Repository) ensureStarted() {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.snap.Loading = true
	r.mu.Unlock()

	unsub := r.store.Subscribe(r.collection, r.onChange)
	r.mu.Lock()
	r.unsubStore = unsub
	r.mu.Unlock()

	go func() {
		r.mu.Lock()
		done := r.loadedOnce
		r.mu.Unlock()
		if done {
			return
		}
		ctx, cancel := context.WithTimeout(r.ctx, loadTimeout)
		defer cancel()
		if err := r.load(ctx, true); err != nil {
			r.logger.Error("Initial budget load failed", "error", err)
		}
	}()
}

// load runs the bulk query. The initial background load is skipped when a
// refresh has already completed.
func (r *Repository) load(ctx context.Context, initial bool) error {
	_, err, _ := r.group.Do("load", func() (any, error) {
		r.mu.Lock()
		if r.closed || (initial && r.loadedOnce) {
			r.mu.Unlock()
			return nil, nil
		}
		r.querying = true
		r.pending = nil
		r.mu.Unlock()

		started := time.Now()
		records, err := r.store.QueryOrdered(ctx, r.collection, core.FieldCreatedAt, storage.Desc)
		r.metrics.ObserveStore("query", started, err)

		r.mu.Lock()
		pending := r.pending
		r.pending = nil
		r.querying = false
		r.loadedOnce = true
		r.snap.Loading = false
		if err != nil {
			r.mu.Unlock()
			perr := &core.PersistenceError{Op: "list", Err: err}
			r.fail(perr)
			return nil, perr
		}

		budgets := make([]core.Budget, 0, len(records))
		for _, rec := range records {
			budgets = append(budgets, Decode(rec))
		}
		// Changes that raced with the query are replayed on top of it.
		for _, mutate := range pending {
			budgets = mutate(budgets)
		}
		snap, observers := r.replaceLocked(budgets, true)
		r.mu.Unlock()

		r.publish(snap, observers, "loaded")
		r.logger.Debug("Budgets loaded", "count", len(budgets))
		return nil, nil
	})
	return err
}

// onChange applies store notifications. Events for the repository's own
// writes arrive here too; applying them is idempotent.
func (r *Repository) onChange(ev storage.ChangeEvent) {
	r.commit(func(list []core.Budget) []core.Budget { return r.applyEventLocked(list, ev) }, "")
}

// applyEventLocked applies ev unless it is older than what the collection
// already holds: a write for a deleted id, or a version below the cached one.
func (r *Repository) applyEventLocked(list []core.Budget, ev storage.ChangeEvent) []core.Budget {
	id := ev.Record.ID
	if ev.Kind == storage.Deleted {
		r.forgetLocked(id)
		return remove(list, id)
	}
	if _, gone := r.deleted[id]; gone {
		r.logger.Debug("Dropping change event for deleted budget", "id", id, "kind", ev.Kind)
		return list
	}
	b := Decode(ev.Record)
	for _, cur := range list {
		if cur.ID == id && b.Version != 0 && b.Version < cur.Version {
			r.logger.Debug("Dropping stale change event", "id", id, "version", b.Version, "cached_version", cur.Version)
			return list
		}
	}
	return upsert(list, b)
}

// forgetLocked remembers id as deleted, evicting the oldest entry when full.
func (r *Repository) forgetLocked(id string) {
	if _, ok := r.deleted[id]; ok {
		return
	}
	if len(r.deletedIDs) >= recentDeletes {
		delete(r.deleted, r.deletedIDs[0])
		r.deletedIDs = r.deletedIDs[1:]
	}
	r.deleted[id] = struct{}{}
	r.deletedIDs = append(r.deletedIDs, id)
}

// commit replaces the snapshot with the result of mutate and notifies
// observers outside the lock. An empty kind marks a store notification,
// which keeps the last error.
func (r *Repository) commit(mutate func([]core.Budget) []core.Budget, kind string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.querying {
		r.pending = append(r.pending, mutate)
	}
	snap, observers := r.replaceLocked(mutate(r.snap.Budgets), kind != "")
	r.mu.Unlock()

	r.publish(snap, observers, kind)
}

func (r *Repository) replaceLocked(budgets []core.Budget, clearErr bool) (Snapshot, []func(Snapshot)) {
	lastErr := r.snap.Err
	if clearErr {
		lastErr = nil
	}
	r.snap = Snapshot{
		Budgets: budgets,
		Stats:   core.Aggregate(budgets),
		Loading: r.snap.Loading,
		Err:     lastErr,
		Seq:     r.snap.Seq + 1,
	}
	return r.snap, r.observersLocked()
}

func (r *Repository) observersLocked() []func(Snapshot) {
	observers := make([]func(Snapshot), 0, len(r.observers))
	for _, fn := range r.observers {
		observers = append(observers, fn)
	}
	return observers
}

func (r *Repository) publish(snap Snapshot, observers []func(Snapshot), kind string) {
	if kind != "" {
		r.metrics.Mutation(kind)
	}
	r.metrics.SetStatistics(snap.Stats)
	for _, fn := range observers {
		fn(snap)
	}
}

// fail records err on a new snapshot without touching the collection.
func (r *Repository) fail(err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.snap.Err = err
	r.snap.Seq++
	snap := r.snap
	observers := r.observersLocked()
	r.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// fetch re-reads an updated record. On failure it falls back to merging the
// input over the cached entry.
func (r *Repository) fetch(ctx context.Context, id string, in core.BudgetInput, user identity.User) (core.Budget, error) {
	rec, err := r.store.GetRecord(ctx, r.collection, id)
	if err == nil {
		return Decode(rec), nil
	}

	r.mu.Lock()
	b, _ := r.snap.Find(id)
	r.mu.Unlock()
	b.ID = id
	b.EventName = in.EventName
	b.Category = in.Category
	b.Committee = in.Committee
	b.Allocated = in.Allocated
	b.Spent = in.Spent
	b.Remaining = in.Remaining
	b.Status = in.Status
	b.FiscalYear = in.FiscalYear
	b.StartDate = in.StartDate
	b.EndDate = in.EndDate
	b.Resolution = in.Resolution
	b.Description = in.Description
	b.ReceiptURL = in.ReceiptURL
	b.Active = in.Active
	b.UpdatedBy = user.Name
	b.UpdatedAt = r.now().UTC()
	b.Version++
	return b, err
}

// upsert returns a new slice with b replacing the entry of the same id in
// place, or inserted before the first entry created no later than it.
func upsert(list []core.Budget, b core.Budget) []core.Budget {
	out := make([]core.Budget, 0, len(list)+1)
	for i, cur := range list {
		if cur.ID == b.ID {
			out = append(out, list[:i]...)
			out = append(out, b)
			return append(out, list[i+1:]...)
		}
	}
	pos := len(list)
	for i, cur := range list {
		if !cur.CreatedAt.After(b.CreatedAt) {
			pos = i
			break
		}
	}
	out = append(out, list[:pos]...)
	out = append(out, b)
	return append(out, list[pos:]...)
}

func remove(list []core.Budget, id string) []core.Budget {
	for i, cur := range list {
		if cur.ID == id {
			out := make([]core.Budget, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}
