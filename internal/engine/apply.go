package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/logging"
	"github.com/terrane-io/terrane/internal/provider"
	"github.com/terrane-io/terrane/internal/state"
)

const defaultParallelism = 10

// Event reports progress of a single operation during apply.
type Event struct {
	DeclarationID string
	Kind          ir.OpKind
	Status        string // "started", "completed", "failed", "blocked", "cancelled"
	Duration      time.Duration
	Err           error
}

// Callback receives apply progress events if set. It is invoked from
// worker goroutines and must be safe for concurrent use.
type Callback func(Event)

// ApplyOptions tunes a reconciliation run.
type ApplyOptions struct {
	Parallelism int
	Retry       *RetryPolicy
	Callback    Callback
}

// Apply walks the plan with a pool of workers draining a ready queue of
// operations whose predecessors have all succeeded. Operations with a
// dependency edge are never in flight simultaneously; independent
// subgraphs run concurrently. Each completed operation persists its
// state record before dependents are released, so an interrupted run
// leaves the store consistent with everything actually applied.
//
// A failed operation marks every transitive dependent blocked without a
// provider call; independent branches keep running. Cancellation lets
// in-flight operations finish but dequeues nothing new.
func Apply(
	ctx context.Context,
	plan *ir.Plan,
	graph *Graph,
	records map[string]*ir.StateRecord,
	prov provider.Interface,
	store state.Store,
	opts ApplyOptions,
) (*ir.RunResult, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryPolicy()
	}

	ex := &executor{
		graph:      graph,
		prov:       prov,
		store:      store,
		opts:       opts,
		records:    make(map[string]*ir.StateRecord, len(records)),
		attrs:      make(map[string]map[string]any),
		statuses:   make(map[string]ir.DeclStatus, len(plan.Operations)),
		ops:        make(map[string]*ir.Operation, len(plan.Operations)),
		remaining:  make(map[string]int, len(plan.Operations)),
		dependents: make(map[string][]string),
		blockCause: make(map[string]string),
		failCause:  make(map[string]string),
		ready:      make(chan *ir.Operation, len(plan.Operations)),
		total:      len(plan.Operations),
	}

	for id, rec := range records {
		ex.records[id] = rec
		if rec.Status == ir.StatusApplied {
			ex.attrs[id] = rec.Attributes
		}
	}
	for _, op := range plan.Operations {
		ex.ops[op.DeclarationID] = op
		ex.statuses[op.DeclarationID] = ir.DeclPending
		ex.remaining[op.DeclarationID] = len(op.After)
		for _, pred := range op.After {
			ex.dependents[pred] = append(ex.dependents[pred], op.DeclarationID)
		}
	}

	result := &ir.RunResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Statuses:  make(map[string]ir.DeclStatus),
	}

	if ex.total == 0 {
		result.Outcome = ir.RunSucceeded
		return result, nil
	}

	for _, op := range plan.Operations {
		if ex.remaining[op.DeclarationID] == 0 {
			ex.ready <- op
		}
	}

	g := new(errgroup.Group)
	for i := 0; i < opts.Parallelism; i++ {
		g.Go(func() error {
			for op := range ex.ready {
				if ctx.Err() != nil {
					ex.markCancelled(op)
					continue
				}
				ex.run(ctx, op)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ex.summarize(ctx, result)
	return result, nil
}

type executor struct {
	graph *Graph
	prov  provider.Interface
	store state.Store
	opts  ApplyOptions

	mu         sync.Mutex
	records    map[string]*ir.StateRecord
	attrs      map[string]map[string]any
	statuses   map[string]ir.DeclStatus
	ops        map[string]*ir.Operation
	remaining  map[string]int
	dependents map[string][]string
	blockCause map[string]string
	failCause  map[string]string
	terminal   int
	closed     bool
	ready      chan *ir.Operation
	total      int
}

func (e *executor) run(ctx context.Context, op *ir.Operation) {
	id := op.DeclarationID
	log := logging.With("declaration", id, "op", string(op.Kind))

	e.mu.Lock()
	e.statuses[id] = ir.DeclApplying
	e.mu.Unlock()

	e.emit(Event{DeclarationID: id, Kind: op.Kind, Status: "started"})
	start := time.Now()

	var err error
	switch op.Kind {
	case ir.OpCreate, ir.OpUpdate:
		err = e.applyDeclaration(ctx, op)
	case ir.OpDelete:
		err = e.deleteDeclaration(ctx, op)
	}

	if err != nil {
		log.Error("operation failed", "error", err)
		e.emit(Event{DeclarationID: id, Kind: op.Kind, Status: "failed", Duration: time.Since(start), Err: err})
		e.markFailed(op, err)
		return
	}

	log.Debug("operation completed", "duration", time.Since(start))
	e.emit(Event{DeclarationID: id, Kind: op.Kind, Status: "completed", Duration: time.Since(start)})
	e.markApplied(op)
}

// applyDeclaration resolves the declaration's references against the
// attributes of already-applied dependencies and invokes the provider.
// The state record is persisted before the method returns.
func (e *executor) applyDeclaration(ctx context.Context, op *ir.Operation) error {
	id := op.DeclarationID
	d := e.graph.Declaration(id)

	e.mu.Lock()
	resolved, err := resolveSpec(d.Spec, e.attrs)
	prior := e.records[id]
	e.mu.Unlock()
	if err != nil {
		return err
	}

	var providerID string
	var attrs map[string]any
	call := func() error {
		var callErr error
		if op.Kind == ir.OpUpdate && prior != nil && prior.ProviderID != "" {
			providerID = prior.ProviderID
			attrs, callErr = e.prov.Update(ctx, d.Kind, prior.ProviderID, resolved)
		} else {
			providerID, attrs, callErr = e.prov.Create(ctx, d.Kind, resolved)
		}
		return callErr
	}
	if err := RetryWithBackoff(ctx, e.opts.Retry, call, provider.IsRetryable); err != nil {
		e.persistFailure(ctx, id, d.Kind, prior)
		return err
	}

	rec := &ir.StateRecord{
		Kind:         d.Kind,
		SpecHash:     ir.SpecHash(d),
		ProviderID:   providerID,
		Attributes:   attrs,
		Dependencies: e.graph.Dependencies(id),
		Status:       ir.StatusApplied,
		UpdatedAt:    time.Now().UTC(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Save(ctx, id, rec); err != nil {
		return fmt.Errorf("persisting state for %s: %w", id, err)
	}
	e.records[id] = rec
	e.attrs[id] = attrs
	return nil
}

func (e *executor) deleteDeclaration(ctx context.Context, op *ir.Operation) error {
	id := op.DeclarationID

	e.mu.Lock()
	rec := e.records[id]
	e.mu.Unlock()
	if rec == nil {
		return nil
	}

	if rec.ProviderID != "" {
		call := func() error {
			return e.prov.Delete(ctx, rec.Kind, rec.ProviderID)
		}
		if err := RetryWithBackoff(ctx, e.opts.Retry, call, provider.IsRetryable); err != nil {
			e.persistFailure(ctx, id, rec.Kind, rec)
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("removing state for %s: %w", id, err)
	}
	delete(e.records, id)
	delete(e.attrs, id)
	return nil
}

// persistFailure records a failed attempt so the next run plans the
// declaration again. Prior provider id and attributes are kept: the
// external resource may still exist.
func (e *executor) persistFailure(ctx context.Context, id string, kind ir.Kind, prior *ir.StateRecord) {
	rec := &ir.StateRecord{
		Kind:      kind,
		Status:    ir.StatusFailed,
		UpdatedAt: time.Now().UTC(),
	}
	if prior != nil {
		rec.ProviderID = prior.ProviderID
		rec.Attributes = prior.Attributes
		rec.Dependencies = prior.Dependencies
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Save(ctx, id, rec); err != nil {
		logging.Error("failed to persist failure record", "declaration", id, "error", err)
	}
	e.records[id] = rec
}

func (e *executor) markApplied(op *ir.Operation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if op.Kind == ir.OpDelete {
		e.statuses[op.DeclarationID] = ir.DeclDeleted
	} else {
		e.statuses[op.DeclarationID] = ir.DeclApplied
	}
	e.finishLocked()

	for _, dep := range e.dependents[op.DeclarationID] {
		e.remaining[dep]--
		if e.remaining[dep] == 0 && e.statuses[dep] == ir.DeclPending {
			e.ready <- e.ops[dep]
		}
	}
	e.maybeCloseLocked()
}

func (e *executor) markFailed(op *ir.Operation, err error) {
	e.mu.Lock()
	e.statuses[op.DeclarationID] = ir.DeclFailed
	e.failCause[op.DeclarationID] = err.Error()
	e.finishLocked()
	blocked := e.blockDependentsLocked(op.DeclarationID)
	e.maybeCloseLocked()
	e.mu.Unlock()

	// The callback may block; never invoke it holding the mutex.
	for _, ev := range blocked {
		e.emit(ev)
	}
}

func (e *executor) markCancelled(op *ir.Operation) {
	e.emit(Event{DeclarationID: op.DeclarationID, Kind: op.Kind, Status: "cancelled"})
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses[op.DeclarationID] = ir.DeclCancelled
	e.finishLocked()
	// Dependents can never become ready; cancel them too.
	e.cancelDependentsLocked(op.DeclarationID)
	e.maybeCloseLocked()
}

// blockDependentsLocked marks every transitive dependent of id blocked.
// Blocked declarations get no provider call and revert to pending on
// the next run. The corresponding events are returned for the caller to
// emit after releasing the mutex.
func (e *executor) blockDependentsLocked(id string) []Event {
	var events []Event
	for _, dep := range e.dependents[id] {
		if e.statuses[dep] != ir.DeclPending {
			continue
		}
		e.statuses[dep] = ir.DeclBlocked
		e.blockCause[dep] = id
		e.finishLocked()
		events = append(events, Event{DeclarationID: dep, Kind: e.ops[dep].Kind, Status: "blocked"})
		events = append(events, e.blockDependentsLocked(dep)...)
	}
	return events
}

func (e *executor) cancelDependentsLocked(id string) {
	for _, dep := range e.dependents[id] {
		if e.statuses[dep] != ir.DeclPending {
			continue
		}
		e.statuses[dep] = ir.DeclCancelled
		e.finishLocked()
		e.cancelDependentsLocked(dep)
	}
}

func (e *executor) finishLocked() {
	e.terminal++
}

func (e *executor) maybeCloseLocked() {
	if e.terminal >= e.total && !e.closed {
		e.closed = true
		close(e.ready)
	}
}

func (e *executor) emit(ev Event) {
	if e.opts.Callback != nil {
		e.opts.Callback(ev)
	}
}

func (e *executor) summarize(ctx context.Context, result *ir.RunResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result.Duration = time.Since(result.StartedAt)
	ids := make([]string, 0, len(e.statuses))
	for id := range e.statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := e.statuses[id]
		result.Statuses[id] = st
		switch st {
		case ir.DeclApplied:
			result.Applied++
		case ir.DeclDeleted:
			result.Deleted++
		case ir.DeclFailed:
			result.Failed++
			result.Failures = append(result.Failures, ir.Failure{
				DeclarationID: id,
				Cause:         e.failCause[id],
			})
		case ir.DeclBlocked:
			result.Blocked++
			result.BlockedBy = append(result.BlockedBy, ir.BlockedInfo{
				DeclarationID: id,
				Chain:         e.blockChainLocked(id),
			})
		case ir.DeclCancelled:
			result.Cancelled++
		}
	}

	switch {
	case ctx.Err() != nil || result.Cancelled > 0:
		result.Outcome = ir.RunCancelled
	case result.Failed > 0:
		result.Outcome = ir.RunFailed
	default:
		result.Outcome = ir.RunSucceeded
	}
}

// blockChainLocked walks the recorded immediate causes from a blocked
// declaration down to the failed root, yielding the minimal dependency
// chain for the run report.
func (e *executor) blockChainLocked(id string) []string {
	chain := []string{id}
	cur := id
	for {
		cause, ok := e.blockCause[cur]
		if !ok {
			break
		}
		chain = append(chain, cause)
		cur = cause
	}
	return chain
}

// resolveSpec deep-copies a spec, replacing every reference with the
// referenced declaration's resolved attribute. Plan ordering guarantees
// every referenced declaration is already applied.
func resolveSpec(spec map[string]any, attrs map[string]map[string]any) (map[string]any, error) {
	out, err := resolveValue(spec, attrs)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func resolveValue(v any, attrs map[string]map[string]any) (any, error) {
	switch val := v.(type) {
	case ir.Ref:
		return lookupAttr(val, attrs)
	case *ir.Ref:
		return lookupAttr(*val, attrs)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			resolved, err := resolveValue(elem, attrs)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			resolved, err := resolveValue(elem, attrs)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return val, nil
	}
}

func lookupAttr(ref ir.Ref, attrs map[string]map[string]any) (any, error) {
	exported, ok := attrs[ref.Target]
	if !ok {
		return nil, fmt.Errorf("reference %s.%s: target not applied", ref.Target, ref.Attr)
	}
	var cur any = exported
	for _, seg := range strings.Split(ref.Attr, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("reference %s.%s: attribute path descends into non-object", ref.Target, ref.Attr)
		}
		cur, ok = m[seg]
		if !ok {
			return nil, fmt.Errorf("reference %s.%s: attribute not exported", ref.Target, ref.Attr)
		}
	}
	return cur, nil
}
