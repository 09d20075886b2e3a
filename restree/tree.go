package restree

import (
	"log/slog"
	"strings"

	"github.com/c360/datahub/config"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/pkg/pool"
	"github.com/c360/datahub/sample"
)

// Tree is the resource tree root: path parsing, find/create, state
// transitions, route-source assignment, traversal, and snapshot-phase
// bookkeeping.
type Tree struct {
	root       *Entry
	cfg        *config.Config
	entryPool  *pool.Pool[*Entry]
	samplePool *sample.Pool
	metrics    *metric.Metrics

	dispatcher *dispatcher
	logger     *slog.Logger
}

// New constructs an empty tree with a permanent root entry. Entries
// materialized afterward are drawn from a fixed-capacity pool sized by
// cfg.Pools.EntryCapacity, so autoprovisioning can genuinely exhaust rather
// than allocate without bound. Samples pushed through the tree are drawn
// from a process-wide sample pool sized by cfg.Pools.SampleCapacity, backed
// by a layered string pool for String/JSON payloads.
func New(cfg *config.Config, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	root := newNamespaceEntry("", nil)
	root.clearNewFlag() // the root is permanent after initialization, not "new"
	strings := pool.NewStringPool(pool.StringPoolConfig{
		SmallBytes:  cfg.Pools.StringSmallBytes,
		MediumBytes: cfg.Pools.StringMediumBytes,
		LargeBytes:  cfg.Pools.StringLargeBytes,
		SmallCount:  cfg.Pools.StringSmallCount,
		MediumCount: cfg.Pools.StringMediumCount,
		LargeCount:  cfg.Pools.StringLargeCount,
	})
	return &Tree{
		root: root,
		cfg:  cfg,
		entryPool: pool.New("entry", cfg.Pools.EntryCapacity,
			func() *Entry { return &Entry{} },
			func(e *Entry) { e.reset() },
		),
		samplePool: sample.NewPool(cfg.Pools.SampleCapacity, sample.WithStringPool(strings)),
		dispatcher: newDispatcher(logger),
		logger:     logger,
	}
}

// SamplePool returns the tree's process-wide sample allocator, for callers
// (the push API, conversion helpers) that need to construct samples to feed
// into a Resource's Push.
func (t *Tree) SamplePool() *sample.Pool {
	return t.samplePool
}

// allocNamespace draws a fresh Namespace entry from the entry pool, linking
// it under parent. Returns a *errors.HubError with Kind NoMemory when the
// pool is exhausted.
func (t *Tree) allocNamespace(name string, parent *Entry) (*Entry, error) {
	e, err := t.entryPool.Get()
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordPoolExhausted("entry", "namespace")
		}
		return nil, err
	}
	e.name = name
	e.parent = parent
	e.kind = Namespace
	e.flags = flagNew
	return e, nil
}

// release returns an entry to the entry pool after detaching it from its
// parent, used both by rollback and by tombstone flush.
func (t *Tree) release(e *Entry) {
	e.detach()
	t.entryPool.Put(e)
}

// Root returns the tree's permanent root entry.
func (t *Tree) Root() *Entry { return t.root }

// SetMetrics attaches a metrics sink, instrumenting entry-pool exhaustion,
// push outcomes, and change-event dispatch with Prometheus counters/gauges.
// Calling it is optional; a nil or never-attached metrics sink leaves every
// instrumentation call a no-op.
func (t *Tree) SetMetrics(m *metric.Metrics) {
	t.metrics = m
	t.dispatcher.metrics = m
}

// recordErrorMetric increments the error counter for err's administrative
// Kind, if any. Intended for use in a defer at the public API boundary so
// every Kind-tagged error the tree returns is counted exactly once.
func (t *Tree) recordErrorMetric(err error) {
	if t.metrics == nil || err == nil {
		return
	}
	if kind := errors.KindOf(err); kind != errors.KindNone {
		t.metrics.RecordError(kind.String())
	}
}

// resolveBase returns root when path is absolute (leading "/"), and base
// (defaulting to root) otherwise.
func (t *Tree) resolveBase(base *Entry, path string) *Entry {
	if strings.HasPrefix(path, "/") {
		return t.root
	}
	if base == nil {
		return t.root
	}
	return base
}

// AddListener registers a synchronous change listener.
func (t *Tree) AddListener(l Listener) { t.dispatcher.AddListener(l) }

// SetNotifier attaches the optional NATS-backed change notifier.
func (t *Tree) SetNotifier(n *Notifier) { t.dispatcher.SetNotifier(n) }

// FindEntry walks the tree from base, one segment at a time, consulting
// children including tombstones but returning nil when the final resolved
// entry is itself deleted.
func (t *Tree) FindEntry(base *Entry, path string) (_ *Entry, err error) {
	defer func() { t.recordErrorMetric(err) }()
	base = t.resolveBase(base, path)
	if isPathMalformed(path, t.cfg.MaxNameBytes, t.cfg.MaxPathBytes) {
		return nil, errors.Newf(errors.KindBadParameter, "malformed path %q", path)
	}
	segments, err := splitPath(path)
	if err != nil {
		return nil, errors.New(errors.KindBadParameter, err)
	}

	cur := base
	for _, seg := range segments {
		next := cur.findChildEx(seg)
		if next == nil {
			return nil, nil
		}
		cur = next
	}
	if cur.IsDeleted() {
		return nil, nil
	}
	return cur, nil
}

// GetEntry is FindEntry with autoprovisioning: missing segments are
// created as Namespace children, and a tombstone matched by name is
// resurrected in place rather than replaced.
func (t *Tree) GetEntry(base *Entry, path string) (_ *Entry, err error) {
	defer func() { t.recordErrorMetric(err) }()
	base = t.resolveBase(base, path)
	if isPathMalformed(path, t.cfg.MaxNameBytes, t.cfg.MaxPathBytes) {
		return nil, errors.Newf(errors.KindBadParameter, "malformed path %q", path)
	}
	segments, err := splitPath(path)
	if err != nil {
		return nil, errors.New(errors.KindBadParameter, err)
	}

	cur := base
	created := make([]*Entry, 0, len(segments))

	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			t.release(created[i])
		}
	}

	for _, seg := range segments {
		existing := cur.findChildEx(seg)
		if existing != nil {
			if existing.IsDeleted() {
				t.resurrect(existing)
			}
			cur = existing
			continue
		}

		child, err := t.allocNamespace(seg, cur)
		if err != nil {
			rollback()
			return nil, err
		}
		cur.children = append(cur.children, child)
		created = append(created, child)
		cur = child
	}

	return cur, nil
}

func (t *Tree) resurrect(e *Entry) {
	e.flags = flagNew
	e.resource = nil
	e.kind = Namespace
	e.generation++
	entrySeq.Add(1)
}

// GetResource promotes a Namespace entry to Placeholder the first time it
// is touched, allocating its backing Resource. The placeholder flavor (io
// vs observation) is selected by path: anything under the observations
// root becomes an observation placeholder.
func (t *Tree) GetResource(base *Entry, path string) (*Entry, error) {
	e, err := t.GetEntry(base, path)
	if err != nil {
		return nil, err
	}

	if e.kind != Namespace {
		return e, nil
	}

	e.kind = Placeholder
	e.resource = newResource(e, t.metrics)
	e.flavor = t.flavorFor(e)
	return e, nil
}

// flavorFor decides whether e is an io placeholder or an observation
// placeholder by its position in the tree.
func (t *Tree) flavorFor(e *Entry) placeholderFlavor {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.parent == t.root && cur.name == ObservationsRoot {
			return flavorObservation
		}
	}
	return flavorIO
}

// CreateInput promotes a Placeholder (or Namespace) at path to an Input of
// the given data type and units. Calling it again on an existing Input
// with identical type and units is idempotent; a type or units mismatch is
// BadParameter.
func (t *Tree) CreateInput(base *Entry, path string, dt sample.DataType, units string) (*Entry, error) {
	return t.createIO(base, path, Input, dt, units)
}

// CreateOutput is CreateInput's Output counterpart.
func (t *Tree) CreateOutput(base *Entry, path string, dt sample.DataType, units string) (*Entry, error) {
	return t.createIO(base, path, Output, dt, units)
}

func (t *Tree) createIO(base *Entry, path string, kind Kind, dt sample.DataType, units string) (_ *Entry, err error) {
	defer func() { t.recordErrorMetric(err) }()
	e, err := t.GetResource(base, path)
	if err != nil {
		return nil, err
	}

	switch e.kind {
	case Placeholder:
		if e.flavor != flavorIO {
			return nil, errors.Newf(errors.KindBadParameter,
				"%q is an observation placeholder, cannot create %s", path, kind)
		}
		e.kind = kind
		e.resource.setTypeAndUnits(dt, units)
		t.dispatcher.dispatch(t.absolutePath(e), kind, Added)
		return e, nil
	case Input, Output:
		if e.kind != kind {
			return nil, errors.Newf(errors.KindBadParameter,
				"%q is already a %s, cannot become %s", path, e.kind, kind)
		}
		if e.resource.DataType() != dt || e.resource.Units() != units {
			return nil, errors.Newf(errors.KindBadParameter,
				"%q already exists with a different data type or units", path)
		}
		return e, nil
	case Observation:
		return nil, errors.Newf(errors.KindBadParameter, "%q is an Observation, cannot become %s", path, kind)
	default:
		return nil, errors.Newf(errors.KindBadParameter, "%q is in an unexpected state %s", path, e.kind)
	}
}

// GetObservation promotes a Placeholder to Observation, dispatching ADDED
// only on the Placeholder->Observation transition. Calling it again on an
// existing Observation returns the same entry with no additional event.
// It is an error on an existing Input or Output.
func (t *Tree) GetObservation(base *Entry, path string) (_ *Entry, err error) {
	defer func() { t.recordErrorMetric(err) }()
	if base == nil {
		base = t.root
	}
	obsRoot, err := t.GetEntry(base, "/"+ObservationsRoot)
	if err != nil {
		return nil, err
	}
	_ = obsRoot // ensures the observations namespace exists

	e, err := t.GetResource(base, path)
	if err != nil {
		return nil, err
	}

	switch e.kind {
	case Placeholder:
		if e.flavor != flavorObservation {
			return nil, errors.Newf(errors.KindBadParameter,
				"%q is an io placeholder, cannot become an Observation", path)
		}
		e.kind = Observation
		t.dispatcher.dispatch(t.absolutePath(e), Observation, Added)
		return e, nil
	case Observation:
		return e, nil
	default:
		return nil, errors.Newf(errors.KindBadParameter,
			"%q is a %s, cannot become an Observation", path, e.kind)
	}
}

// DeleteIO demotes an Input/Output entry back to Placeholder if admin
// settings remain, otherwise converts it to a tombstoned Namespace. A
// REMOVED event fires once regardless of which demotion path is taken.
func (t *Tree) DeleteIO(e *Entry) (err error) {
	defer func() { t.recordErrorMetric(err) }()
	if e.kind != Input && e.kind != Output {
		return errors.Newf(errors.KindBadParameter, "DeleteIO: entry is %s, not Input/Output", e.kind)
	}
	prevKind := e.kind
	path := t.absolutePath(e)

	if e.resource.HasAdminSettings() {
		e.kind = Placeholder
	} else {
		t.convertToTombstonedNamespace(e)
	}

	t.dispatcher.dispatch(path, prevKind, Removed)
	return nil
}

// DeleteObservation demotes an Observation straight to a tombstoned
// Namespace.
func (t *Tree) DeleteObservation(e *Entry) (err error) {
	defer func() { t.recordErrorMetric(err) }()
	if e.kind != Observation {
		return errors.Newf(errors.KindBadParameter, "DeleteObservation: entry is %s, not Observation", e.kind)
	}
	path := t.absolutePath(e)
	t.convertToTombstonedNamespace(e)
	t.dispatcher.dispatch(path, Observation, Removed)
	return nil
}

func (t *Tree) convertToTombstonedNamespace(e *Entry) {
	e.resource = nil
	e.kind = Namespace
	e.flags = 0
	e.setDeleted()
}

// FlushTombstones detaches every Namespace tombstone in the subtree rooted
// at e that has no remaining live children. It returns the number of
// entries detached.
func (t *Tree) FlushTombstones(e *Entry) int {
	if e == nil {
		e = t.root
	}
	n := 0
	// Walk a snapshot of children since detach mutates e.children.
	children := append([]*Entry(nil), e.children...)
	for _, c := range children {
		n += t.FlushTombstones(c)
	}
	if e != t.root && e.kind == Namespace && e.IsDeleted() && len(e.children) == 0 {
		t.release(e)
		n++
	}
	return n
}

// GetPath reconstructs the path from base to entry, recursing up entry's
// parent chain. Returns NotFound if entry is not beneath base.
func (t *Tree) GetPath(base, entry *Entry) (_ string, err error) {
	defer func() { t.recordErrorMetric(err) }()
	if entry == base {
		return "", nil
	}

	var segments []string
	cur := entry
	for cur != nil && cur != base {
		segments = append(segments, cur.name)
		cur = cur.parent
	}
	if cur != base {
		return "", errors.Newf(errors.KindNotFound, "entry is not beneath the supplied base")
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	rel := strings.Join(segments, "/")
	if base == t.root {
		return "/" + rel, nil
	}
	return rel, nil
}

// absolutePath is GetPath(root, e), used internally for change dispatch.
func (t *Tree) absolutePath(e *Entry) string {
	p, err := t.GetPath(t.root, e)
	if err != nil {
		return ""
	}
	return p
}

// ForEachResource performs a depth-first pre-order walk over the root,
// invoking f on every entry whose kind is not Namespace and whose resource
// handle is non-nil.
func (t *Tree) ForEachResource(f func(e *Entry, r *Resource)) {
	t.walk(t.root, f)
}

// ReportShapeMetrics recomputes the entry-count-by-kind gauges and the
// pending-tombstone gauge from the current tree shape. Cheap enough to call
// on a periodic ticker; a no-op if no metrics sink was attached via
// SetMetrics.
func (t *Tree) ReportShapeMetrics() {
	if t.metrics == nil {
		return
	}
	counts := map[Kind]int{}
	tombstones := 0
	t.walkAll(t.root, func(e *Entry) {
		counts[e.kind]++
		if e.kind == Namespace && e.IsDeleted() {
			tombstones++
		}
	})
	for _, k := range []Kind{Namespace, Placeholder, Input, Output, Observation} {
		t.metrics.SetEntriesByKind(k.String(), counts[k])
	}
	t.metrics.SetTombstonesPending(tombstones)
}

// walkAll is ForEachResource's traversal without the Namespace/nil-resource
// filter, visiting every entry including tombstones and namespaces.
func (t *Tree) walkAll(e *Entry, f func(*Entry)) {
	f(e)
	for _, c := range e.children {
		t.walkAll(c, f)
	}
}

func (t *Tree) walk(e *Entry, f func(*Entry, *Resource)) {
	if e.kind != Namespace && e.resource != nil {
		f(e, e.resource)
	}
	for _, c := range e.children {
		if !c.IsDeleted() {
			t.walk(c, f)
		}
	}
}
