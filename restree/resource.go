package restree

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/pkg/buffer"
	"github.com/c360/datahub/sample"
)

// PushHandler is invoked after a sample is accepted by Push, mirroring the
// resource layer's AddPushHandler collaborator hook.
type PushHandler func(r *Resource, s *sample.Sample)

// Resource is the concrete collaborator every non-Namespace Entry owns. Its
// filter/routing logic is intentionally minimal; it exists to give the tree
// a real, addressable handle to delegate to and to be exercised by the
// hub's own tests — grounded on
// original_source/components/dataHub/resource.c and obs.c.
type Resource struct {
	mu sync.Mutex

	entry    *Entry
	dataType sample.DataType
	units    string
	metrics  *metric.Metrics

	current  *sample.Sample
	def      *sample.Sample
	override *sample.Sample

	jsonExample        string
	jsonExampleChanged bool

	source *Resource

	pushHandlers []PushHandler

	// Observation-only admin settings. Accessing these on an Input/Output
	// resource is a programmer error handled by the façade.
	minPeriod      float64
	limiter        *rate.Limiter
	highLimit      float64
	lowLimit       float64
	changeBy       float64
	transform      string
	bufferMaxCount int
	backupPeriod   float64
	extractPath    string
	destination    string
	buf            buffer.Buffer[*sample.Sample]
	hasPrevValue   bool
	prevValue      float64

	// Admin update window: while open, pushes coalesce to at most one
	// pending sample rather than fanning out immediately.
	updateOpen bool
	pending    *sample.Sample

	// Snapshot bookkeeping. Parallels the Namespace NEW flag but lives on
	// the resource, keeping the two bit-layouts in sync.
	isNew              bool
	relevant           bool
	clearNewRequired   bool

	hasDefault  bool
	hasOverride bool
}

func newResource(e *Entry, m *metric.Metrics) *Resource {
	return &Resource{
		entry:     e,
		metrics:   m,
		highLimit: math.NaN(),
		lowLimit:  math.NaN(),
		isNew:     true,
	}
}

// HasAdminSettings reports whether any admin override, default, routing
// source, or (for Observations) filter setting has been configured — the
// condition DeleteIO consults to decide Placeholder vs. Namespace demotion.
func (r *Resource) HasAdminSettings() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasDefault || r.hasOverride || r.source != nil ||
		r.minPeriod != 0 || r.bufferMaxCount != 0 || r.extractPath != "" || r.destination != "" ||
		!math.IsNaN(r.highLimit) || !math.IsNaN(r.lowLimit) || r.changeBy != 0 ||
		r.transform != "" || r.backupPeriod != 0
}

// DataType returns the resource's declared value type.
func (r *Resource) DataType() sample.DataType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dataType
}

// Units returns the resource's immutable units string.
func (r *Resource) Units() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units
}

func (r *Resource) setTypeAndUnits(dt sample.DataType, units string) {
	r.dataType = dt
	r.units = units
}

// AddPushHandler registers a callback invoked for every sample Push accepts.
func (r *Resource) AddPushHandler(h PushHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushHandlers = append(r.pushHandlers, h)
}

// Push delivers a sample to the resource, taking ownership of its
// reference. Filter evaluation follows obs.c:FilterSample.
func (r *Resource) Push(s *sample.Sample) error {
	start := time.Now()
	r.mu.Lock()

	kind := r.entry.kind.String()

	if r.entry.kind == Namespace {
		r.mu.Unlock()
		s.Release()
		r.recordPush(kind, "rejected")
		return errors.New(errors.KindBadParameter,
			errNamespacePush)
	}

	if r.updateOpen {
		if r.pending != nil {
			r.pending.Release()
		}
		r.pending = s
		r.mu.Unlock()
		r.recordPush(kind, "coalesced")
		return nil
	}

	if r.entry.kind == Observation && r.limiter != nil && !r.limiter.Allow() {
		r.mu.Unlock()
		s.Release()
		r.recordPush(kind, "dropped")
		r.recordPushRejected("min_period")
		return nil
	}

	if r.entry.kind == Observation && !r.passesFilter(s) {
		r.mu.Unlock()
		s.Release()
		r.recordPush(kind, "dropped")
		r.recordPushRejected("filter")
		return nil
	}

	r.acceptLocked(s)
	handlers := append([]PushHandler(nil), r.pushHandlers...)
	r.mu.Unlock()

	for _, h := range handlers {
		h(r, s)
	}
	s.Release()
	r.recordPush(kind, "accepted")
	if r.metrics != nil {
		r.metrics.RecordPushDuration(kind, time.Since(start))
	}
	return nil
}

func (r *Resource) recordPush(kind, status string) {
	if r.metrics != nil {
		r.metrics.RecordPush(kind, status)
	}
}

func (r *Resource) recordPushRejected(reason string) {
	if r.metrics != nil {
		r.metrics.RecordPushRejected(reason)
	}
}

var errNamespacePush = errorString("push to a namespace entry")

type errorString string

func (e errorString) Error() string { return string(e) }

// passesFilter applies high/low limit and change-by thresholds, grounded on
// obs.c:FilterSample: limits only meaningfully constrain numeric/boolean
// data (boolean treated as 0/1).
func (r *Resource) passesFilter(s *sample.Sample) bool {
	v, numeric := numericView(s)
	if !numeric {
		return true
	}

	if !math.IsNaN(r.highLimit) && v > r.highLimit {
		return false
	}
	if !math.IsNaN(r.lowLimit) && v < r.lowLimit {
		return false
	}
	if r.changeBy > 0 && r.hasPrevValue && math.Abs(v-r.prevValue) < r.changeBy {
		return false
	}
	return true
}

func numericView(s *sample.Sample) (float64, bool) {
	if v, ok := s.NumericValue(); ok {
		return v, true
	}
	if v, ok := s.BoolValue(); ok {
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// acceptLocked must be called with r.mu held. It updates the current value
// and, for Observations, the sample buffer.
func (r *Resource) acceptLocked(s *sample.Sample) {
	if r.current != nil {
		r.current.Release()
	}
	r.current = s.AddRef()

	if v, ok := numericView(s); ok {
		r.hasPrevValue = true
		r.prevValue = v
	}

	if r.entry.kind == Observation && r.buf != nil {
		_ = r.buf.Write(s.AddRef())
	}
}

// GetCurrentValue returns the resource's last accepted sample, or nil.
func (r *Resource) GetCurrentValue() *sample.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetSource assigns dst's routing predecessor, rejecting cycles with
// KindDuplicate. src == nil clears the route.
func SetSource(dst, src *Resource) error {
	if src == nil {
		dst.mu.Lock()
		dst.source = nil
		dst.mu.Unlock()
		return nil
	}

	if wouldCycle(dst, src) {
		return errors.New(errors.KindDuplicate, errRoutingCycle)
	}

	dst.mu.Lock()
	dst.source = src
	dst.mu.Unlock()
	return nil
}

var errRoutingCycle = errorString("SetSource would create a routing cycle")

// wouldCycle reports whether routing dst from src would close a cycle in
// the source graph, i.e. src (or any of its ancestors-by-source) is dst.
func wouldCycle(dst, src *Resource) bool {
	for cur := src; cur != nil; {
		cur.mu.Lock()
		next := cur.source
		cur.mu.Unlock()
		if cur == dst {
			return true
		}
		cur = next
	}
	return false
}

// GetSource returns dst's current routing predecessor, or nil.
func (r *Resource) GetSource() *Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// SetMinPeriod configures the minimum interval between accepted pushes for
// an Observation, using a token-bucket limiter. Zero disables throttling.
func (r *Resource) SetMinPeriod(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minPeriod = seconds
	if seconds <= 0 {
		r.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	r.limiter = rate.NewLimiter(rate.Every(time.Duration(seconds*float64(time.Second))), 1)
}

// MinPeriod returns the configured minimum push period.
func (r *Resource) MinPeriod() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minPeriod
}

// SetHighLimit/SetLowLimit/SetChangeBy configure Observation filter
// thresholds; NaN clears a limit.
func (r *Resource) SetHighLimit(v float64) { r.mu.Lock(); r.highLimit = v; r.mu.Unlock() }
func (r *Resource) HighLimit() float64     { r.mu.Lock(); defer r.mu.Unlock(); return r.highLimit }
func (r *Resource) SetLowLimit(v float64)  { r.mu.Lock(); r.lowLimit = v; r.mu.Unlock() }
func (r *Resource) LowLimit() float64      { r.mu.Lock(); defer r.mu.Unlock(); return r.lowLimit }
func (r *Resource) SetChangeBy(v float64)  { r.mu.Lock(); r.changeBy = v; r.mu.Unlock() }
func (r *Resource) ChangeBy() float64      { r.mu.Lock(); defer r.mu.Unlock(); return r.changeBy }

// SetTransform/Transform configure the Observation's named value transform
// (evaluated by the out-of-scope push pipeline; the tree only stores it).
func (r *Resource) SetTransform(name string) { r.mu.Lock(); r.transform = name; r.mu.Unlock() }
func (r *Resource) Transform() string        { r.mu.Lock(); defer r.mu.Unlock(); return r.transform }

// SetBufferMaxCount (re)sizes the Observation's sample buffer.
func (r *Resource) SetBufferMaxCount(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		r.bufferMaxCount = 0
		r.buf = nil
		return nil
	}
	buf, err := buffer.NewCircularBuffer[*sample.Sample](n, buffer.WithOverflowPolicy[*sample.Sample](buffer.DropOldest))
	if err != nil {
		return errors.WrapFatal(err, "restree", "SetBufferMaxCount", "allocate observation buffer")
	}
	r.bufferMaxCount = n
	r.buf = buf
	return nil
}

func (r *Resource) BufferMaxCount() int { r.mu.Lock(); defer r.mu.Unlock(); return r.bufferMaxCount }

// SetBackupPeriod/BackupPeriod store the buffer backup cadence; persistence
// itself is owned by the resource layer's collaborator, not implemented
// here.
func (r *Resource) SetBackupPeriod(seconds float64) { r.mu.Lock(); r.backupPeriod = seconds; r.mu.Unlock() }
func (r *Resource) BackupPeriod() float64           { r.mu.Lock(); defer r.mu.Unlock(); return r.backupPeriod }

// SetJSONExtractionPath/JSONExtractionPath store the JSONPath expression
// applied to inbound JSON samples before filtering.
func (r *Resource) SetJSONExtractionPath(path string) { r.mu.Lock(); r.extractPath = path; r.mu.Unlock() }
func (r *Resource) JSONExtractionPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extractPath
}

// SetDestination/Destination store the Observation's downstream routing
// target name (interpreted by the out-of-scope push pipeline).
func (r *Resource) SetDestination(dest string) { r.mu.Lock(); r.destination = dest; r.mu.Unlock() }
func (r *Resource) Destination() string        { r.mu.Lock(); defer r.mu.Unlock(); return r.destination }

// SetDefault/GetDefault/RemoveDefault manage the resource's administrative
// default value, used when no live sample has arrived yet.
func (r *Resource) SetDefault(s *sample.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.def != nil {
		r.def.Release()
	}
	r.def = s
	r.hasDefault = s != nil
}

func (r *Resource) GetDefault() *sample.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def
}

func (r *Resource) RemoveDefault() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.def != nil {
		r.def.Release()
		r.def = nil
	}
	r.hasDefault = false
}

// SetOverride/GetOverride/RemoveOverride manage the administrative override
// value, which takes precedence over live pushes when present.
func (r *Resource) SetOverride(s *sample.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.override != nil {
		r.override.Release()
	}
	r.override = s
	r.hasOverride = s != nil
}

func (r *Resource) GetOverride() *sample.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.override
}

func (r *Resource) HasOverride() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasOverride
}

func (r *Resource) RemoveOverride() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.override != nil {
		r.override.Release()
		r.override = nil
	}
	r.hasOverride = false
}

// SetJSONExample/GetJSONExample/IsJSONExampleChanged manage the discovery
// example value, grounded on resource.c's resTree_SetJsonExample.
func (r *Resource) SetJSONExample(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jsonExample != v {
		r.jsonExampleChanged = true
	}
	r.jsonExample = v
}

func (r *Resource) GetJSONExample() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jsonExample
}

func (r *Resource) IsJSONExampleChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jsonExampleChanged
}

// StartUpdate opens the admin update window: subsequent pushes coalesce to
// at most one pending sample until EndUpdate.
func (r *Resource) StartUpdate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateOpen = true
}

// EndUpdate closes the admin update window, delivering any coalesced
// pending sample as if it had just been pushed.
func (r *Resource) EndUpdate() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.updateOpen = false
	r.mu.Unlock()

	if pending != nil {
		_ = r.Push(pending)
	}
}

// SetRelevance/IsRelevant/SetClearNewnessFlag/IsNewnessClearRequired/
// ClearNewness/IsNew implement the resource-side snapshot bookkeeping
// group, parallel to the Namespace NEW/RELEVANT bits.
func (r *Resource) SetRelevance(v bool)          { r.mu.Lock(); r.relevant = v; r.mu.Unlock() }
func (r *Resource) IsRelevant() bool             { r.mu.Lock(); defer r.mu.Unlock(); return r.relevant }
func (r *Resource) SetClearNewnessFlag(v bool)   { r.mu.Lock(); r.clearNewRequired = v; r.mu.Unlock() }
func (r *Resource) IsNewnessClearRequired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearNewRequired
}

func (r *Resource) ClearNewness() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isNew = false
	r.clearNewRequired = false
}

func (r *Resource) IsNew() bool { r.mu.Lock(); defer r.mu.Unlock(); return r.isNew }

// QueryMin/QueryMax/QueryMean/QueryStdDev scan the Observation's buffered
// numeric samples, grounded on obs.c's obs_QueryMin family. Each returns
// NaN on an empty or all-non-numeric buffer.
func (r *Resource) QueryMin() float64 { return r.aggregate(aggMin) }
func (r *Resource) QueryMax() float64 { return r.aggregate(aggMax) }
func (r *Resource) QueryMean() float64 {
	return r.aggregate(aggMean)
}
func (r *Resource) QueryStdDev() float64 { return r.aggregate(aggStdDev) }

type aggFunc int

const (
	aggMin aggFunc = iota
	aggMax
	aggMean
	aggStdDev
)

func (r *Resource) aggregate(fn aggFunc) float64 {
	samples := r.snapshotBuffer()
	if len(samples) == 0 {
		return math.NaN()
	}

	var values []float64
	for _, s := range samples {
		if v, ok := numericView(s); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return math.NaN()
	}

	switch fn {
	case aggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case aggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case aggMean:
		return mean(values)
	case aggStdDev:
		return stddev(values)
	default:
		return math.NaN()
	}
}

// snapshotBuffer returns the Observation's currently buffered samples in
// FIFO order without discarding them, by draining and immediately refilling
// the circular buffer — acceptable under the hub's single-threaded
// cooperative model, where no concurrent Push can interleave.
func (r *Resource) snapshotBuffer() []*sample.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf == nil {
		return nil
	}
	items := r.buf.ReadBatch(r.buf.Capacity())
	for _, s := range items {
		_ = r.buf.Write(s)
	}
	return items
}

// FindBufferedSampleAfter returns the first buffered sample whose timestamp
// is strictly after after, or nil. Grounded on obs.c's
// obs_FindBufferedSampleAfter.
func (r *Resource) FindBufferedSampleAfter(after float64) *sample.Sample {
	for _, s := range r.snapshotBuffer() {
		if s.Timestamp() > after {
			return s
		}
	}
	return nil
}

// BufferedSamplesSince returns the buffered samples whose timestamp is
// strictly after startAfter, in FIFO order. Callers resolve the 30-year
// relative/absolute heuristic (pkg/timestamp.IsRelativeSeconds) before
// calling this; NaN means "from the oldest retained sample".
func (r *Resource) BufferedSamplesSince(startAfter float64) []*sample.Sample {
	all := r.snapshotBuffer()
	if startAfter != startAfter { // NaN
		return all
	}
	out := all[:0:0]
	for _, s := range all {
		if s.Timestamp() > startAfter {
			out = append(out, s)
		}
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
