package sample

import (
	"sync/atomic"

	"github.com/c360/datahub/pkg/pool"
	"github.com/c360/datahub/pkg/timestamp"
)

// Now is the sentinel timestamp value Create* functions resolve to the
// current wall-clock time at creation, rather than storing literally.
const Now float64 = -1

// Sample is a timestamped, reference-counted value. Samples are immutable
// after construction except for SetTimestamp, and are destroyed (returned to
// their pool) when their last reference is released.
type Sample struct {
	refs      atomic.Int32
	timestamp float64
	kind      valueKind
	boolVal   bool
	numVal    float64

	// String/JSON payload. When the owning pool has a string pool attached,
	// strBuf holds a buffer borrowed from it (released back on reset) and
	// strPooled is set; otherwise strVal holds a plain Go string.
	strVal    string
	strBuf    []byte
	strClass  pool.StringClass
	strPooled bool

	owner *Pool
}

func resolveTimestamp(ts float64) float64 {
	if ts == Now {
		return float64(timestamp.Now()) / 1000.0
	}
	return ts
}

// Timestamp returns the sample's timestamp in seconds since epoch.
func (s *Sample) Timestamp() float64 { return s.timestamp }

// SetTimestamp updates the sample's timestamp in place. It is the one
// mutation permitted after construction.
func (s *Sample) SetTimestamp(ts float64) {
	s.timestamp = resolveTimestamp(ts)
}

// BoolValue returns the sample's boolean payload and whether it holds one.
func (s *Sample) BoolValue() (bool, bool) {
	return s.boolVal, s.kind == valueKindBool
}

// NumericValue returns the sample's float64 payload and whether it holds one.
func (s *Sample) NumericValue() (float64, bool) {
	return s.numVal, s.kind == valueKindFloat
}

// StringValue returns the sample's string payload (shared by String and
// JSON data types) and whether it holds one.
func (s *Sample) StringValue() (string, bool) {
	if s.kind != valueKindString {
		return "", false
	}
	if s.strPooled {
		return string(s.strBuf), true
	}
	return s.strVal, true
}

// AddRef increments the reference count, returning the sample itself for
// call chaining at hand-off sites.
func (s *Sample) AddRef() *Sample {
	s.refs.Add(1)
	return s
}

// Release decrements the reference count; when it reaches zero the sample is
// reset and returned to its owning pool.
func (s *Sample) Release() {
	if s.refs.Add(-1) > 0 {
		return
	}
	if s.owner != nil {
		s.owner.put(s)
	}
}

func (s *Sample) reset() {
	s.timestamp = 0
	s.kind = valueKindNone
	s.boolVal = false
	s.numVal = 0
	s.strVal = ""
	if s.strPooled {
		s.owner.strings.Put(s.strBuf, s.strClass)
		s.strBuf = nil
		s.strPooled = false
	}
}

// Pool is a fixed-capacity allocator of samples, matching the hub's
// process-wide pooled allocation policy. A Pool is typically constructed
// once at startup with config.Config's sample pool capacity.
type Pool struct {
	p       *pool.Pool[*Sample]
	strings *pool.StringPool
}

// PoolOption configures optional Pool behavior at construction time.
type PoolOption func(*Pool)

// WithStringPool attaches a layered string buffer pool that CreateString and
// CreateJSON borrow from instead of allocating plain Go strings. Without this
// option, string/JSON samples fall back to ordinary string storage.
func WithStringPool(strings *pool.StringPool) PoolOption {
	return func(sp *Pool) { sp.strings = strings }
}

// NewPool constructs a sample pool with the given fixed capacity.
func NewPool(capacity int, opts ...PoolOption) *Pool {
	sp := &Pool{}
	for _, opt := range opts {
		opt(sp)
	}
	sp.p = pool.New("sample", capacity,
		func() *Sample { return &Sample{owner: sp} },
		func(s *Sample) { s.reset() },
	)
	return sp
}

func (sp *Pool) put(s *Sample) {
	sp.p.Put(s)
}

func (sp *Pool) alloc() (*Sample, error) {
	s, err := sp.p.Get()
	if err != nil {
		return nil, err
	}
	s.refs.Store(1)
	return s, nil
}

// CreateTrigger allocates a trigger sample (no value) with the given
// timestamp, or Now.
func (sp *Pool) CreateTrigger(ts float64) (*Sample, error) {
	s, err := sp.alloc()
	if err != nil {
		return nil, err
	}
	s.timestamp = resolveTimestamp(ts)
	s.kind = valueKindNone
	return s, nil
}

// CreateBool allocates a boolean sample.
func (sp *Pool) CreateBool(ts float64, v bool) (*Sample, error) {
	s, err := sp.alloc()
	if err != nil {
		return nil, err
	}
	s.timestamp = resolveTimestamp(ts)
	s.kind = valueKindBool
	s.boolVal = v
	return s, nil
}

// CreateNumeric allocates a numeric sample.
func (sp *Pool) CreateNumeric(ts float64, v float64) (*Sample, error) {
	s, err := sp.alloc()
	if err != nil {
		return nil, err
	}
	s.timestamp = resolveTimestamp(ts)
	s.kind = valueKindFloat
	s.numVal = v
	return s, nil
}

// CreateString allocates a string sample. The same internal storage backs
// both String and JSON external data types (see DataType). When the pool has
// a string pool attached (WithStringPool), the payload is copied into a
// borrowed buffer from the appropriate size class rather than a fresh Go
// string allocation.
func (sp *Pool) CreateString(ts float64, v string) (*Sample, error) {
	s, err := sp.alloc()
	if err != nil {
		return nil, err
	}
	if sp.strings != nil {
		buf, class, err := sp.strings.Get(len(v))
		if err != nil {
			s.Release()
			return nil, err
		}
		copy(buf, v)
		s.strBuf = buf
		s.strClass = class
		s.strPooled = true
	} else {
		s.strVal = v
	}
	s.timestamp = resolveTimestamp(ts)
	s.kind = valueKindString
	return s, nil
}

// CreateJSON allocates a sample holding a JSON document or fragment as its
// string payload — structurally identical to CreateString, distinguished
// only by the DataType the caller (the owning resource) remembers.
func (sp *Pool) CreateJSON(ts float64, v string) (*Sample, error) {
	return sp.CreateString(ts, v)
}

// Stats reports the pool's current availability, for metrics reporting.
func (sp *Pool) Stats() (available, capacity int) {
	return sp.p.Available(), sp.p.Capacity()
}
