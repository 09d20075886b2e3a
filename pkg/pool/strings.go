package pool

import (
	"fmt"

	"github.com/c360/datahub/errors"
)

// StringClass identifies one of the three string buffer size tiers.
type StringClass int

const (
	// ClassSmall is the tier for short identifiers and small sample values.
	ClassSmall StringClass = iota
	// ClassMedium is the tier for typical JSON-extraction results.
	ClassMedium
	// ClassLarge is the tier for large JSON payloads and buffer dumps.
	ClassLarge
)

// String returns the human-readable name of the size class, used as a
// Prometheus label value.
func (c StringClass) String() string {
	switch c {
	case ClassSmall:
		return "small"
	case ClassMedium:
		return "medium"
	case ClassLarge:
		return "large"
	default:
		return "unknown"
	}
}

// StringPoolConfig holds the byte capacity and pool size of each tier.
type StringPoolConfig struct {
	SmallBytes, MediumBytes, LargeBytes int
	SmallCount, MediumCount, LargeCount int
}

// StringPool is a layered allocator for reusable string/byte buffers with
// three size classes. A request is satisfied from the smallest class whose
// buffer capacity covers the requested length; if that class's free list is
// exhausted, the request donates down from the next larger class rather than
// failing outright — matching the original dataHub string-pool behavior of
// exhausting its own class before falling back to a larger one.
type StringPool struct {
	classes [3]*Pool[[]byte]
	limits  [3]int
}

// NewStringPool constructs the three size-classed pools from cfg.
func NewStringPool(cfg StringPoolConfig) *StringPool {
	zero := func(b []byte) {
		for i := range b {
			b[i] = 0
		}
	}
	sp := &StringPool{
		limits: [3]int{cfg.SmallBytes, cfg.MediumBytes, cfg.LargeBytes},
	}
	sp.classes[ClassSmall] = New("string-small", cfg.SmallCount,
		func() []byte { return make([]byte, cfg.SmallBytes) }, zero)
	sp.classes[ClassMedium] = New("string-medium", cfg.MediumCount,
		func() []byte { return make([]byte, cfg.MediumBytes) }, zero)
	sp.classes[ClassLarge] = New("string-large", cfg.LargeCount,
		func() []byte { return make([]byte, cfg.LargeBytes) }, zero)
	return sp
}

// classFor returns the smallest class whose capacity covers n bytes, or
// ClassLarge if n exceeds even the large tier's limit (the caller is
// responsible for rejecting payloads that exceed the large tier entirely).
func (sp *StringPool) classFor(n int) StringClass {
	for c := ClassSmall; c <= ClassLarge; c++ {
		if n <= sp.limits[c] {
			return c
		}
	}
	return ClassLarge
}

// Get returns a buffer able to hold at least n bytes. It first tries the
// smallest class covering n; on exhaustion it donates down from each larger
// class in turn before giving up with a NoMemory error.
func (sp *StringPool) Get(n int) ([]byte, StringClass, error) {
	start := sp.classFor(n)
	for c := start; c <= ClassLarge; c++ {
		if buf, err := sp.classes[c].Get(); err == nil {
			return buf[:n], start, nil
		}
	}
	return nil, start, errors.New(errors.KindNoMemory,
		fmt.Errorf("string pool exhausted at and above class %s for %d bytes", start, n))
}

// Put returns buf to the pool tier it was requested from (the class recorded
// at Get time, not a class derived from len(buf), since Get may slice a
// larger buffer down to the requested length).
func (sp *StringPool) Put(buf []byte, class StringClass) {
	sp.classes[class].Put(buf[:cap(buf)])
}

// Stats reports available/capacity per class, keyed by class name, for
// metrics reporting (metric.Metrics.RecordPoolExhausted class label values
// match these names).
func (sp *StringPool) Stats() map[string][2]int {
	out := make(map[string][2]int, 3)
	for c := ClassSmall; c <= ClassLarge; c++ {
		out[c.String()] = [2]int{sp.classes[c].Available(), sp.classes[c].Capacity()}
	}
	return out
}
