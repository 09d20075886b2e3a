// Package observation is a thin pass-through façade exposing
// per-observation administrative getters/setters, forwarding to the
// underlying restree.Resource only after validating the entry is of
// Observation kind.
//
// Every accessor here applies the same kind guard: invalid-kind calls log
// at slog.LevelWarn and return a neutral default rather than panicking or
// silently misbehaving.
package observation

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/c360/datahub/pkg/timestamp"
	"github.com/c360/datahub/restree"
	"github.com/c360/datahub/sample"
)

// Facade wraps a single Observation entry, rejecting every call if the
// entry is not (or is no longer) of Observation kind.
type Facade struct {
	entry  *restree.Entry
	logger *slog.Logger
}

// New wraps entry in a Facade. It does not require entry to already be an
// Observation — the kind is re-checked on every call, since DeleteObservation
// may demote the entry out from under a held Facade.
func New(entry *restree.Entry, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{entry: entry, logger: logger}
}

// guard returns the entry's Resource if the entry is currently an
// Observation, logging and returning ok=false otherwise.
func (f *Facade) guard(op string) (*restree.Resource, bool) {
	if f.entry.Kind() != restree.Observation {
		f.logger.Warn("observation facade call on non-observation entry",
			"op", op, "kind", f.entry.Kind().String())
		return nil, false
	}
	return f.entry.Resource(), true
}

// MinPeriod returns the configured minimum push period, or NaN if the
// entry is not an Observation.
func (f *Facade) MinPeriod() float64 {
	r, ok := f.guard("MinPeriod")
	if !ok {
		return math.NaN()
	}
	return r.MinPeriod()
}

// SetMinPeriod sets the minimum push period. A no-op on a non-Observation.
func (f *Facade) SetMinPeriod(seconds float64) {
	if r, ok := f.guard("SetMinPeriod"); ok {
		r.SetMinPeriod(seconds)
	}
}

// HighLimit / SetHighLimit.
func (f *Facade) HighLimit() float64 {
	r, ok := f.guard("HighLimit")
	if !ok {
		return math.NaN()
	}
	return r.HighLimit()
}

func (f *Facade) SetHighLimit(v float64) {
	if r, ok := f.guard("SetHighLimit"); ok {
		r.SetHighLimit(v)
	}
}

// LowLimit / SetLowLimit.
func (f *Facade) LowLimit() float64 {
	r, ok := f.guard("LowLimit")
	if !ok {
		return math.NaN()
	}
	return r.LowLimit()
}

func (f *Facade) SetLowLimit(v float64) {
	if r, ok := f.guard("SetLowLimit"); ok {
		r.SetLowLimit(v)
	}
}

// ChangeBy / SetChangeBy.
func (f *Facade) ChangeBy() float64 {
	r, ok := f.guard("ChangeBy")
	if !ok {
		return math.NaN()
	}
	return r.ChangeBy()
}

func (f *Facade) SetChangeBy(v float64) {
	if r, ok := f.guard("SetChangeBy"); ok {
		r.SetChangeBy(v)
	}
}

// Transform / SetTransform.
func (f *Facade) Transform() string {
	r, ok := f.guard("Transform")
	if !ok {
		return ""
	}
	return r.Transform()
}

func (f *Facade) SetTransform(name string) {
	if r, ok := f.guard("SetTransform"); ok {
		r.SetTransform(name)
	}
}

// BufferMaxCount / SetBufferMaxCount.
func (f *Facade) BufferMaxCount() int {
	r, ok := f.guard("BufferMaxCount")
	if !ok {
		return 0
	}
	return r.BufferMaxCount()
}

func (f *Facade) SetBufferMaxCount(n int) error {
	r, ok := f.guard("SetBufferMaxCount")
	if !ok {
		return nil
	}
	return r.SetBufferMaxCount(n)
}

// BackupPeriod / SetBackupPeriod.
func (f *Facade) BackupPeriod() float64 {
	r, ok := f.guard("BackupPeriod")
	if !ok {
		return math.NaN()
	}
	return r.BackupPeriod()
}

func (f *Facade) SetBackupPeriod(seconds float64) {
	if r, ok := f.guard("SetBackupPeriod"); ok {
		r.SetBackupPeriod(seconds)
	}
}

// JSONExtractionPath / SetJSONExtractionPath.
func (f *Facade) JSONExtractionPath() string {
	r, ok := f.guard("JSONExtractionPath")
	if !ok {
		return ""
	}
	return r.JSONExtractionPath()
}

func (f *Facade) SetJSONExtractionPath(path string) {
	if r, ok := f.guard("SetJSONExtractionPath"); ok {
		r.SetJSONExtractionPath(path)
	}
}

// Destination / SetDestination.
func (f *Facade) Destination() string {
	r, ok := f.guard("Destination")
	if !ok {
		return ""
	}
	return r.Destination()
}

func (f *Facade) SetDestination(dest string) {
	if r, ok := f.guard("SetDestination"); ok {
		r.SetDestination(dest)
	}
}

// QueryMin / QueryMax / QueryMean / QueryStdDev.
func (f *Facade) QueryMin() float64 {
	r, ok := f.guard("QueryMin")
	if !ok {
		return math.NaN()
	}
	return r.QueryMin()
}

func (f *Facade) QueryMax() float64 {
	r, ok := f.guard("QueryMax")
	if !ok {
		return math.NaN()
	}
	return r.QueryMax()
}

func (f *Facade) QueryMean() float64 {
	r, ok := f.guard("QueryMean")
	if !ok {
		return math.NaN()
	}
	return r.QueryMean()
}

func (f *Facade) QueryStdDev() float64 {
	r, ok := f.guard("QueryStdDev")
	if !ok {
		return math.NaN()
	}
	return r.QueryStdDev()
}

// bufferRecord is one entry of ReadBufferJson's output array:
// {"t":<seconds.fraction>,"v":<value>} or {"t":...} alone for triggers.
type bufferRecord struct {
	T float64         `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// ReadBufferJson writes a JSON array of the Observation's buffered samples
// to w, honoring startAfter with the 30-year relative/absolute heuristic
// (pkg/timestamp.IsRelativeSeconds). NaN means "from the oldest retained
// sample".
func (f *Facade) ReadBufferJson(w io.Writer, startAfter float64) error {
	r, ok := f.guard("ReadBufferJson")
	if !ok {
		_, err := w.Write([]byte("[]"))
		return err
	}

	cutoff := startAfter
	if !math.IsNaN(startAfter) && timestamp.IsRelativeSeconds(startAfter) {
		now := float64(timestamp.Now()) / 1000.0
		cutoff = now - startAfter
	}

	samples := r.BufferedSamplesSince(cutoff)
	dt := r.DataType()

	records := make([]bufferRecord, 0, len(samples))
	for _, s := range samples {
		rec := bufferRecord{T: s.Timestamp()}
		if dt != sample.Trigger {
			text, err := sample.ConvertToJSON(s, dt, 0)
			if err != nil {
				return fmt.Errorf("ReadBufferJson: %w", err)
			}
			rec.V = json.RawMessage(text)
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(records)
}
