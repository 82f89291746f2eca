// Package diagnostics is the host engine's log subscriber: a bounded,
// cursor-addressed ring buffer writers append to and readers poll by index.
//
// The buffer shape (mutex-guarded append, trim-oldest-on-overflow,
// cursor-based incremental reads) is grounded on the corpus's PTY replay
// buffer, adapted here from byte offsets to monotonic entry indices.
package diagnostics

import (
	"sync"
)

// Kind classifies a ring entry.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindScript  Kind = "script"
	KindShader  Kind = "shader"
	KindMessage Kind = "message"
)

// Entry is one logged diagnostic.
type Entry struct {
	Index     int64  `json:"index"`
	Kind      Kind   `json:"kind"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Function  string `json:"function,omitempty"`
	Code      string `json:"code,omitempty"`
	Rationale string `json:"rationale,omitempty"`
	TimestampMS int64 `json:"timestamp_ms"`
}

// Capacity is the fixed ring size the spec mandates.
const Capacity = 500

// Ring is the diagnostic sink. Zero value is ready to use.
type Ring struct {
	mu           sync.Mutex
	entries      []Entry // always len <= Capacity, oldest first
	nextIndex    int64
	errorCount   int64
	warningCount int64
}

// New returns an empty Ring.
func New() *Ring {
	return &Ring{}
}

// Log appends a new entry, assigning it the next monotonically increasing
// index. Overflow drops the oldest entry.
func (r *Ring) Log(kind Kind, file string, line int, function, code, rationale string, timestampMS int64) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{
		Index:       r.nextIndex,
		Kind:        kind,
		File:        file,
		Line:        line,
		Function:    function,
		Code:        code,
		Rationale:   rationale,
		TimestampMS: timestampMS,
	}
	r.nextIndex++

	switch kind {
	case KindError, KindShader:
		r.errorCount++
	case KindWarning:
		r.warningCount++
	}

	r.entries = append(r.entries, e)
	if len(r.entries) > Capacity {
		r.entries = r.entries[len(r.entries)-Capacity:]
	}
	return e
}

// Since returns every retained entry with Index >= sinceIndex, plus the
// cursor a client should poll with next time, and the running totals.
func (r *Ring) Since(sinceIndex int64) (entries []Entry, nextIndex int64, errorCount int64, warningCount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Index >= sinceIndex {
			entries = append(entries, e)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, r.nextIndex, r.errorCount, r.warningCount
}

// Totals returns the running error/warning counts without copying the
// buffered entries, for callers (like runtime_info) that only need the
// counters.
func (r *Ring) Totals() (errorCount, warningCount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount, r.warningCount
}

// Clear resets the ring and totals. Used by tests, never by clients.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.nextIndex = 0
	r.errorCount = 0
	r.warningCount = 0
}
