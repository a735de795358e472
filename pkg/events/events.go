// Package events implements the diagnostic event bus the compilation
// pipeline and workspace coordinator publish progress and diagnostics to.
// Every stage of a build reports through here rather than writing
// directly to a logger, so a caller (a test, a CLI, an IDE integration)
// can observe exactly what happened without scraping log output.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags which variant a CompilationEvent carries.
type Kind string

// Recognised event kinds.
const (
	KindPipelineStarted     Kind = "pipeline_started"
	KindPipelineCompleted   Kind = "pipeline_completed"
	KindStageStarted        Kind = "stage_started"
	KindStageCompleted      Kind = "stage_completed"
	KindValidationNote      Kind = "validation_note"
	KindDependencyNote      Kind = "dependency_note"
	KindPackageDiscovered   Kind = "package_discovered"
	KindPackageStarted      Kind = "package_compilation_started"
	KindPackageCompleted    Kind = "package_compilation_completed"
	KindCompilerOutput      Kind = "compiler_output"
	KindChangeDetection     Kind = "change_detection_result"
	KindIncrementalCacheNote Kind = "incremental_cache_note"
)

// Diagnostic is a single compiler-reported note attached to a
// package_compilation_completed event.
type Diagnostic struct {
	Severity string // "error" | "warning"
	File     string
	Line     int
	Column   int
	Message  string
	Snippet  string
}

// CompilationEvent is a tagged union: Kind selects which of the other
// fields are meaningful, matching the one-struct-many-kinds style the
// pipeline's own stage results use.
type CompilationEvent struct {
	Kind          Kind
	CorrelationID string
	Time          time.Time

	// Pipeline / stage
	StageName string
	Err       string

	// Validation / dependency notes
	Message string

	// Package discovery / compilation
	PackageName string
	Diagnostics []Diagnostic

	// Raw compiler output
	Line     string
	IsStderr bool

	// Change detection / incremental cache
	Changed bool
	Reason  string
}

// Observer receives events published to a Bus.
type Observer func(CompilationEvent)

// Bus is a thread-safe, per-build event bus. The zero value is usable.
// Subscribe/Unsubscribe replace the whole observer map under a mutex
// (copy-on-write) so Publish never holds a lock while calling out to
// observer code.
type Bus struct {
	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
}

// NewBus constructs an empty Bus with no observers.
func NewBus() *Bus {
	return &Bus{observers: make(map[int]Observer)}
}

// Subscribe registers fn and returns a token to later Unsubscribe it.
func (b *Bus) Subscribe(fn Observer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	next := make(map[int]Observer, len(b.observers)+1)
	for k, v := range b.observers {
		next[k] = v
	}
	next[id] = fn
	b.observers = next
	return id
}

// Unsubscribe removes the observer registered under token.
func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.observers[token]; !ok {
		return
	}
	next := make(map[int]Observer, len(b.observers)-1)
	for k, v := range b.observers {
		if k == token {
			continue
		}
		next[k] = v
	}
	b.observers = next
}

// Publish fans ev out to every currently subscribed observer. The
// observer snapshot is read under the lock but invoked outside it, so a
// slow or re-entrant observer never blocks Subscribe/Unsubscribe.
func (b *Bus) Publish(ev CompilationEvent) {
	b.mu.Lock()
	snapshot := b.observers
	b.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

// NewCorrelationID mints a fresh id for a build run, used to correlate
// every event published during one pipeline invocation.
func NewCorrelationID() string {
	return uuid.NewString()
}
