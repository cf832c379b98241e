package research

import "sync"

// Reporter receives activity, source-discovery and progress events as they
// happen. The engine calls it synchronously at well-defined points; events
// are never batched or reordered. Implementations must tolerate calls from
// the concurrent extract phase, or be wrapped in a SyncReporter.
type Reporter interface {
	OnActivity(ActivityEvent)
	OnSource(Source)
	OnProgress(Progress)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) OnActivity(ActivityEvent) {}
func (NopReporter) OnSource(Source)          {}
func (NopReporter) OnProgress(Progress)      {}

// SyncReporter serializes calls to a wrapped reporter so that extraction
// completions reporting near-simultaneously never interleave.
type SyncReporter struct {
	mu   sync.Mutex
	next Reporter
}

func NewSyncReporter(next Reporter) *SyncReporter {
	return &SyncReporter{next: next}
}

func (r *SyncReporter) OnActivity(e ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next.OnActivity(e)
}

func (r *SyncReporter) OnSource(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next.OnSource(s)
}

func (r *SyncReporter) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next.OnProgress(p)
}
