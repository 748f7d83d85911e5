package pipeline

import "sync"

// AbortRegistry tracks cooperative abort signals keyed by run id. A run
// registers itself before the first stage and releases its entry when the
// assessment is returned; signalling after release is a no-op.
type AbortRegistry struct {
	mu   sync.Mutex
	runs map[string]*abortFlag
}

type abortFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *abortFlag) signal() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

func (f *abortFlag) aborted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// NewAbortRegistry creates an empty registry.
func NewAbortRegistry() *AbortRegistry {
	return &AbortRegistry{runs: make(map[string]*abortFlag)}
}

// Register adds a run and returns its abort check. The caller must call
// Release with the same id when the run finishes.
func (r *AbortRegistry) Register(runID string) func() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	flag := &abortFlag{}
	r.runs[runID] = flag
	return flag.aborted
}

// Abort signals the run to stop at its next checkpoint. It reports whether
// the run was registered.
func (r *AbortRegistry) Abort(runID string) bool {
	r.mu.Lock()
	flag, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	flag.signal()
	return true
}

// Release removes the run from the registry.
func (r *AbortRegistry) Release(runID string) {
	r.mu.Lock()
	delete(r.runs, runID)
	r.mu.Unlock()
}
