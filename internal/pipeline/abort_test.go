package pipeline

import (
	"sync"
	"testing"
)

func TestAbortRegistryLifecycle(t *testing.T) {
	r := NewAbortRegistry()

	check := r.Register("run-1")
	if check() {
		t.Error("fresh run must not be aborted")
	}
	if !r.Abort("run-1") {
		t.Error("Abort should find a registered run")
	}
	if !check() {
		t.Error("check must observe the abort signal")
	}

	r.Release("run-1")
	if r.Abort("run-1") {
		t.Error("Abort after Release must be a no-op")
	}
	// The check handed to the run stays valid after release.
	if !check() {
		t.Error("released run keeps its final abort state")
	}
}

func TestAbortRegistryUnknownRun(t *testing.T) {
	r := NewAbortRegistry()
	if r.Abort("nope") {
		t.Error("unknown run id must report false")
	}
	r.Release("nope") // must not panic
}

func TestAbortRegistryIndependentRuns(t *testing.T) {
	r := NewAbortRegistry()
	a := r.Register("run-a")
	b := r.Register("run-b")

	r.Abort("run-a")
	if !a() {
		t.Error("run-a should be aborted")
	}
	if b() {
		t.Error("run-b must be unaffected")
	}
}

func TestAbortRegistryConcurrent(t *testing.T) {
	r := NewAbortRegistry()
	check := r.Register("run-1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Abort("run-1")
			check()
		}()
	}
	wg.Wait()

	if !check() {
		t.Error("signal from any goroutine must stick")
	}
}
