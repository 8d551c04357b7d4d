package store

import (
	"sync/atomic"

	"github.com/flagcore/flagcore-go/internal/ldmodel"
)

// Entry is a reference-counted wrapper over a Flag record, modeled on the
// teacher's flag-store nodes: the store never mutates an entry in place,
// instead replacing the map slot with a brand-new Entry on every update, so
// that readers who already hold an Entry (via Acquire) keep looking at a
// perfectly consistent, unchanging snapshot no matter what happens to the
// store afterward.
//
// Go's garbage collector makes manual reclamation unnecessary for memory
// safety, but the refcount is kept anyway so the invariants in spec.md §4.1
// ("reference counts reach zero exactly once") remain directly testable.
type Entry struct {
	flag     ldmodel.Flag
	refCount int32
}

// newEntry wraps flag in a fresh Entry with one implicit reference, owned by
// whoever is inserting it into the store.
func newEntry(flag ldmodel.Flag) *Entry {
	return &Entry{flag: flag, refCount: 1}
}

// Flag returns the wrapped flag record. The returned value is a Flag value
// (not a pointer into the Entry), so callers can use it freely without
// holding the Entry's reference any longer than necessary.
func (e *Entry) Flag() ldmodel.Flag {
	return e.flag
}

// Acquire increments the reference count and returns e, for callers that
// want to retain the entry beyond the scope in which they obtained it.
func (e *Entry) Acquire() *Entry {
	atomic.AddInt32(&e.refCount, 1)
	return e
}

// Release decrements the reference count. Calling Release more times than
// the entry was acquired is a programming error detected via the refCount
// going negative; it panics rather than silently corrupting state, matching
// spec.md §7's treatment of broken refcounts as unreachable internal
// invariants.
func (e *Entry) Release() {
	n := atomic.AddInt32(&e.refCount, -1)
	if n < 0 {
		panic("store: Entry released more times than it was acquired")
	}
}

// refCountForTest exposes the current count for white-box tests only.
func (e *Entry) refCountForTest() int32 {
	return atomic.LoadInt32(&e.refCount)
}
