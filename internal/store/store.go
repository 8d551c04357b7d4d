// Package store implements the flag store (spec.md §4.1): a key→entry map
// with versioned upsert, tombstone delete, bulk put, snapshot iteration, and
// a per-key listener registry. It is the one place flag data lives once it
// leaves the wire; everything else (the variation evaluator, the update
// pipeline) talks to a *Store.
package store

import (
	"sync"

	"github.com/flagcore/flagcore-go/internal/ldmodel"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

// ListenerFunc is invoked when a flag changes. deleted reports whether the
// new state of the flag is a tombstone.
type ListenerFunc func(key string, deleted bool, userData interface{})

type listenerReg struct {
	id       uint64
	fn       ListenerFunc
	userData interface{}
}

// Store is the per-client flag cache. The zero value is not usable; use New.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	initialized bool
	listeners   map[string][]listenerReg
	nextID      uint64
}

// New creates an empty, uninitialized Store.
func New() *Store {
	return &Store{
		entries:   map[string]*Entry{},
		listeners: map[string][]listenerReg{},
	}
}

// IsInitialized reports whether the first successful Put has applied.
func (s *Store) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Get returns an acquired Entry for key if present and not a tombstone, or
// (nil, false) otherwise. Callers must Release the returned Entry once done
// with it.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.flag.Deleted {
		return nil, false
	}
	return e.Acquire(), true
}

// Upsert applies flag if flag.Version >= the current version for that key
// (or there is no current entry); otherwise it is silently discarded, per
// the store's monotonicity rule. Returns true if the flag was applied.
// Registered listeners for flag.Key fire synchronously, with the write lock
// held, once the swap has happened (spec.md §4.1: "for correctness of
// ordering"). Listener callbacks must therefore be non-blocking and must
// not re-enter Store methods.
func (s *Store) Upsert(flag ldmodel.Flag) bool {
	s.mu.Lock()
	if existing, ok := s.entries[flag.Key]; ok && existing.flag.Version > flag.Version {
		s.mu.Unlock()
		return false
	}
	s.entries[flag.Key] = newEntry(flag.Clone())
	regs := s.listeners[flag.Key]
	s.fireLocked(flag.Key, flag.Deleted, regs)
	s.mu.Unlock()
	return true
}

// Delete synthesizes a tombstone at version and applies it via Upsert's same
// monotonicity rule.
func (s *Store) Delete(key string, version uint32) bool {
	return s.Upsert(ldmodel.Tombstone(key, version))
}

// Put atomically replaces the entire store contents. After the swap,
// IsInitialized becomes true and every listener registered on any key
// present in flags fires as "changed" (deleted=false) — flags absent from
// this Put but present before it do not fire, matching spec.md §4.1's "all
// keys of the new map fire the listener set."
func (s *Store) Put(flags []ldmodel.Flag) {
	newEntries := make(map[string]*Entry, len(flags))
	for _, f := range flags {
		newEntries[f.Key] = newEntry(f.Clone())
	}

	s.mu.Lock()
	s.entries = newEntries
	s.initialized = true
	for key := range newEntries {
		regs := s.listeners[key]
		s.fireLocked(key, false, regs)
	}
	s.mu.Unlock()
}

// fireLocked must be called with s.mu held for writing.
func (s *Store) fireLocked(key string, deleted bool, regs []listenerReg) {
	for _, r := range regs {
		r.fn(key, deleted, r.userData)
	}
}

// SnapshotAll returns an acquired Entry for every non-deleted flag currently
// in the store. Callers must Release each returned Entry. Iteration order
// is unspecified.
func (s *Store) SnapshotAll() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.flag.Deleted {
			continue
		}
		out = append(out, e.Acquire())
	}
	return out
}

// RegisterListener adds fn as a listener for key and returns a Subscription
// that removes exactly this registration. Every call adds a separate
// registration: func values cannot be compared in Go, so registering the same
// (key, fn) pair twice is not detected, and fn then fires once per
// registration on each change.
func (s *Store) RegisterListener(key string, fn ListenerFunc, userData interface{}) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	reg := listenerReg{id: s.nextID, fn: fn, userData: userData}
	s.listeners[key] = append(s.listeners[key], reg)
	return &Subscription{store: s, key: key, id: reg.id}
}

// Subscription identifies one registered listener so it can be removed.
// Removing a (key, fn) pair that was registered multiple times removes only
// the one identified by this handle, matching spec.md §3's "remove-one"
// semantics.
type Subscription struct {
	store *Store
	key   string
	id    uint64
}

// Unregister removes this listener registration. It is safe to call more
// than once; subsequent calls are no-ops.
func (sub *Subscription) Unregister() {
	if sub == nil || sub.store == nil {
		return
	}
	s := sub.store
	s.mu.Lock()
	defer s.mu.Unlock()
	regs := s.listeners[sub.key]
	for i, r := range regs {
		if r.id == sub.id {
			s.listeners[sub.key] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	sub.store = nil
}

// Serialize produces {key: flag-json, ...} for every non-deleted entry, for
// hand-off to the persistence hook (spec.md §4.1 / §6.3).
func (s *Store) Serialize() ldvalue.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := ldvalue.NewObjectBuilder()
	for key, e := range s.entries {
		if e.flag.Deleted {
			continue
		}
		b.Set(key, e.flag.ToValue())
	}
	return b.Build()
}

// Restore parses blob as the object Serialize produces and applies it via
// Put. On any parse failure, the store is left completely untouched and an
// error is returned (spec.md §7: "restore_flags returns failure; store is
// untouched").
func (s *Store) Restore(blob string) error {
	v, err := ldvalue.Parse([]byte(blob))
	if err != nil {
		return err
	}
	flags, err := ldmodel.ParseSet(v)
	if err != nil {
		return err
	}
	s.Put(flags)
	return nil
}

// AllFlagsValues returns a plain key→value snapshot suitable for the public
// all_flags() API, skipping deleted entries. Each returned Entry is
// released before this method returns.
func (s *Store) AllFlagsValues() ldvalue.Value {
	entries := s.SnapshotAll()
	b := ldvalue.NewObjectBuilder()
	for _, e := range entries {
		b.Set(e.Flag().Key, e.Flag().Value)
		e.Release()
	}
	return b.Build()
}
