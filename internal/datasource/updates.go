// Package datasource implements the update pipeline (spec.md §4.2, L9) and
// the two worker loops that feed it: polling (L10) and streaming (L11). Both
// workers funnel every update through the same Updater so a "put" received
// via SSE and a "put" received via a poll response are applied identically.
package datasource

import (
	"fmt"
	"sync"

	"github.com/flagcore/flagcore-go/internal/ldlog"
	"github.com/flagcore/flagcore-go/internal/ldmodel"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
	"github.com/flagcore/flagcore-go/internal/store"
)

// Updater applies put/patch/delete bodies to a Store and notifies the
// client orchestrator the first time initialization succeeds. ApplyPut is
// called concurrently from both the polling and streaming workers (a mode
// transition can leave the previous worker's call in flight while the newly
// active one starts), so the one-time init notification is guarded by
// sync.Once rather than a plain bool.
type Updater struct {
	store         *store.Store
	loggers       ldlog.Loggers
	onInitialized func()
	notifiedInit  sync.Once
}

// NewUpdater creates an Updater bound to s. onInitialized is called exactly
// once, the first time a put successfully applies (it may be nil).
func NewUpdater(s *store.Store, loggers ldlog.Loggers, onInitialized func()) *Updater {
	return &Updater{store: s, loggers: loggers, onInitialized: onInitialized}
}

// ApplyPut parses body as an object of {flag-key: flag-json}, pre-validates
// every child, and only then calls Store.Put — an all-or-nothing apply, per
// spec.md §4.2 ("if any child fails to parse, abort the whole put").
func (u *Updater) ApplyPut(body []byte) error {
	v, err := ldvalue.Parse(body)
	if err != nil {
		return fmt.Errorf("datasource: put: %w", err)
	}
	flags, err := ldmodel.ParseSet(v)
	if err != nil {
		return fmt.Errorf("datasource: put: %w", err)
	}
	u.store.Put(flags)
	u.markInitialized()
	return nil
}

// ApplyPatch parses body as a single flag record and upserts it.
func (u *Updater) ApplyPatch(body []byte) error {
	v, err := ldvalue.Parse(body)
	if err != nil {
		return fmt.Errorf("datasource: patch: %w", err)
	}
	flag, err := ldmodel.Parse("", v)
	if err != nil {
		return fmt.Errorf("datasource: patch: %w", err)
	}
	u.store.Upsert(flag)
	return nil
}

// ApplyDelete parses body as {key, version} and deletes the named flag.
func (u *Updater) ApplyDelete(body []byte) error {
	v, err := ldvalue.Parse(body)
	if err != nil {
		return fmt.Errorf("datasource: delete: %w", err)
	}
	if v.Type() != ldvalue.ObjectType {
		return fmt.Errorf("datasource: delete: expected object, got %s", v.Type())
	}
	keyVal, ok := v.GetByKey("key")
	if !ok || keyVal.Type() != ldvalue.StringType || keyVal.StringValue() == "" {
		return fmt.Errorf("datasource: delete: missing or empty key")
	}
	versionVal, _ := v.GetByKey("version")
	u.store.Delete(keyVal.StringValue(), uint32(versionVal.IntValue()))
	return nil
}

func (u *Updater) markInitialized() {
	u.notifiedInit.Do(func() {
		if u.onInitialized != nil {
			u.onInitialized()
		}
	})
}

// Store returns the underlying store. The ping handler does not use it; it
// applies its re-fetched bundle through ApplyPut.
func (u *Updater) Store() *store.Store {
	return u.store
}
