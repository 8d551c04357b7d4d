package flagcore

import (
	"fmt"

	"github.com/flagcore/flagcore-go/internal/store"
)

// AllFlags returns a snapshot of every currently known flag's value, keyed
// by flag key, as a generic Go value (spec.md §4.8).
func (c *Client) AllFlags() interface{} {
	return c.store.AllFlagsValues().ToInterface()
}

// SaveFlags serializes the current flag cache to an opaque string suitable
// for a PersistenceWriter blob (spec.md §6.3).
func (c *Client) SaveFlags() (string, error) {
	v := c.store.Serialize()
	data, err := v.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RestoreFlags replaces the flag cache with the contents of blob, a string
// previously produced by SaveFlags or a PersistenceReader. On any parse
// failure the store is left untouched and an error is returned.
func (c *Client) RestoreFlags(blob string) error {
	if err := c.store.Restore(blob); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	return nil
}

// FeatureFlagListener is invoked when key's value changes. deleted reports
// whether the flag's new state is a tombstone (spec.md §4.1).
type FeatureFlagListener func(key string, deleted bool, userData interface{})

// FlagListenerSubscription identifies one registered listener so it can be
// removed via Unregister.
type FlagListenerSubscription struct {
	sub *store.Subscription
}

// Unregister removes this listener registration. Safe to call more than
// once.
func (s *FlagListenerSubscription) Unregister() {
	if s == nil {
		return
	}
	s.sub.Unregister()
}

// RegisterFeatureFlagListener registers fn to be called when key is updated:
// by a patch or delete the store applies for key, or by any full put
// (including RestoreFlags) whose flag set contains key. A put fires for every
// key it contains, whether or not that key's value or version changed.
func (c *Client) RegisterFeatureFlagListener(key string, fn FeatureFlagListener, userData interface{}) *FlagListenerSubscription {
	sub := c.store.RegisterListener(key, store.ListenerFunc(fn), userData)
	return &FlagListenerSubscription{sub: sub}
}
