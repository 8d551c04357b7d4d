package flagcore

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flagcore/flagcore-go/internal/ldlog"
)

const primaryEnvironmentName = "primary"

// Registry owns one primary Client plus zero or more secondary Clients, all
// sharing a single User (spec.md §4.6, L14). Every fan-out operation —
// Identify, SetOffline/SetOnline/SetBackground, Close — is applied to every
// environment in the registry, in the order the environments were
// configured, primary first.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	clients  map[string]*Client
	config   Config
	persist  PersistenceHooks
	loggers  ldlog.Loggers

	// identifyGroup collapses concurrent Identify calls for the same user
	// key into one execution, so two goroutines racing to identify the
	// same user don't each independently reset every client and double
	// up identify/alias events. Grounded on the same pattern the vendored
	// go-server-sdk.v5 uses in persistent_data_store_wrapper.go.
	identifyGroup singleflight.Group
}

// NewRegistry constructs and starts a Client for the primary credential plus
// one for every name/credential pair registered via WithSecondary, all
// sharing user and persist.
func NewRegistry(config Config, user User, persist PersistenceHooks, loggers ldlog.Loggers) *Registry {
	if err := config.Validate(); err != nil {
		loggers.Warnf("invalid configuration: %s", err)
	}

	r := &Registry{
		clients: map[string]*Client{},
		config:  config,
		persist: persist,
		loggers: loggers,
	}

	r.order = append(r.order, primaryEnvironmentName)
	r.clients[primaryEnvironmentName] = newClient(primaryEnvironmentName, config.Credential, config, user, persist, loggers)

	for _, name := range config.SecondaryNames() {
		r.order = append(r.order, name)
		r.clients[name] = newClient(name, config.Secondary[name], config, user, persist, loggers)
	}

	return r
}

// Default returns the primary environment's Client, the one most callers
// want for variations and tracking.
func (r *Registry) Default() *Client {
	return r.Get(primaryEnvironmentName)
}

// Get returns the Client registered under name, or nil if there is none.
func (r *Registry) Get(name string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[name]
}

// All returns every Client in the registry, primary first, in configuration
// order.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.clients[name])
	}
	return out
}

// Identify replaces the shared user across every environment's Client
// (spec.md §4.6): each client resets to initializing and its data sources
// restart against the new user. If the previous user was anonymous and
// newUser is not, and AutoAliasOptOut is not set, an alias event
// (previous -> current) is additionally enqueued on each client.
func (r *Registry) Identify(newUser User) {
	_, _, _ = r.identifyGroup.Do(newUser.Key, func() (interface{}, error) {
		for _, c := range r.All() {
			previous := c.identifyLocked(newUser)
			if previous.Anonymous && !newUser.Anonymous && !r.config.AutoAliasOptOut {
				c.Alias(newUser, previous)
			}
		}
		return nil, nil
	})
}

// SetOffline puts every environment's Client into offline mode.
func (r *Registry) SetOffline() {
	for _, c := range r.All() {
		c.SetOffline()
	}
}

// SetOnline takes every environment's Client out of offline mode.
func (r *Registry) SetOnline() {
	for _, c := range r.All() {
		c.SetOnline()
	}
}

// SetBackground flips background mode on every environment's Client.
func (r *Registry) SetBackground(background bool) {
	for _, c := range r.All() {
		c.SetBackground(background)
	}
}

// Flush requests an out-of-band events flush on every environment's Client.
func (r *Registry) Flush() {
	for _, c := range r.All() {
		c.Flush()
	}
}

// AwaitAllInitialized blocks until every environment's Client reports
// initialized or failed, or timeout elapses (applied independently to each
// client, not as a shared budget). It returns true only if every client
// ended up initialized.
func (r *Registry) AwaitAllInitialized(timeout time.Duration) bool {
	all := true
	for _, c := range r.All() {
		if !c.AwaitInitialized(timeout) {
			all = false
		}
	}
	return all
}

// Close closes every environment's Client and returns the first error
// encountered, if any, after attempting to close all of them.
func (r *Registry) Close() error {
	var firstErr error
	for _, c := range r.All() {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing client: %w", err)
		}
	}
	return firstErr
}

var (
	defaultRegistry   *Registry
	defaultRegistryMu sync.Mutex
)

// Init constructs the process-wide default Registry, replacing any previous
// one (the previous one is left running; callers that want a clean
// replacement should Close() it themselves first). This is a thin
// convenience over NewRegistry/Registry for callers who only ever need one
// registry per process.
func Init(config Config, user User, persist PersistenceHooks, loggers ldlog.Loggers) *Registry {
	defaultRegistryMu.Lock()
	defer defaultRegistryMu.Unlock()
	defaultRegistry = NewRegistry(config, user, persist, loggers)
	return defaultRegistry
}

// Get returns the process-wide default Registry's Client for name, or nil if
// Init hasn't been called or name is unknown.
func Get(name string) *Client {
	defaultRegistryMu.Lock()
	r := defaultRegistry
	defaultRegistryMu.Unlock()
	if r == nil {
		return nil
	}
	return r.Get(name)
}

// DefaultClient returns the process-wide default Registry's primary Client,
// or nil if Init hasn't been called.
func DefaultClient() *Client {
	defaultRegistryMu.Lock()
	r := defaultRegistry
	defaultRegistryMu.Unlock()
	if r == nil {
		return nil
	}
	return r.Default()
}
