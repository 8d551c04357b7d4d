package flagcore

import (
	"fmt"
	"time"

	ct "github.com/launchdarkly/go-configtypes"
)

const (
	defaultStreamURI              = "https://stream.example.com"
	defaultPollURI                = "https://sdk.example.com"
	defaultEventsURI              = "https://events.example.com"
	defaultPollInterval           = 30 * time.Second
	defaultBackgroundPollInterval = 15 * time.Minute
	defaultStreamInitialRetry     = 1 * time.Second
	defaultStreamReadTimeout      = 5 * time.Minute
	defaultRequestTimeout         = 10 * time.Second
	defaultConnectTimeout         = 10 * time.Second
	defaultEventsCapacity         = 100
	defaultEventsFlushInterval    = 30 * time.Second

	minPollInterval           = 30 * time.Second
	minBackgroundPollInterval = 15 * time.Minute
)

// Config holds every option the core must respect (spec.md §3). Build one
// with NewConfig, which applies the documented floors and defaults; the
// zero Config is not valid on its own (Credential is required).
type Config struct {
	Credential string
	Secondary  map[string]string
	// secondaryOrder preserves the order WithSecondary options were applied
	// in, since Secondary itself is a map and Go deliberately randomizes
	// map iteration order. Registry.NewRegistry uses this to start
	// secondary environments in configuration order, primary first.
	secondaryOrder []string

	StreamURI  string
	PollURI    string
	EventsURI  string
	ProxyURI   string
	CACertPath string
	VerifyPeer bool

	Offline    bool
	Streaming  bool
	UseReport  bool
	UseReasons bool

	PollInterval           time.Duration
	BackgroundPollInterval time.Duration
	StreamInitialRetryDelay time.Duration
	StreamReadTimeout      time.Duration
	RequestTimeout         time.Duration
	ConnectTimeout         time.Duration

	EventsCapacity        int
	EventsFlushInterval   time.Duration
	InlineUsersInEvents   bool
	AllAttributesPrivate  bool
	PrivateAttributeNames []string

	DisableBackgroundUpdating bool
	AutoAliasOptOut           bool
}

// ConfigOption mutates a Config under construction.
type ConfigOption func(*Config)

// WithSecondary registers an additional environment credential under name.
func WithSecondary(name, credential string) ConfigOption {
	return func(c *Config) {
		if c.Secondary == nil {
			c.Secondary = map[string]string{}
		}
		if _, exists := c.Secondary[name]; !exists {
			c.secondaryOrder = append(c.secondaryOrder, name)
		}
		c.Secondary[name] = credential
	}
}

// SecondaryNames returns the names registered via WithSecondary, in the
// order they were first configured.
func (c Config) SecondaryNames() []string {
	out := make([]string, len(c.secondaryOrder))
	copy(out, c.secondaryOrder)
	return out
}

// WithURIs overrides the three service base URIs.
func WithURIs(streamURI, pollURI, eventsURI string) ConfigOption {
	return func(c *Config) {
		if streamURI != "" {
			c.StreamURI = streamURI
		}
		if pollURI != "" {
			c.PollURI = pollURI
		}
		if eventsURI != "" {
			c.EventsURI = eventsURI
		}
	}
}

// WithOffline sets offline mode.
func WithOffline(offline bool) ConfigOption { return func(c *Config) { c.Offline = offline } }

// WithStreaming enables or disables the streaming update pipeline in favor
// of polling.
func WithStreaming(streaming bool) ConfigOption { return func(c *Config) { c.Streaming = streaming } }

// WithUseReport switches user submission from base64url-in-path to REPORT.
func WithUseReport(useReport bool) ConfigOption { return func(c *Config) { c.UseReport = useReport } }

// WithUseReasons requests evaluation reasons on every flag.
func WithUseReasons(useReasons bool) ConfigOption { return func(c *Config) { c.UseReasons = useReasons } }

// WithPollInterval sets the foreground poll interval (floored to 30s).
func WithPollInterval(d time.Duration) ConfigOption { return func(c *Config) { c.PollInterval = d } }

// WithBackgroundPollInterval sets the background poll interval (floored to
// 15m).
func WithBackgroundPollInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.BackgroundPollInterval = d }
}

// WithEventsCapacity bounds the event processor's pending-events list.
func WithEventsCapacity(n int) ConfigOption { return func(c *Config) { c.EventsCapacity = n } }

// WithEventsFlushInterval sets how often the events worker flushes.
func WithEventsFlushInterval(d time.Duration) ConfigOption {
	return func(c *Config) { c.EventsFlushInterval = d }
}

// WithInlineUsersInEvents toggles inlining full user objects into events
// rather than just the user key.
func WithInlineUsersInEvents(inline bool) ConfigOption {
	return func(c *Config) { c.InlineUsersInEvents = inline }
}

// WithAllAttributesPrivate redacts every user attribute from events.
func WithAllAttributesPrivate(all bool) ConfigOption {
	return func(c *Config) { c.AllAttributesPrivate = all }
}

// WithPrivateAttributeNames sets the global (config-level) redaction list.
func WithPrivateAttributeNames(names ...string) ConfigOption {
	return func(c *Config) { c.PrivateAttributeNames = names }
}

// WithDisableBackgroundUpdating disables fetching while in background mode
// (sleep only, never fetch).
func WithDisableBackgroundUpdating(disable bool) ConfigOption {
	return func(c *Config) { c.DisableBackgroundUpdating = disable }
}

// WithAutoAliasOptOut disables the automatic alias event that otherwise
// accompanies an anonymous-to-known Identify transition.
func WithAutoAliasOptOut(optOut bool) ConfigOption {
	return func(c *Config) { c.AutoAliasOptOut = optOut }
}

// WithStreamInitialRetryDelay sets the base delay of the streaming reconnect
// backoff: the first reconnect after a connection that never reached the 60s
// sustained-connection threshold waits this long plus jitter, and each
// further consecutive failure doubles it, capped at 30s.
func WithStreamInitialRetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) { c.StreamInitialRetryDelay = d }
}

// WithStreamReadTimeout sets the read-timeout watchdog duration for the
// streaming connection.
func WithStreamReadTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.StreamReadTimeout = d }
}

// WithRequestTimeout sets the per-request timeout used for polling and
// event delivery.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.RequestTimeout = d }
}

// WithConnectTimeout sets the TCP connect timeout shared by all HTTP
// requests.
func WithConnectTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.ConnectTimeout = d }
}

// NewConfig builds a validated Config for credential, applying documented
// defaults and floors (spec.md §3). Options are applied in order; floors are
// applied last, after all options, so WithPollInterval(5*time.Second) still
// ends up floored to 30s rather than silently accepted.
func NewConfig(credential string, opts ...ConfigOption) Config {
	c := Config{
		Credential:             credential,
		StreamURI:              defaultStreamURI,
		PollURI:                defaultPollURI,
		EventsURI:              defaultEventsURI,
		VerifyPeer:             true,
		Streaming:              true,
		PollInterval:           defaultPollInterval,
		BackgroundPollInterval: defaultBackgroundPollInterval,
		StreamInitialRetryDelay: defaultStreamInitialRetry,
		StreamReadTimeout:      defaultStreamReadTimeout,
		RequestTimeout:         defaultRequestTimeout,
		ConnectTimeout:         defaultConnectTimeout,
		EventsCapacity:         defaultEventsCapacity,
		EventsFlushInterval:    defaultEventsFlushInterval,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.PollInterval < minPollInterval {
		c.PollInterval = minPollInterval
	}
	if c.BackgroundPollInterval < minBackgroundPollInterval {
		c.BackgroundPollInterval = minBackgroundPollInterval
	}
	if c.EventsCapacity <= 0 {
		c.EventsCapacity = defaultEventsCapacity
	}
	return c
}

// Validate reports configuration problems that NewConfig's floors can't fix
// on their own (an empty credential, a malformed service URI). Grounded on
// the teacher's ValidateConfig, which aggregates per-field problems into a
// single ct.ValidationResult rather than returning on the first error.
// NewRegistry logs whatever this returns instead of failing
// construction, since spec.md has no failable Config constructor.
func (c Config) Validate() error {
	var result ct.ValidationResult

	if c.Credential == "" {
		result.AddError(nil, errEmptyCredential)
	}
	requireAbsoluteURL(&result, "StreamURI", c.StreamURI)
	requireAbsoluteURL(&result, "PollURI", c.PollURI)
	requireAbsoluteURL(&result, "EventsURI", c.EventsURI)
	if c.ProxyURI != "" {
		requireAbsoluteURL(&result, "ProxyURI", c.ProxyURI)
	}
	for name, credential := range c.Secondary {
		if credential == "" {
			result.AddError(nil, fmt.Errorf("secondary environment %q has an empty credential", name))
		}
	}

	return result.GetError()
}

func requireAbsoluteURL(result *ct.ValidationResult, field, value string) {
	if value == "" {
		result.AddError(nil, fmt.Errorf("%s must not be empty", field))
		return
	}
	if _, err := ct.NewOptURLAbsoluteFromString(value); err != nil {
		result.AddError(nil, fmt.Errorf("%s: %w", field, err))
	}
}

var errEmptyCredential = fmt.Errorf("credential must not be empty")

// globalPrivateAttributeSet turns PrivateAttributeNames into a set for
// User.ToValue.
func (c Config) globalPrivateAttributeSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.PrivateAttributeNames))
	for _, n := range c.PrivateAttributeNames {
		out[n] = struct{}{}
	}
	return out
}
