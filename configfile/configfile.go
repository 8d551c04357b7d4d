// Package configfile loads a flagcore.Config from a YAML file, a thin
// convenience layer over flagcore.NewConfig grounded on the teacher's
// LoadConfigFile/ValidateConfig pattern (config/config_from_file.go), with
// YAML (gopkg.in/yaml.v2) in place of the teacher's gcfg/INI format.
package configfile

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/flagcore/flagcore-go"
)

// File is the on-disk shape this package understands. Durations are plain
// strings parsed with time.ParseDuration ("30s", "15m", ...).
type File struct {
	Credential string            `yaml:"credential"`
	Secondary  map[string]string `yaml:"secondary"`

	StreamURI string `yaml:"streamUri"`
	PollURI   string `yaml:"pollUri"`
	EventsURI string `yaml:"eventsUri"`

	Offline    bool `yaml:"offline"`
	Streaming  *bool `yaml:"streaming"`
	UseReport  bool `yaml:"useReport"`
	UseReasons bool `yaml:"useReasons"`

	PollInterval            string `yaml:"pollInterval"`
	BackgroundPollInterval  string `yaml:"backgroundPollInterval"`
	StreamInitialRetryDelay string `yaml:"streamInitialRetryDelay"`
	StreamReadTimeout       string `yaml:"streamReadTimeout"`
	RequestTimeout          string `yaml:"requestTimeout"`
	ConnectTimeout          string `yaml:"connectTimeout"`

	EventsCapacity        int      `yaml:"eventsCapacity"`
	EventsFlushInterval   string   `yaml:"eventsFlushInterval"`
	InlineUsersInEvents   bool     `yaml:"inlineUsersInEvents"`
	AllAttributesPrivate  bool     `yaml:"allAttributesPrivate"`
	PrivateAttributeNames []string `yaml:"privateAttributeNames"`

	DisableBackgroundUpdating bool `yaml:"disableBackgroundUpdating"`
	AutoAliasOptOut           bool `yaml:"autoAliasOptOut"`
}

// Load reads path as YAML and builds a flagcore.Config from it, applying
// flagcore.NewConfig's defaults and floors for anything the file leaves
// zero. Returns flagcore.ErrInvalidConfig (wrapped) if credential is empty.
func Load(path string) (flagcore.Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return flagcore.Config{}, fmt.Errorf("reading config file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a flagcore.Config from raw YAML bytes, the same rules Load
// applies to a file.
func Parse(data []byte) (flagcore.Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return flagcore.Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if f.Credential == "" {
		return flagcore.Config{}, fmt.Errorf("config: credential is required: %w", flagcore.ErrInvalidConfig)
	}

	var opts []flagcore.ConfigOption
	opts = append(opts, flagcore.WithURIs(f.StreamURI, f.PollURI, f.EventsURI))
	opts = append(opts, flagcore.WithOffline(f.Offline))
	if f.Streaming != nil {
		opts = append(opts, flagcore.WithStreaming(*f.Streaming))
	}
	opts = append(opts, flagcore.WithUseReport(f.UseReport))
	opts = append(opts, flagcore.WithUseReasons(f.UseReasons))
	opts = append(opts, flagcore.WithInlineUsersInEvents(f.InlineUsersInEvents))
	opts = append(opts, flagcore.WithAllAttributesPrivate(f.AllAttributesPrivate))
	opts = append(opts, flagcore.WithDisableBackgroundUpdating(f.DisableBackgroundUpdating))
	opts = append(opts, flagcore.WithAutoAliasOptOut(f.AutoAliasOptOut))
	if len(f.PrivateAttributeNames) > 0 {
		opts = append(opts, flagcore.WithPrivateAttributeNames(f.PrivateAttributeNames...))
	}
	if f.EventsCapacity > 0 {
		opts = append(opts, flagcore.WithEventsCapacity(f.EventsCapacity))
	}
	for name, cred := range f.Secondary {
		opts = append(opts, flagcore.WithSecondary(name, cred))
	}

	durationOpt, err := durationOptions(f)
	if err != nil {
		return flagcore.Config{}, err
	}
	opts = append(opts, durationOpt...)

	return flagcore.NewConfig(f.Credential, opts...), nil
}

func durationOptions(f File) ([]flagcore.ConfigOption, error) {
	var opts []flagcore.ConfigOption

	parse := func(field, label string) (time.Duration, bool, error) {
		if field == "" {
			return 0, false, nil
		}
		d, err := time.ParseDuration(field)
		if err != nil {
			return 0, false, fmt.Errorf("config: invalid %s %q: %w", label, field, err)
		}
		return d, true, nil
	}

	if d, ok, err := parse(f.PollInterval, "pollInterval"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithPollInterval(d))
	}
	if d, ok, err := parse(f.BackgroundPollInterval, "backgroundPollInterval"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithBackgroundPollInterval(d))
	}
	if d, ok, err := parse(f.EventsFlushInterval, "eventsFlushInterval"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithEventsFlushInterval(d))
	}
	if d, ok, err := parse(f.StreamInitialRetryDelay, "streamInitialRetryDelay"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithStreamInitialRetryDelay(d))
	}
	if d, ok, err := parse(f.StreamReadTimeout, "streamReadTimeout"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithStreamReadTimeout(d))
	}
	if d, ok, err := parse(f.RequestTimeout, "requestTimeout"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithRequestTimeout(d))
	}
	if d, ok, err := parse(f.ConnectTimeout, "connectTimeout"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, flagcore.WithConnectTimeout(d))
	}

	return opts, nil
}
