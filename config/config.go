// Package config loads the icmsnap YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/icmsnap/navigator"
	"github.com/hazyhaar/icmsnap/source"
)

// Layouts understood by SourceConfig.Layout.
const (
	LayoutMatrix   = "matrix"
	LayoutHeadings = "headings"
)

// Config is the top-level configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Sources  []SourceConfig `yaml:"sources"`
	Priority []string       `yaml:"priority"`
	Output   OutputConfig   `yaml:"output"`
	Store    StoreConfig    `yaml:"store"`
	API      APIConfig      `yaml:"api"`
}

// BrowserConfig controls Chrome and the navigator's waits. A settle key
// left out of the file gets the default; an explicit 0s disables that
// pause.
type BrowserConfig struct {
	Remote           string         `yaml:"remote"`
	Headful          bool           `yaml:"headful"`
	ResourceBlocking []string       `yaml:"resource_blocking"`
	NavTimeout       time.Duration  `yaml:"nav_timeout"`
	LoadSettle       *time.Duration `yaml:"load_settle"`
	ScrollSettle     *time.Duration `yaml:"scroll_settle"`
	ClickSettle      *time.Duration `yaml:"click_settle"`
}

// SourceConfig defines one rate source.
type SourceConfig struct {
	Name          string  `yaml:"name"`
	URL           string  `yaml:"url"`
	Layout        string  `yaml:"layout"`         // matrix | headings
	HeadingTag    string  `yaml:"heading_tag"`    // headings only
	HeadingMarker *string `yaml:"heading_marker"` // headings only; "" accepts every heading
	MaxPages      int     `yaml:"max_pages"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads, defaults and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, then defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = navigator.DefaultWaits.Navigate
	}
	defaultDuration(&c.Browser.LoadSettle, navigator.DefaultWaits.Load)
	defaultDuration(&c.Browser.ScrollSettle, navigator.DefaultWaits.Scroll)
	defaultDuration(&c.Browser.ClickSettle, navigator.DefaultWaits.Click)
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Layout == "" {
			s.Layout = LayoutMatrix
		}
		if s.Layout == LayoutHeadings {
			if s.HeadingTag == "" {
				s.HeadingTag = "h2"
			}
			if s.HeadingMarker == nil {
				m := source.DefaultMarker
				s.HeadingMarker = &m
			}
		}
	}
	if len(c.Priority) == 0 {
		for _, s := range c.Sources {
			c.Priority = append(c.Priority, s.Name)
		}
	}
	if c.Output.Path == "" {
		c.Output.Path = "aliquotas_icms.json"
	}
	if c.Store.Path == "" {
		c.Store.Path = "icms.db"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":5004"
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("no sources"))
	}
	settles := []struct {
		key string
		d   *time.Duration
	}{
		{"load_settle", c.Browser.LoadSettle},
		{"scroll_settle", c.Browser.ScrollSettle},
		{"click_settle", c.Browser.ClickSettle},
	}
	for _, st := range settles {
		if st.d != nil && *st.d < 0 {
			errs = append(errs, fmt.Errorf("browser: %s must be >= 0", st.key))
		}
	}
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("sources[%d]: name required", i))
		case names[s.Name]:
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: url required", i))
		}
		if s.Layout != LayoutMatrix && s.Layout != LayoutHeadings {
			errs = append(errs, fmt.Errorf("sources[%d]: unknown layout %q", i, s.Layout))
		}
		if s.MaxPages < 0 {
			errs = append(errs, fmt.Errorf("sources[%d]: max_pages must be >= 0", i))
		}
	}
	for _, p := range c.Priority {
		if !names[p] {
			errs = append(errs, fmt.Errorf("priority: unknown source %q", p))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Adapters builds one source adapter per configured source, in file order.
func (c *Config) Adapters() []source.Adapter {
	out := make([]source.Adapter, 0, len(c.Sources))
	for _, s := range c.Sources {
		switch s.Layout {
		case LayoutHeadings:
			out = append(out, &source.HeadingAdapter{
				SourceName: s.Name,
				Address:    s.URL,
				HeadingTag: s.HeadingTag,
				Marker:     deref(s.HeadingMarker),
				MaxPages:   s.MaxPages,
			})
		default:
			out = append(out, &source.MatrixAdapter{
				SourceName: s.Name,
				Address:    s.URL,
				MaxPages:   s.MaxPages,
			})
		}
	}
	return out
}

// Navigator returns the browser session configuration.
func (c *Config) Navigator(logger *slog.Logger) navigator.Config {
	return navigator.Config{
		RemoteURL:        c.Browser.Remote,
		Headful:          c.Browser.Headful,
		ResourceBlocking: c.Browser.ResourceBlocking,
		Waits: navigator.Waits{
			Navigate: c.Browser.NavTimeout,
			Load:     deref(c.Browser.LoadSettle),
			Scroll:   deref(c.Browser.ScrollSettle),
			Click:    deref(c.Browser.ClickSettle),
		},
		Logger: logger,
	}
}

func defaultDuration(p **time.Duration, d time.Duration) {
	if *p == nil {
		*p = &d
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
