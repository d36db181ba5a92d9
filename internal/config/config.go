// Package config loads runtime settings from defaults, an optional config
// file and LSORRERY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
)

const (
	// EnvPrefix is prepended to upper-cased keys, e.g. LSORRERY_LOG_LEVEL.
	EnvPrefix = "LSORRERY"
	// FileName is the config file base name, without extension.
	FileName = "ls-orrery"
)

// Config holds resolved application settings.
type Config struct {
	Horizons HorizonsConfig
	SBDB     SBDBConfig
	Window   WindowConfig

	Bodies      []ephem.TargetID
	LogLevel    string
	LogFile     string
	MetricsAddr string
	Extrapolate bool
	Frame       astro.Frame

	// File is the config file used, empty when none was found.
	File string
}

// HorizonsConfig configures the Horizons client.
type HorizonsConfig struct {
	URL        string
	Center     string
	RatePerSec float64
	CacheTTL   time.Duration
	Timeout    time.Duration
}

// SBDBConfig configures Small-Body Database lookups. Objects are
// designations whose elements are fetched at startup and added to the
// bodies being tracked.
type SBDBConfig struct {
	LookupURL string
	QueryURL  string
	Objects   []string
}

// WindowConfig describes the fetched time window. A zero Start means "now".
type WindowConfig struct {
	Start time.Time
	Span  time.Duration
	Step  time.Duration
}

// Resolve returns the ephem window, anchoring a zero Start at now.
func (w WindowConfig) Resolve(now time.Time) ephem.Window {
	start := w.Start
	if start.IsZero() {
		start = now.UTC().Truncate(time.Hour)
	}
	return ephem.WindowAround(start, w.Span, w.Step)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("horizons.url", ephem.HorizonsAPIURL)
	v.SetDefault("horizons.center", ephem.DefaultCenter)
	v.SetDefault("horizons.rate_per_sec", ephem.DefaultRatePerSec)
	v.SetDefault("horizons.cache_ttl", ephem.DefaultCacheTTL)
	v.SetDefault("horizons.timeout", ephem.DefaultTimeout)
	v.SetDefault("sbdb.lookup_url", ephem.SBDBLookupURL)
	v.SetDefault("sbdb.query_url", ephem.SBDBQueryURL)
	v.SetDefault("sbdb.objects", []string{})
	v.SetDefault("window.start", "")
	v.SetDefault("window.span", 7*24*time.Hour)
	v.SetDefault("window.step", 6*time.Hour)
	v.SetDefault("bodies", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("extrapolate", false)
	v.SetDefault("frame", "ecliptic")
}

// Load reads configuration. An explicit path must exist; otherwise the
// default search locations are tried and a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Config{
		Horizons: HorizonsConfig{
			URL:        v.GetString("horizons.url"),
			Center:     v.GetString("horizons.center"),
			RatePerSec: v.GetFloat64("horizons.rate_per_sec"),
			CacheTTL:   v.GetDuration("horizons.cache_ttl"),
			Timeout:    v.GetDuration("horizons.timeout"),
		},
		SBDB: SBDBConfig{
			LookupURL: v.GetString("sbdb.lookup_url"),
			QueryURL:  v.GetString("sbdb.query_url"),
			Objects:   splitList(v.GetStringSlice("sbdb.objects")),
		},
		Window: WindowConfig{
			Span: v.GetDuration("window.span"),
			Step: v.GetDuration("window.step"),
		},
		LogLevel:    v.GetString("log_level"),
		LogFile:     v.GetString("log_file"),
		MetricsAddr: v.GetString("metrics_addr"),
		Extrapolate: v.GetBool("extrapolate"),
		File:        v.ConfigFileUsed(),
	}

	if s := strings.TrimSpace(v.GetString("window.start")); s != "" {
		t, err := ParseTime(s)
		if err != nil {
			return Config{}, fmt.Errorf("window.start: %w", err)
		}
		cfg.Window.Start = t
	}
	if cfg.Window.Step <= 0 {
		return Config{}, fmt.Errorf("window.step must be positive, got %v", cfg.Window.Step)
	}
	if cfg.Window.Span < 0 {
		return Config{}, fmt.Errorf("window.span must not be negative, got %v", cfg.Window.Span)
	}

	frame, err := ParseFrame(v.GetString("frame"))
	if err != nil {
		return Config{}, err
	}
	cfg.Frame = frame

	bodies, err := ParseBodies(v.GetStringSlice("bodies"))
	if err != nil {
		return Config{}, err
	}
	cfg.Bodies = bodies

	return cfg, nil
}

// splitList flattens comma separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseBodies resolves body names, codes or NAIF IDs. Entries may also be
// comma separated. An empty list yields the default planets.
func ParseBodies(names []string) ([]ephem.TargetID, error) {
	var ids []ephem.TargetID
	seen := make(map[ephem.TargetID]bool)
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, ok := ephem.ResolveTarget(part)
			if !ok {
				return nil, fmt.Errorf("unknown body %q", part)
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return append([]ephem.TargetID(nil), ephem.DefaultTargets...), nil
	}
	return ids, nil
}

// ParseFrame accepts "ecliptic" or "equatorial".
func ParseFrame(s string) (astro.Frame, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ecliptic", "ecl":
		return astro.FrameEcliptic, nil
	case "equatorial", "eq", "icrf":
		return astro.FrameEquatorial, nil
	}
	return 0, fmt.Errorf("unknown frame %q", s)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses an RFC 3339 timestamp or a plain UTC date.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
