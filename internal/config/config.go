package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	defaultInventoryPath = "inventory.yaml"
	defaultWatchInterval = uint64(30000)
	defaultLogLevel      = "info"
	defaultLogEnv        = "dev"
	defaultDNSv4         = "208.67.222.222:53"
	defaultDNSv6         = "[2620:119:35::35]:53"
	defaultSTUN          = "stun.l.google.com:19302"

	// DefaultPath is the config file read when none is given.
	DefaultPath = "cddns.toml"
)

// Config is the fully merged configuration for one invocation.
type Config struct {
	Token          string
	IncludeZones   []string
	IgnoreZones    []string
	IncludeRecords []string
	IgnoreRecords  []string
	InventoryPath  string
	Force          bool
	WatchInterval  time.Duration
	MetricsAddress string
	StatePath      string
	Log            Log
	PublicIP       PublicIP
}

type Log struct {
	Level string
	Env   string
}

type PublicIP struct {
	DNSv4 string
	DNSv6 string
	STUN  string
}

// Defaults is the bottom layer of every resolution.
func Defaults() Layer {
	return Layer{
		List: ListLayer{
			IncludeZones:   Ptr([]string{}),
			IgnoreZones:    Ptr([]string{}),
			IncludeRecords: Ptr([]string{}),
			IgnoreRecords:  Ptr([]string{}),
		},
		Inventory: InventoryLayer{Path: Ptr(defaultInventoryPath)},
		Commit:    CommitLayer{Force: Ptr(false)},
		Watch:     WatchLayer{Interval: Ptr(defaultWatchInterval)},
		Log:       LogLayer{Level: Ptr(defaultLogLevel), Env: Ptr(defaultLogEnv)},
		PublicIP: PublicIPLayer{
			DNSv4: Ptr(defaultDNSv4),
			DNSv6: Ptr(defaultDNSv6),
			STUN:  Ptr(defaultSTUN),
		},
	}
}

// Resolve merges defaults < file < env < cli into a Config.
func Resolve(file, env, cli Layer) Config {
	return Build(Defaults().Merge(file).Merge(env).Merge(cli))
}

// Build materializes a merged layer.
func Build(l Layer) Config {
	return Config{
		Token:          deref(l.Verify.Token),
		IncludeZones:   deref(l.List.IncludeZones),
		IgnoreZones:    deref(l.List.IgnoreZones),
		IncludeRecords: deref(l.List.IncludeRecords),
		IgnoreRecords:  deref(l.List.IgnoreRecords),
		InventoryPath:  deref(l.Inventory.Path),
		Force:          deref(l.Commit.Force),
		WatchInterval:  time.Duration(deref(l.Watch.Interval)) * time.Millisecond,
		MetricsAddress: deref(l.Watch.MetricsAddress),
		StatePath:      deref(l.State.Path),
		Log: Log{
			Level: deref(l.Log.Level),
			Env:   deref(l.Log.Env),
		},
		PublicIP: PublicIP{
			DNSv4: deref(l.PublicIP.DNSv4),
			DNSv6: deref(l.PublicIP.DNSv6),
			STUN:  deref(l.PublicIP.STUN),
		},
	}
}

// RequireToken returns the API token or ErrAuth.
func (c Config) RequireToken() (string, error) {
	if c.Token == "" {
		return "", ErrAuth
	}
	return c.Token, nil
}

// ZoneFilter compiles the zone include and ignore lists.
func (c Config) ZoneFilter() (Filter, error) {
	return newFilter("list.include_zones", c.IncludeZones, "list.ignore_zones", c.IgnoreZones)
}

// RecordFilter compiles the record include and ignore lists.
func (c Config) RecordFilter() (Filter, error) {
	return newFilter("list.include_records", c.IncludeRecords, "list.ignore_records", c.IgnoreRecords)
}

func (c Config) String() string {
	var b strings.Builder
	token := "None"
	if c.Token != "" {
		token = mask(c.Token)
	}
	fmt.Fprintf(&b, "Token: %s\n", token)
	fmt.Fprintf(&b, "Include zones: %s\n", list(c.IncludeZones))
	fmt.Fprintf(&b, "Ignore zones: %s\n", list(c.IgnoreZones))
	fmt.Fprintf(&b, "Include records: %s\n", list(c.IncludeRecords))
	fmt.Fprintf(&b, "Ignore records: %s\n", list(c.IgnoreRecords))
	fmt.Fprintf(&b, "Inventory path: %s\n", c.InventoryPath)
	fmt.Fprintf(&b, "Commit without user prompt (force): %t\n", c.Force)
	fmt.Fprintf(&b, "Watch interval: %dms\n", c.WatchInterval.Milliseconds())
	fmt.Fprintf(&b, "Metrics address: %s\n", orNone(c.MetricsAddress))
	fmt.Fprintf(&b, "State path: %s\n", orNone(c.StatePath))
	fmt.Fprintf(&b, "Log: level=%s env=%s\n", c.Log.Level, c.Log.Env)
	fmt.Fprintf(&b, "Public IP: dns_v4=%s dns_v6=%s stun=%s", c.PublicIP.DNSv4, c.PublicIP.DNSv6, orNone(c.PublicIP.STUN))
	return b.String()
}

func mask(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func list(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	return "[\"" + strings.Join(values, "\", \"") + "\"]"
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// Filter keeps the names that match every include pattern and no ignore
// pattern.
type Filter struct {
	include []*regexp.Regexp
	ignore  []*regexp.Regexp
}

func newFilter(includeKey string, include []string, ignoreKey string, ignore []string) (Filter, error) {
	var f Filter
	for _, p := range include {
		re, err := regexp.Compile(p)
		if err != nil {
			return Filter{}, newError(includeKey, fmt.Errorf("compile %q: %w", p, err))
		}
		f.include = append(f.include, re)
	}
	for _, p := range ignore {
		re, err := regexp.Compile(p)
		if err != nil {
			return Filter{}, newError(ignoreKey, fmt.Errorf("compile %q: %w", p, err))
		}
		f.ignore = append(f.ignore, re)
	}
	return f, nil
}

// Keep reports whether an entity identified by any of ids passes the filter.
func (f Filter) Keep(ids ...string) bool {
	for _, re := range f.include {
		if !matchAny(re, ids) {
			return false
		}
	}
	for _, re := range f.ignore {
		if matchAny(re, ids) {
			return false
		}
	}
	return true
}

func matchAny(re *regexp.Regexp, ids []string) bool {
	for _, id := range ids {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}
