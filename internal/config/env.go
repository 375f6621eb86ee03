package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "CDDNS_"

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadEnv loads an optional dotenv file into the process environment without
// overriding variables that are already set, then reads the CDDNS_* layer.
func LoadEnv(dotenv string) (Layer, error) {
	if dotenv != "" {
		err := godotenv.Load(dotenv)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Layer{}, newError(dotenv, err)
		}
		if err == nil {
			slog.Debug("Loaded dotenv file", "path", dotenv)
		}
	}
	return ParseEnv(os.LookupEnv)
}

// ParseEnv builds the environment layer from lookup. Empty variables are
// treated as unset.
func ParseEnv(lookup LookupFunc) (Layer, error) {
	var layer Layer
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("VERIFY_TOKEN"); ok {
		layer.Verify.Token = Ptr(v)
	}
	if v, ok := get("LIST_INCLUDE_ZONES"); ok {
		layer.List.IncludeZones = Ptr(splitList(v))
	}
	if v, ok := get("LIST_IGNORE_ZONES"); ok {
		layer.List.IgnoreZones = Ptr(splitList(v))
	}
	if v, ok := get("LIST_INCLUDE_RECORDS"); ok {
		layer.List.IncludeRecords = Ptr(splitList(v))
	}
	if v, ok := get("LIST_IGNORE_RECORDS"); ok {
		layer.List.IgnoreRecords = Ptr(splitList(v))
	}
	if v, ok := get("INVENTORY_PATH"); ok {
		layer.Inventory.Path = Ptr(v)
	}
	if v, ok := get("COMMIT_FORCE"); ok {
		force, perr := strconv.ParseBool(v)
		if perr != nil {
			return Layer{}, envError("COMMIT_FORCE", perr)
		}
		layer.Commit.Force = Ptr(force)
	}
	if v, ok := get("WATCH_INTERVAL"); ok {
		interval, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return Layer{}, envError("WATCH_INTERVAL", perr)
		}
		layer.Watch.Interval = Ptr(interval)
	}
	if v, ok := get("WATCH_METRICS_ADDRESS"); ok {
		layer.Watch.MetricsAddress = Ptr(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		layer.Log.Level = Ptr(v)
	}
	if v, ok := get("LOG_ENV"); ok {
		layer.Log.Env = Ptr(v)
	}
	if v, ok := get("STATE_PATH"); ok {
		layer.State.Path = Ptr(v)
	}
	if v, ok := get("PUBLICIP_DNS_V4"); ok {
		layer.PublicIP.DNSv4 = Ptr(v)
	}
	if v, ok := get("PUBLICIP_DNS_V6"); ok {
		layer.PublicIP.DNSv6 = Ptr(v)
	}
	if v, ok := get("PUBLICIP_STUN"); ok {
		layer.PublicIP.STUN = Ptr(v)
	}
	return layer, nil
}

func envError(name string, err error) error {
	return newError(fmt.Sprintf("env %s%s", envPrefix, name), err)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
