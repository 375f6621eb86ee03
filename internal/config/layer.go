package config

// Layer is one source of configuration. A nil field is absent from the layer
// and falls through to the layer below it during a merge.
type Layer struct {
	Verify    VerifyLayer    `toml:"verify"`
	List      ListLayer      `toml:"list"`
	Inventory InventoryLayer `toml:"inventory"`
	Commit    CommitLayer    `toml:"commit"`
	Watch     WatchLayer     `toml:"watch"`
	Log       LogLayer       `toml:"log"`
	State     StateLayer     `toml:"state"`
	PublicIP  PublicIPLayer  `toml:"publicip"`
}

type VerifyLayer struct {
	Token *string `toml:"token"`
}

type ListLayer struct {
	IncludeZones   *[]string `toml:"include_zones"`
	IgnoreZones    *[]string `toml:"ignore_zones"`
	IncludeRecords *[]string `toml:"include_records"`
	IgnoreRecords  *[]string `toml:"ignore_records"`
}

type InventoryLayer struct {
	Path *string `toml:"path"`
}

type CommitLayer struct {
	Force *bool `toml:"force"`
}

type WatchLayer struct {
	// Interval is in milliseconds.
	Interval       *uint64 `toml:"interval"`
	MetricsAddress *string `toml:"metrics_address"`
}

type LogLayer struct {
	Level *string `toml:"level"`
	Env   *string `toml:"env"`
}

type StateLayer struct {
	Path *string `toml:"path"`
}

type PublicIPLayer struct {
	DNSv4 *string `toml:"dns_v4"`
	DNSv6 *string `toml:"dns_v6"`
	STUN  *string `toml:"stun"`
}

// Merge returns a layer where every field present in greater replaces the
// same field of l. Lists are replaced as a whole.
func (l Layer) Merge(greater Layer) Layer {
	return Layer{
		Verify: VerifyLayer{
			Token: pick(l.Verify.Token, greater.Verify.Token),
		},
		List: ListLayer{
			IncludeZones:   pick(l.List.IncludeZones, greater.List.IncludeZones),
			IgnoreZones:    pick(l.List.IgnoreZones, greater.List.IgnoreZones),
			IncludeRecords: pick(l.List.IncludeRecords, greater.List.IncludeRecords),
			IgnoreRecords:  pick(l.List.IgnoreRecords, greater.List.IgnoreRecords),
		},
		Inventory: InventoryLayer{
			Path: pick(l.Inventory.Path, greater.Inventory.Path),
		},
		Commit: CommitLayer{
			Force: pick(l.Commit.Force, greater.Commit.Force),
		},
		Watch: WatchLayer{
			Interval:       pick(l.Watch.Interval, greater.Watch.Interval),
			MetricsAddress: pick(l.Watch.MetricsAddress, greater.Watch.MetricsAddress),
		},
		Log: LogLayer{
			Level: pick(l.Log.Level, greater.Log.Level),
			Env:   pick(l.Log.Env, greater.Log.Env),
		},
		State: StateLayer{
			Path: pick(l.State.Path, greater.State.Path),
		},
		PublicIP: PublicIPLayer{
			DNSv4: pick(l.PublicIP.DNSv4, greater.PublicIP.DNSv4),
			DNSv6: pick(l.PublicIP.DNSv6, greater.PublicIP.DNSv6),
			STUN:  pick(l.PublicIP.STUN, greater.PublicIP.STUN),
		},
	}
}

func pick[T any](lesser, greater *T) *T {
	if greater != nil {
		return greater
	}
	return lesser
}

// Ptr returns a pointer to v, for building layers in code.
func Ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
