package reconcile

import (
	"net/netip"

	"github.com/evanofslack/cddns/internal/inventory"
	"github.com/evanofslack/cddns/internal/provider"
)

// Result is the classification of every tracked pair for one pass.
type Result struct {
	Matches    []provider.Record
	Mismatches []provider.Record
	Invalid    []inventory.Pair

	// Addresses resolved during the pass. The zero Addr means the family
	// was not needed.
	IPv4 netip.Addr
	IPv6 netip.Addr

	Snapshot *provider.Snapshot
}

// AddressFor returns the resolved address matching a record type.
func (r Result) AddressFor(recordType string) (netip.Addr, bool) {
	var addr netip.Addr
	switch recordType {
	case "A":
		addr = r.IPv4
	case "AAAA":
		addr = r.IPv6
	}
	return addr, addr.IsValid()
}

// Summary is the outcome of a commit.
type Summary struct {
	Matched    int
	Updated    int
	Mismatched int // left after update
	Pruned     int
	Invalid    int // left after prune
	Failures   []OperationResult
}

type OperationResult struct {
	Record provider.Record
	Op     string
	Error  string
}

// Ops selects the corrective steps run after a check.
type Ops struct {
	Update bool
	Prune  bool
}
