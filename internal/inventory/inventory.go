package inventory

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the inventory file does not exist.
	ErrNotFound = errors.New("inventory was not found")
	// ErrMalformed is returned when the inventory file is not a mapping of
	// zones to record lists.
	ErrMalformed = errors.New("inventory is malformed")
	// ErrFingerprintNotFound is returned by annotation when a tracked zone or
	// record is missing from the provider snapshot.
	ErrFingerprintNotFound = errors.New("fingerprint not found")
)

// Inventory is the set of tracked (zone, record) pairs. Zones and records are
// fingerprints: either a provider ID or a name.
type Inventory struct {
	zones map[string]map[string]struct{}
}

// Zone is one zone of the inventory with its records in sorted order.
type Zone struct {
	Name    string
	Records []string
}

// Pair is a single tracked record.
type Pair struct {
	Zone   string
	Record string
}

func New() *Inventory {
	return &Inventory{zones: make(map[string]map[string]struct{})}
}

func (inv *Inventory) Contains(zone, record string) bool {
	_, ok := inv.zones[zone][record]
	return ok
}

// Insert adds a pair and reports whether it was not already present.
func (inv *Inventory) Insert(zone, record string) bool {
	records, ok := inv.zones[zone]
	if !ok {
		records = make(map[string]struct{})
		inv.zones[zone] = records
	}
	if _, ok := records[record]; ok {
		return false
	}
	records[record] = struct{}{}
	return true
}

// Remove deletes a pair and reports whether it was present. A zone left with
// no records is removed too.
func (inv *Inventory) Remove(zone, record string) bool {
	records, ok := inv.zones[zone]
	if !ok {
		return false
	}
	if _, ok := records[record]; !ok {
		return false
	}
	delete(records, record)
	if len(records) == 0 {
		delete(inv.zones, zone)
	}
	return true
}

func (inv *Inventory) IsEmpty() bool {
	return len(inv.zones) == 0
}

// Len returns the number of tracked pairs.
func (inv *Inventory) Len() int {
	n := 0
	for _, records := range inv.zones {
		n += len(records)
	}
	return n
}

// Zones returns every zone sorted by name, each with sorted records.
func (inv *Inventory) Zones() []Zone {
	names := make([]string, 0, len(inv.zones))
	for name := range inv.zones {
		names = append(names, name)
	}
	sort.Strings(names)

	zones := make([]Zone, 0, len(names))
	for _, name := range names {
		records := make([]string, 0, len(inv.zones[name]))
		for r := range inv.zones[name] {
			records = append(records, r)
		}
		sort.Strings(records)
		zones = append(zones, Zone{Name: name, Records: records})
	}
	return zones
}

// Pairs flattens Zones in the same order.
func (inv *Inventory) Pairs() []Pair {
	var pairs []Pair
	for _, z := range inv.Zones() {
		for _, r := range z.Records {
			pairs = append(pairs, Pair{Zone: z.Name, Record: r})
		}
	}
	return pairs
}

func (inv *Inventory) String() string {
	var b strings.Builder
	for i, z := range inv.Zones() {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(z.Name)
		b.WriteString(":")
		for _, r := range z.Records {
			b.WriteString("\n  - ")
			b.WriteString(r)
		}
	}
	return b.String()
}
