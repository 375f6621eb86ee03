package provider

import (
	"context"
	"log/slog"
)

// Snapshot is the provider state fetched for one pass. It is not modified
// after Fetch returns.
type Snapshot struct {
	Zones   []Zone
	Records []Record
}

// Fetch lists zones, then the records of those zones.
func Fetch(ctx context.Context, p Provider, token string) (*Snapshot, error) {
	zones, err := p.Zones(ctx, token)
	if err != nil {
		return nil, err
	}
	records, err := p.Records(ctx, token, zones)
	if err != nil {
		return nil, err
	}
	slog.Debug("Fetched provider snapshot", "zones", len(zones), "records", len(records))
	return &Snapshot{Zones: zones, Records: records}, nil
}

// FindZone returns the zone identified by fp.
func (s *Snapshot) FindZone(fp string) (Zone, bool) {
	for _, z := range s.Zones {
		if z.Matches(fp) {
			return z, true
		}
	}
	return Zone{}, false
}

// FindRecord returns the record identified by fp within the given zone.
func (s *Snapshot) FindRecord(zoneID, fp string) (Record, bool) {
	for _, r := range s.Records {
		if r.ZoneID == zoneID && r.Matches(fp) {
			return r, true
		}
	}
	return Record{}, false
}

// RecordsInZone returns the records of the given zone in listing order.
func (s *Snapshot) RecordsInZone(zoneID string) []Record {
	var out []Record
	for _, r := range s.Records {
		if r.ZoneID == zoneID {
			out = append(out, r)
		}
	}
	return out
}

// ZoneName returns the display name of fp: the other identifier of the
// matching zone, so an ID yields the name and a name yields the ID.
func (s *Snapshot) ZoneName(fp string) (string, bool) {
	z, ok := s.FindZone(fp)
	if !ok {
		return "", false
	}
	if fp == z.ID {
		return z.Name, true
	}
	return z.ID, true
}

// RecordName is ZoneName for a record of the zone identified by zoneFP.
func (s *Snapshot) RecordName(zoneFP, fp string) (string, bool) {
	z, ok := s.FindZone(zoneFP)
	if !ok {
		return "", false
	}
	r, ok := s.FindRecord(z.ID, fp)
	if !ok {
		return "", false
	}
	if fp == r.ID {
		return r.Name, true
	}
	return r.ID, true
}
