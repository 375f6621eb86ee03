package inventory

import (
	"bytes"
	"fmt"

	"github.com/evanofslack/cddns/internal/provider"
	"gopkg.in/yaml.v3"
)

// SnapshotAnnotator comments every zone and record with its other
// identifier from a provider snapshot: the name for an ID, the ID for a name.
type SnapshotAnnotator struct {
	Snapshot *provider.Snapshot
}

func (a SnapshotAnnotator) Annotate(data []byte) ([]byte, error) {
	if a.Snapshot == nil {
		return nil, fmt.Errorf("annotate: no snapshot")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return data, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("annotate: %w", ErrMalformed)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		zone := key.Value
		name, ok := a.Snapshot.ZoneName(zone)
		if !ok {
			return nil, fmt.Errorf("annotate zone %q: %w", zone, ErrFingerprintNotFound)
		}
		key.LineComment = comment(name)

		for _, item := range value.Content {
			name, ok := a.Snapshot.RecordName(zone, item.Value)
			if !ok {
				return nil, fmt.Errorf("annotate record %q of zone %q: %w", item.Value, zone, ErrFingerprintNotFound)
			}
			item.LineComment = comment(name)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	return buf.Bytes(), nil
}

func comment(name string) string {
	return fmt.Sprintf("# '%s'", name)
}
