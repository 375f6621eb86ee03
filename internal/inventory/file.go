package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Annotator post-processes serialized inventory bytes before they are
// written.
type Annotator interface {
	Annotate(data []byte) ([]byte, error)
}

// Load reads the inventory at path.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", path, err)
	}
	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Loaded inventory", "path", path, "records", inv.Len())
	return inv, nil
}

// Parse decodes inventory YAML. A zone without records is dropped.
func Parse(data []byte) (*Inventory, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	inv := New()
	for zone, records := range raw {
		for _, r := range records {
			inv.Insert(zone, r)
		}
	}
	return inv, nil
}

// Marshal encodes the inventory as YAML with zones and records sorted.
func (inv *Inventory) Marshal() ([]byte, error) {
	raw := make(map[string][]string, len(inv.zones))
	for _, z := range inv.Zones() {
		raw[z.Name] = z.Records
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the inventory to path, creating parent directories. When an
// annotator is given its output is written instead; if annotation fails the
// plain encoding is written and the failure is logged.
func (inv *Inventory) Save(path string, annotator Annotator) error {
	data, err := inv.Marshal()
	if err != nil {
		return err
	}
	if annotator != nil {
		annotated, err := annotator.Annotate(data)
		if err != nil {
			slog.Warn("Could not annotate inventory, saving without comments", "error", err)
		} else {
			data = annotated
		}
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("save inventory %s: %w", path, err)
	}
	slog.Debug("Saved inventory", "path", path, "records", inv.Len())
	return nil
}

// writeFile replaces path atomically with data.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
