package config

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads a TOML config file. A missing file is an empty layer.
func LoadFile(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config file not found, proceeding without it", "path", path)
		return Layer{}, nil
	}
	if err != nil {
		return Layer{}, newError(path, err)
	}
	return ParseFile(path, data)
}

// ParseFile decodes TOML config contents. Unknown keys are rejected.
func ParseFile(source string, data []byte) (Layer, error) {
	var layer Layer
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&layer); err != nil {
		return Layer{}, newError(source, err)
	}
	return layer, nil
}
