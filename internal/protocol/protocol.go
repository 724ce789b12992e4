// Package protocol holds the endpoint tables of every portal and loads
// overrides for them from a YAML file.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aussiebroadwan/xdauth/internal/protocol/ehall"
	"github.com/aussiebroadwan/xdauth/internal/protocol/ids"
	"github.com/aussiebroadwan/xdauth/internal/protocol/rsbbs"
	"gopkg.in/yaml.v3"
)

// Endpoints groups the URL tables of all portals.
type Endpoints struct {
	IDS   ids.Endpoints   `yaml:"ids"`
	Ehall ehall.Endpoints `yaml:"ehall"`
	RSBBS rsbbs.Endpoints `yaml:"rsbbs"`
}

// Default returns the production endpoints.
func Default() Endpoints {
	return Endpoints{
		IDS:   ids.DefaultEndpoints(),
		Ehall: ehall.DefaultEndpoints(),
		RSBBS: rsbbs.DefaultEndpoints(),
	}
}

// Load reads overrides from path on top of Default. An empty path or a
// missing file yields the defaults.
func Load(path string) (Endpoints, error) {
	ep := Default()
	if path == "" {
		return ep, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ep, nil
	}
	if err != nil {
		return ep, fmt.Errorf("failed to read protocol file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a protocol file on top of Default. Keys that are absent
// keep their default value; unknown keys are rejected.
func Parse(data []byte) (Endpoints, error) {
	ep := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ep); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("failed to parse protocol file: %w", err)
	}
	return ep, nil
}

// Marshal renders ep as YAML, for writing a starting protocol file.
func Marshal(ep Endpoints) ([]byte, error) {
	return yaml.Marshal(ep)
}
