package registry

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

var ErrEmptyManifest = errors.New("manifest declares no package")

// Manifest declares the components of one content package:
//
//	package: arena
//	components:
//	  - name: health
//	    type: f32
//	  - name: tags
//	    type: list<string>
type Manifest struct {
	Package    string              `yaml:"package"`
	Components []ManifestComponent `yaml:"components"`
}

type ManifestComponent struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// LoadManifest decodes a YAML manifest from r.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Package == "" {
		return nil, ErrEmptyManifest
	}
	return &m, nil
}

// LoadManifestFile reads and decodes the manifest at path.
func LoadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := LoadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Apply registers every component as "package::name" in file order. Nothing is
// registered if any type expression fails to parse.
func (m *Manifest) Apply(r *Registry) ([]models.ComponentIndex, error) {
	comps := make([]Component, len(m.Components))
	for i, mc := range m.Components {
		t, err := values.ParseType(mc.Type)
		if err != nil {
			return nil, fmt.Errorf("%s::%s: %w", m.Package, mc.Name, err)
		}
		comps[i] = Component{
			Name:        Join(m.Package, mc.Name),
			Type:        t,
			Description: mc.Description,
		}
	}

	indices := make([]models.ComponentIndex, 0, len(comps))
	for _, c := range comps {
		idx, err := r.RegisterComponent(c)
		if err != nil {
			return indices, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
