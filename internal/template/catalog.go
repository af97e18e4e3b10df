package template

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the set of personas and templates available to campaigns.
type Catalog struct {
	Personas  []Persona  `yaml:"personas"`
	Templates []Template `yaml:"templates"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from a YAML file. An empty path loads the
// built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "template: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var wrapper struct {
		Catalog Catalog `yaml:"catalog"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "template: parse catalog")
	}

	c := &wrapper.Catalog
	seen := make(map[string]bool, len(c.Templates))
	for _, t := range c.Templates {
		if t.ID == "" {
			return nil, eris.New("template: template with empty id")
		}
		if seen[t.ID] {
			return nil, eris.Errorf("template: duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		if !t.Stage.Valid() {
			return nil, eris.Errorf("template: %s has unknown stage %q", t.ID, t.Stage)
		}
	}
	return c, nil
}

// Find returns the first template for a persona and stage.
func (c *Catalog) Find(personaID string, stage Stage) (Template, bool) {
	for _, t := range c.Templates {
		if t.PersonaID == personaID && t.Stage == stage {
			return t, true
		}
	}
	return Template{}, false
}

// Get returns a template by id.
func (c *Catalog) Get(id string) (Template, bool) {
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Persona returns a persona by id.
func (c *Catalog) Persona(id string) (Persona, bool) {
	for _, p := range c.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
