package weapons

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// Catalog is an immutable, validated weapon set indexed by wire id.
type Catalog struct {
	byID map[protocol.WeaponID]*Definition
}

func NewCatalog(defs []Definition) (*Catalog, error) {
	byID := make(map[protocol.WeaponID]*Definition, len(defs))
	for i := range defs {
		def := &defs[i]
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[def.ID]; dup {
			return nil, fmt.Errorf("weapon %q: duplicate id %d", def.Name, def.ID)
		}
		byID[def.ID] = def
	}
	return &Catalog{byID: byID}, nil
}

// Load reads a designer-authored JSON array (the format cmd/weaponschema
// describes) and builds a catalog from it, replacing the built-in set.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read weapon catalog: %w", err)
	}
	var defs FileDefinitions
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("could not parse weapon catalog %s: %w", path, err)
	}
	catalog, err := NewCatalog(defs)
	if err != nil {
		return nil, fmt.Errorf("invalid weapon catalog %s: %w", path, err)
	}
	return catalog, nil
}

func (c *Catalog) Lookup(id protocol.WeaponID) (*Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// All returns the definitions ordered by id.
func (c *Catalog) All() []*Definition {
	defs := make([]*Definition, 0, len(c.byID))
	for _, def := range c.byID {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// FileDefinitions is the on-disk catalog format: a flat array of
// definitions. Shared with the schema generator.
type FileDefinitions []Definition
