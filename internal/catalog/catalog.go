// Package catalog holds the immutable card definition registry: the static
// mapping from a definition id to archetype and display metadata. Loaded
// once at startup and never mutated afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/splitduel/server/internal/engine"
)

// Definition is the immutable metadata for one card type.
type Definition struct {
	ID          string           `json:"id"`
	Archetype   engine.Archetype `json:"-"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
}

// Registry maps definition ids to definitions. Built once; read-only after.
type Registry struct {
	byID        map[string]Definition
	byArchetype [engine.NumArchetypes]Definition
}

// Default returns the built-in three-card registry.
func Default() *Registry {
	r := &Registry{byID: make(map[string]Definition)}
	for _, def := range []Definition{
		{ID: "attack", Archetype: engine.ArchetypeAttack, Name: "Attack", Description: "Strikes the opponent or their defense."},
		{ID: "defense", Archetype: engine.ArchetypeDefense, Name: "Defense", Description: "Absorbs one incoming attack."},
		{ID: "split", Archetype: engine.ArchetypeSplit, Name: "Split", Description: "Divides into two cards of a chosen type."},
	} {
		r.add(def)
	}
	return r
}

func (r *Registry) add(def Definition) {
	r.byID[def.ID] = def
	r.byArchetype[def.Archetype] = def
}

// Lookup resolves a definition id. ok is false for unknown ids.
func (r *Registry) Lookup(id string) (Definition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// ForArchetype returns the definition dealt for the given archetype.
func (r *Registry) ForArchetype(a engine.Archetype) Definition {
	return r.byArchetype[a]
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int { return len(r.byID) }

// definitionFile is the on-disk shape of a custom catalog entry.
type definitionFile struct {
	Definitions []struct {
		ID          string `json:"id"`
		Archetype   string `json:"archetype"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"definitions"`
}

// LoadFile reads a JSON catalog overriding the built-in display metadata.
// Every archetype must be covered by exactly one definition.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file definitionFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	r := &Registry{byID: make(map[string]Definition)}
	var covered [engine.NumArchetypes]bool
	for _, d := range file.Definitions {
		arch, ok := engine.ParseArchetype(d.Archetype)
		if !ok {
			return nil, fmt.Errorf("definition %q: unknown archetype %q", d.ID, d.Archetype)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate definition id %q", d.ID)
		}
		if covered[arch] {
			return nil, fmt.Errorf("definition %q: archetype %s already defined", d.ID, arch)
		}
		covered[arch] = true
		r.add(Definition{ID: d.ID, Archetype: arch, Name: d.Name, Description: d.Description})
	}
	for a := engine.Archetype(0); a < engine.NumArchetypes; a++ {
		if !covered[a] {
			return nil, fmt.Errorf("catalog missing a definition for archetype %s", a)
		}
	}
	return r, nil
}
