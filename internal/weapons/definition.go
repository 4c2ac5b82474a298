// Package weapons holds the closed weapon catalog: designer-authored
// definitions, the damage falloff math and per-weapon runtime state. The
// definition structs double as the JSON contract for override files;
// cmd/weaponschema reflects them into a schema designers validate against.
package weapons

import (
	"fmt"
	"strings"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// Class splits the catalog into its three validation paths.
type Class string

const (
	ClassMelee     Class = "melee"
	ClassRanged    Class = "ranged"
	ClassThrowable Class = "throwable"
)

// Definition is one catalog entry. The per-class block matching Class must
// be present and the other absent.
type Definition struct {
	ID         protocol.WeaponID `json:"id" jsonschema:"title=Weapon id,minimum=1,description=Wire identifier; stable across builds"`
	Name       string            `json:"name" jsonschema:"minLength=1"`
	Slot       uint8             `json:"slot" jsonschema:"description=Loadout slot this weapon equips into"`
	Class      Class             `json:"class" jsonschema:"enum=melee,enum=ranged,enum=throwable"`
	BaseDamage float32           `json:"baseDamage" jsonschema:"minimum=1"`
	FireRate   float32           `json:"fireRate" jsonschema:"description=Maximum attacks per second"`
	Range      float32           `json:"range" jsonschema:"description=Maximum effective distance in meters"`
	Ranged     *RangedSpec       `json:"ranged,omitempty"`
	Throwable  *ThrowableSpec    `json:"throwable,omitempty"`
}

// RangedSpec adds magazine handling and distance falloff.
type RangedSpec struct {
	OptimalRange      float32 `json:"optimalRange" jsonschema:"description=Full damage up to this distance"`
	MinDamageFraction float32 `json:"minDamageFraction" jsonschema:"minimum=0,maximum=1,description=Damage floor reached at maximum range"`
	MagazineSize      uint16  `json:"magazineSize" jsonschema:"minimum=1"`
	ReserveMax        uint16  `json:"reserveMax"`
	ReloadSeconds     float32 `json:"reloadSeconds"`
}

// ThrowableSpec consumes a ledger item per throw instead of magazine ammo.
type ThrowableSpec struct {
	ItemID uint16 `json:"itemId" jsonschema:"minimum=1,description=Inventory item consumed per throw"`
}

// MinFireInterval is the smallest legal gap between two attacks.
func (d *Definition) MinFireInterval() time.Duration {
	return time.Duration(float64(time.Second) / float64(d.FireRate))
}

// ReloadDuration converts the designer-facing seconds into a duration.
func (r *RangedSpec) ReloadDuration() time.Duration {
	return time.Duration(float64(r.ReloadSeconds) * float64(time.Second))
}

// Falloff returns the damage fraction at a hit distance: 1.0 inside
// OptimalRange, linear down to MinDamageFraction at Range. Melee and
// throwables deal full damage anywhere inside their range gate.
func (d *Definition) Falloff(distance float32) float32 {
	if d.Ranged == nil {
		return 1
	}
	r := d.Ranged
	if distance <= r.OptimalRange || d.Range <= r.OptimalRange {
		return 1
	}
	t := (distance - r.OptimalRange) / (d.Range - r.OptimalRange)
	if t > 1 {
		t = 1
	}
	return 1 - t*(1-r.MinDamageFraction)
}

func (d *Definition) Validate() error {
	if d.ID == 0 {
		return fmt.Errorf("weapon %q: id must be nonzero", d.Name)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("weapon %d: name must not be empty", d.ID)
	}
	if d.BaseDamage <= 0 {
		return fmt.Errorf("weapon %q: base damage must be positive", d.Name)
	}
	if d.FireRate <= 0 {
		return fmt.Errorf("weapon %q: fire rate must be positive", d.Name)
	}
	if d.Range <= 0 {
		return fmt.Errorf("weapon %q: range must be positive", d.Name)
	}

	switch d.Class {
	case ClassMelee:
		if d.Ranged != nil || d.Throwable != nil {
			return fmt.Errorf("weapon %q: melee carries no class payload", d.Name)
		}
	case ClassRanged:
		if d.Ranged == nil {
			return fmt.Errorf("weapon %q: ranged weapon needs a ranged block", d.Name)
		}
		if d.Throwable != nil {
			return fmt.Errorf("weapon %q: ranged weapon with a throwable block", d.Name)
		}
		r := d.Ranged
		if r.MagazineSize == 0 {
			return fmt.Errorf("weapon %q: magazine must hold at least one round", d.Name)
		}
		if r.OptimalRange < 0 || r.OptimalRange > d.Range {
			return fmt.Errorf("weapon %q: optimal range must sit within [0, range]", d.Name)
		}
		if r.MinDamageFraction < 0 || r.MinDamageFraction > 1 {
			return fmt.Errorf("weapon %q: min damage fraction must sit within [0, 1]", d.Name)
		}
		if r.ReloadSeconds <= 0 {
			return fmt.Errorf("weapon %q: reload must take time", d.Name)
		}
	case ClassThrowable:
		if d.Throwable == nil {
			return fmt.Errorf("weapon %q: throwable weapon needs a throwable block", d.Name)
		}
		if d.Ranged != nil {
			return fmt.Errorf("weapon %q: throwable weapon with a ranged block", d.Name)
		}
		if d.Throwable.ItemID == 0 {
			return fmt.Errorf("weapon %q: throwable item id must be nonzero", d.Name)
		}
	default:
		return fmt.Errorf("weapon %q: unknown class %q", d.Name, d.Class)
	}
	return nil
}
