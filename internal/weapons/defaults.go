package weapons

import (
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/debug"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// Wire ids of the built-in weapons.
const (
	Knife     protocol.WeaponID = 1
	Hatchet   protocol.WeaponID = 2
	Revolver  protocol.WeaponID = 3
	BoltRifle protocol.WeaponID = 4
	Spear     protocol.WeaponID = 5
)

// Loadout slots.
const (
	SlotPrimary   = 0
	SlotSecondary = 1
	SlotThrowable = 2
)

// ItemSpear is the ledger item a spear throw consumes.
const ItemSpear = 301

var defaults = []Definition{
	{
		ID:         Knife,
		Name:       "knife",
		Slot:       SlotSecondary,
		Class:      ClassMelee,
		BaseDamage: 25,
		FireRate:   2,
		Range:      2,
	},
	{
		ID:         Hatchet,
		Name:       "hatchet",
		Slot:       SlotSecondary,
		Class:      ClassMelee,
		BaseDamage: 40,
		FireRate:   1.25,
		Range:      2.5,
	},
	{
		ID:         Revolver,
		Name:       "revolver",
		Slot:       SlotPrimary,
		Class:      ClassRanged,
		BaseDamage: 40,
		FireRate:   2,
		Range:      50,
		Ranged: &RangedSpec{
			OptimalRange:      15,
			MinDamageFraction: 0.5,
			MagazineSize:      6,
			ReserveMax:        36,
			ReloadSeconds:     2.5,
		},
	},
	{
		ID:         BoltRifle,
		Name:       "bolt rifle",
		Slot:       SlotPrimary,
		Class:      ClassRanged,
		BaseDamage: 75,
		FireRate:   0.75,
		Range:      150,
		Ranged: &RangedSpec{
			OptimalRange:      60,
			MinDamageFraction: 0.5,
			MagazineSize:      4,
			ReserveMax:        24,
			ReloadSeconds:     3.5,
		},
	},
	{
		ID:         Spear,
		Name:       "spear",
		Slot:       SlotThrowable,
		Class:      ClassThrowable,
		BaseDamage: 60,
		FireRate:   1,
		Range:      30,
		Throwable:  &ThrowableSpec{ItemID: ItemSpear},
	},
}

// DefaultCatalog builds the built-in weapon set. The definitions above are
// compile-time data; failing validation is a bug, not an input error.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(defaults)
	debug.Assert(err == nil, "built-in weapon catalog must validate")
	return catalog
}

// DefaultLoadout is what a fresh spawn carries, one weapon per slot.
func DefaultLoadout() []protocol.WeaponID {
	return []protocol.WeaponID{Revolver, Knife, Spear}
}
