package game

import (
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
)

// Hitbox damage multipliers, global across all weapons.
const (
	HeadMultiplier  = 2.0
	BodyMultiplier  = 1.0
	LimbsMultiplier = 0.75
)

func HitboxMultiplier(h protocol.Hitbox) float32 {
	switch h {
	case protocol.HitboxHead:
		return HeadMultiplier
	case protocol.HitboxLimbs:
		return LimbsMultiplier
	default:
		return BodyMultiplier
	}
}

// RayHit is one resolved hitscan intersection.
type RayHit struct {
	EntityID uint32
	Hitbox   protocol.Hitbox
	Point    mgl32.Vec3
	Distance float32
}

// IntersectEntity casts a ray against the entity's capsule and classifies
// the hit point by its height fraction: head above headZone, limbs below
// limbZone, body between. dir must be unit length.
func IntersectEntity(e *Entity, origin, dir mgl32.Vec3) (RayHit, bool) {
	base := e.Sample.Position
	height := e.Height()

	a := base.Add(mgl32.Vec3{0, PlayerRadius, 0})
	b := base.Add(mgl32.Vec3{0, height - PlayerRadius, 0})
	t := rayCapsule(origin, dir, a, b, PlayerRadius)
	if t < 0 {
		return RayHit{}, false
	}

	point := origin.Add(dir.Mul(t))
	hitbox := protocol.HitboxBody
	switch frac := (point.Y() - base.Y()) / height; {
	case frac >= headZone:
		hitbox = protocol.HitboxHead
	case frac < limbZone:
		hitbox = protocol.HitboxLimbs
	}
	return RayHit{EntityID: e.ID, Hitbox: hitbox, Point: point, Distance: t}, true
}

// Raycast finds the closest live entity the ray hits within maxDistance,
// skipping the shooter. Reports false on a clean miss.
func Raycast(entities []*Entity, origin, dir mgl32.Vec3, maxDistance float32, skipID uint32) (RayHit, bool) {
	var best RayHit
	found := false
	for _, e := range entities {
		if e.ID == skipID || !e.Alive {
			continue
		}
		hit, ok := IntersectEntity(e, origin, dir)
		if !ok || hit.Distance > maxDistance {
			continue
		}
		if !found || hit.Distance < best.Distance {
			best = hit
			found = true
		}
	}
	return best, found
}
