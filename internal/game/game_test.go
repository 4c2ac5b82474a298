package game_test

import (
	"math"
	"testing"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/matryer/is"
)

func approx(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) < float64(tol)
}

func TestHitboxMultipliers(t *testing.T) {
	is := is.New(t)

	is.Equal(game.HitboxMultiplier(protocol.HitboxHead), float32(2.0))
	is.Equal(game.HitboxMultiplier(protocol.HitboxBody), float32(1.0))
	is.Equal(game.HitboxMultiplier(protocol.HitboxLimbs), float32(0.75))
}

func TestIntersectEntityZones(t *testing.T) {
	target := game.NewEntity(7, "victim", mgl32.Vec3{0, 0, 0})
	forward := mgl32.Vec3{0, 0, -1}

	testCases := []struct {
		name   string
		height float32
		want   protocol.Hitbox
	}{
		{"eye level is a head shot", 1.62, protocol.HitboxHead},
		{"chest is body", 1.0, protocol.HitboxBody},
		{"thigh is limbs", 0.5, protocol.HitboxLimbs},
		{"shin is limbs", 0.2, protocol.HitboxLimbs},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			hit, ok := game.IntersectEntity(target, mgl32.Vec3{0, tc.height, 5}, forward)
			is.True(ok)
			is.Equal(hit.Hitbox, tc.want)
			is.True(approx(hit.Point.Y(), tc.height, 0.01))
		})
	}
}

func TestIntersectEntityDistance(t *testing.T) {
	is := is.New(t)

	target := game.NewEntity(7, "victim", mgl32.Vec3{0, 0, 0})

	// A chest-height ray from 5m out stops on the capsule side, one radius
	// short of the axis.
	hit, ok := game.IntersectEntity(target, mgl32.Vec3{0, 1, 5}, mgl32.Vec3{0, 0, -1})
	is.True(ok)
	is.True(approx(hit.Distance, 5-game.PlayerRadius, 0.01))
}

func TestIntersectEntityCrouched(t *testing.T) {
	is := is.New(t)

	target := game.NewEntity(7, "victim", mgl32.Vec3{0, 0, 0})
	target.Sample.Flags = protocol.FlagCrouching
	forward := mgl32.Vec3{0, 0, -1}

	// Standing eye height sails over a crouched capsule.
	_, ok := game.IntersectEntity(target, mgl32.Vec3{0, 1.62, 5}, forward)
	is.True(!ok)

	// The head zone tracks the reduced height.
	hit, ok := game.IntersectEntity(target, mgl32.Vec3{0, 1.1, 5}, forward)
	is.True(ok)
	is.Equal(hit.Hitbox, protocol.HitboxHead)
}

func TestRaycastClosestLiveEntity(t *testing.T) {
	is := is.New(t)

	near := game.NewEntity(1, "near", mgl32.Vec3{0, 0, -5})
	far := game.NewEntity(2, "far", mgl32.Vec3{0, 0, -10})
	entities := []*game.Entity{far, near}

	origin := mgl32.Vec3{0, 1, 0}
	forward := mgl32.Vec3{0, 0, -1}

	hit, ok := game.Raycast(entities, origin, forward, 50, 99)
	is.True(ok)
	is.Equal(hit.EntityID, uint32(1))

	// Dead entities are transparent.
	near.Alive = false
	hit, ok = game.Raycast(entities, origin, forward, 50, 99)
	is.True(ok)
	is.Equal(hit.EntityID, uint32(2))

	// Range cuts the remaining hit off.
	_, ok = game.Raycast(entities, origin, forward, 8, 99)
	is.True(!ok)

	// The shooter never hits itself.
	near.Alive = true
	hit, ok = game.Raycast(entities, origin, forward, 50, 1)
	is.True(ok)
	is.Equal(hit.EntityID, uint32(2))
}

func TestSpawnRing(t *testing.T) {
	is := is.New(t)

	is.True(approx(game.SpawnPointAt(0).X(), game.SpawnRadius, 0.001))
	is.True(approx(game.SpawnPointAt(0).Z(), 0, 0.001))

	var ring game.SpawnRing
	seen := make(map[[3]float32]bool)
	for i := 0; i < game.SpawnPoints; i++ {
		p := ring.Next()
		is.True(approx(p.Len(), game.SpawnRadius, 0.001))
		seen[[3]float32{p.X(), p.Y(), p.Z()}] = true
	}
	is.Equal(len(seen), game.SpawnPoints)

	// Round-robin wraps back to the first point.
	is.Equal(ring.Next(), game.SpawnPointAt(0))
}

func TestEntityDamageAndRespawn(t *testing.T) {
	is := is.New(t)

	e := game.NewEntity(3, "scrappy", game.SpawnPointAt(0))
	is.True(e.Alive)
	is.Equal(e.Health, float32(game.MaxHealth))

	is.True(!e.ApplyDamage(30))
	is.Equal(e.Health, float32(70))

	is.True(e.ApplyDamage(70))
	is.True(!e.Alive)
	is.Equal(e.Health, float32(0))

	// Overkill on a corpse changes nothing.
	is.True(!e.ApplyDamage(10))
	is.Equal(e.Health, float32(0))

	seq := e.Sample.Sequence
	at := game.SpawnPointAt(3)
	e.Respawn(at)
	is.True(e.Alive)
	is.Equal(e.Health, float32(game.MaxHealth))
	is.Equal(e.Sample.Position, at)
	is.True(e.Sample.Sequence > seq)
}

func TestYawQuatRoundTrip(t *testing.T) {
	is := is.New(t)

	for _, yaw := range []float32{0, 45, 90, -90, 179, -179} {
		got := game.QuatYaw(game.YawQuat(yaw))
		is.True(approx(got, yaw, 0.01))
	}
}
