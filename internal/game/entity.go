package game

import "github.com/go-gl/mathgl/mgl32"

// Entity is the authoritative view of one player in the world.
type Entity struct {
	ID        uint32
	Name      string
	Sample    MovementSample
	Health    float32
	MaxHealth float32
	Alive     bool
}

func NewEntity(id uint32, name string, spawn mgl32.Vec3) *Entity {
	return &Entity{
		ID:        id,
		Name:      name,
		Sample:    MovementSample{Position: spawn},
		Health:    MaxHealth,
		MaxHealth: MaxHealth,
		Alive:     true,
	}
}

func (e *Entity) Position() mgl32.Vec3 { return e.Sample.Position }

// Height is the current capsule height, honoring crouch.
func (e *Entity) Height() float32 {
	if e.Sample.Flags.Crouching() {
		return PlayerHeight * CrouchScale
	}
	return PlayerHeight
}

// Eye is the aim origin attacks are re-simulated from.
func (e *Entity) Eye() mgl32.Vec3 {
	eye := float32(EyeHeight)
	if e.Sample.Flags.Crouching() {
		eye *= CrouchScale
	}
	return e.Sample.Position.Add(mgl32.Vec3{0, eye, 0})
}

// ApplyDamage reduces health and reports whether this particular hit was the
// killing one. Damage on an already dead entity is a no-op.
func (e *Entity) ApplyDamage(damage float32) (killed bool) {
	if !e.Alive {
		return false
	}
	e.Health -= damage
	if e.Health <= 0 {
		e.Health = 0
		e.Alive = false
		return true
	}
	return false
}

// Respawn resets the entity at a fresh spawn point with full health. The
// sequence keeps counting up so receivers don't mistake post-respawn samples
// for stale ones.
func (e *Entity) Respawn(at mgl32.Vec3) {
	e.Sample.Sequence++
	e.Sample.Position = at
	e.Sample.Velocity = mgl32.Vec3{}
	e.Sample.Flags = 0
	e.Health = e.MaxHealth
	e.Alive = true
}
