package gameclient

import (
	"math"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/go-gl/mathgl/mgl32"
)

// remote is the client's view of another player: the last authoritative
// sample as the target, plus the smoothed pose actually shown. Position
// eases toward the target exponentially, rotation by slerp; a target
// beyond the snap threshold teleports instead, which covers respawns and
// long packet gaps.
type remote struct {
	id    uint32
	name  string
	alive bool

	pos mgl32.Vec3
	rot mgl32.Quat

	target game.MovementSample
}

func newRemote(id uint32, name string, at mgl32.Vec3) *remote {
	return &remote{
		id:    id,
		name:  name,
		alive: true,
		pos:   at,
		rot:   mgl32.QuatIdent(),
		target: game.MovementSample{
			Position: at,
		},
	}
}

// apply adopts a newer authoritative sample as the interpolation target.
// Stale sequences are reordered datagrams and change nothing.
func (r *remote) apply(sample game.MovementSample) {
	if sample.Sequence <= r.target.Sequence {
		return
	}
	r.target = sample
}

// advance eases the shown pose toward the target by dt seconds.
func (r *remote) advance(dt float32) {
	delta := r.target.Position.Sub(r.pos)
	if delta.Len() > game.SnapThreshold {
		r.pos = r.target.Position
		r.rot = game.YawQuat(r.target.Yaw)
		return
	}

	// pos = target + (pos-target)·e^(-rate·dt): frame-rate independent,
	// never overshoots.
	keep := expDecay(game.InterpolationRate, dt)
	r.pos = r.target.Position.Sub(delta.Mul(keep))

	target := game.YawQuat(r.target.Yaw)
	// q and -q are the same rotation; flipping keeps the slerp on the
	// short arc across the 180° seam.
	if r.rot.Dot(target) < 0 {
		target = target.Scale(-1)
	}
	r.rot = mgl32.QuatSlerp(r.rot, target, 1-expDecay(game.RotationSlerpRate, dt))
}

// yaw is the shown heading in degrees.
func (r *remote) yaw() float32 {
	return game.QuatYaw(r.rot)
}

// teleport forces both the shown pose and the target, for spawn and
// respawn announcements that arrive on the reliable channel without a
// movement sample.
func (r *remote) teleport(to mgl32.Vec3) {
	r.pos = to
	r.target.Position = to
	r.target.Velocity = mgl32.Vec3{}
}

// view snapshots the shown state for the public API.
func (r *remote) view() RemoteView {
	return RemoteView{
		ID:       r.id,
		Name:     r.name,
		Alive:    r.alive,
		Position: r.pos,
		Yaw:      r.yaw(),
	}
}

// entity builds the hit-test view of this remote, using the shown pose:
// the local raycast is instant feedback for what the player sees, not a
// second authority.
func (r *remote) entity() *game.Entity {
	return &game.Entity{
		ID:    r.id,
		Name:  r.name,
		Alive: r.alive,
		Sample: game.MovementSample{
			Position: r.pos,
			Yaw:      r.yaw(),
			Flags:    r.target.Flags,
		},
	}
}

func expDecay(rate, dt float32) float32 {
	return float32(math.Exp(float64(-rate * dt)))
}
