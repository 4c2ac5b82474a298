package gameclient

import (
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
)

// Input is one frame of player intent. Move is a world-space direction;
// its length is ignored, only the heading matters.
type Input struct {
	Move   mgl32.Vec3
	Yaw    float32
	Sprint bool
	Crouch bool
}

// predictor simulates the local entity immediately on input, without
// waiting for the server. The server's low-rate authoritative echo pulls
// the prediction back when it drifts.
type predictor struct {
	sample game.MovementSample

	// lastEcho is the sequence of the newest self echo applied; older
	// echoes are reordered datagrams and get dropped.
	lastEcho uint32
}

// integrate advances the predicted state by one frame of input.
func (p *predictor) integrate(in Input, dt float32) {
	speed := float32(game.WalkSpeed)
	flags := protocol.FlagGrounded
	switch {
	case in.Crouch:
		speed *= game.CrouchFactor
		flags |= protocol.FlagCrouching
	case in.Sprint:
		speed *= game.SprintFactor
		flags |= protocol.FlagSprinting
	}

	velocity := mgl32.Vec3{}
	if in.Move.Len() > 0 {
		velocity = in.Move.Normalize().Mul(speed)
		p.sample.Position = p.sample.Position.Add(velocity.Mul(dt))
	}
	p.sample.Velocity = velocity
	p.sample.Yaw = in.Yaw
	p.sample.Flags = flags
}

// reconcile applies an authoritative self sample. Errors beyond the snap
// threshold adopt the server position outright, mid-range errors blend
// halfway to avoid visible pops, and anything inside the noise floor is
// left alone.
func (p *predictor) reconcile(auth game.MovementSample) {
	if auth.Sequence <= p.lastEcho {
		return
	}
	p.lastEcho = auth.Sequence

	// A respawn bumps the sequence server-side; later sends must stay
	// ahead of it or they read as stale.
	if auth.Sequence > p.sample.Sequence {
		p.sample.Sequence = auth.Sequence
	}

	err := p.sample.Position.Sub(auth.Position).Len()
	switch {
	case err > game.SnapThreshold:
		p.sample.Position = auth.Position
	case err > game.IgnoreThreshold:
		delta := auth.Position.Sub(p.sample.Position)
		p.sample.Position = p.sample.Position.Add(delta.Mul(game.BlendFactor))
	}
}

// teleport discards the prediction entirely. Respawns do this.
func (p *predictor) teleport(to mgl32.Vec3) {
	p.sample.Position = to
	p.sample.Velocity = mgl32.Vec3{}
	p.sample.Flags = 0
}

// sendGate decides when a predicted sample is worth a datagram: at most
// MoveSendRate per second, and only once the position or yaw moved past
// its epsilon. force opens the gate once regardless, for the binding
// sample on activation and for post-teleport corrections.
type sendGate struct {
	lastPos mgl32.Vec3
	lastYaw float32
	lastAt  time.Time
	force   bool
}

const sendInterval = time.Second / game.MoveSendRate

func (g *sendGate) open(now time.Time, s game.MovementSample) bool {
	if g.force {
		g.force = false
		g.record(now, s)
		return true
	}
	if !g.lastAt.IsZero() && now.Sub(g.lastAt) < sendInterval {
		return false
	}
	if s.Position.Sub(g.lastPos).Len() <= game.PositionEpsilon &&
		mgl32.Abs(yawDelta(s.Yaw, g.lastYaw)) <= game.YawEpsilon {
		return false
	}
	g.record(now, s)
	return true
}

func (g *sendGate) record(now time.Time, s game.MovementSample) {
	g.lastPos = s.Position
	g.lastYaw = s.Yaw
	g.lastAt = now
}

// yawDelta is the signed smallest angle between two yaws in degrees,
// so the 180/-180 seam does not read as a full turn.
func yawDelta(a, b float32) float32 {
	d := a - b
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	return d
}
