package game

import (
	"math"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
)

// MovementSample is one replicated movement state. Sequence grows
// monotonically per entity; anything not newer than the last applied sample
// is stale and gets dropped.
type MovementSample struct {
	Sequence uint32
	Position mgl32.Vec3
	Yaw      float32
	Velocity mgl32.Vec3
	Flags    protocol.MoveFlags
}

func SampleFromMessage(msg *protocol.PlayerMovement) MovementSample {
	return MovementSample{
		Sequence: msg.Sequence,
		Position: msg.Position,
		Yaw:      msg.Yaw,
		Velocity: msg.Velocity,
		Flags:    msg.Flags,
	}
}

func (s MovementSample) Message(clientID uint32) *protocol.PlayerMovement {
	return &protocol.PlayerMovement{
		ClientID: clientID,
		Sequence: s.Sequence,
		Position: s.Position,
		Yaw:      s.Yaw,
		Velocity: s.Velocity,
		Flags:    s.Flags,
	}
}

// YawQuat converts a yaw in degrees into a rotation about +Y, so remote
// rotation can be eased with a proper slerp instead of lerping raw angles
// across the 180/-180 seam.
func YawQuat(yawDeg float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(yawDeg), mgl32.Vec3{0, 1, 0})
}

// QuatYaw extracts the yaw in degrees back out of a +Y rotation,
// normalized to [-180, 180]. The doubled half-angle runs to ±360 when the
// quaternion sits in the negated-but-equal representation.
func QuatYaw(q mgl32.Quat) float32 {
	deg := mgl32.RadToDeg(2 * float32(math.Atan2(float64(q.V[1]), float64(q.W))))
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}
