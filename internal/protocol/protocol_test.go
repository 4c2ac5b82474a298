package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/matryer/is"
)

func TestMessageRoundTrip(t *testing.T) {
	messages := []protocol.Message{
		&protocol.ConnectionRequest{Name: "Grüßer80"},
		&protocol.ConnectionRequest{},
		&protocol.ConnectionAccept{ClientID: 1, SpawnPosition: mgl32.Vec3{10, 0, -0.5}},
		&protocol.ServerFull{},
		&protocol.ClientReady{},
		&protocol.Heartbeat{},
		&protocol.Disconnect{},
		&protocol.PlayerSpawn{ClientID: 7, Position: mgl32.Vec3{-3.25, 1.8, 12}, Name: "scrappy"},
		&protocol.PlayerDisconnect{ClientID: math.MaxUint32},
		&protocol.PlayerMovement{
			ClientID: 3,
			Sequence: 4096,
			Position: mgl32.Vec3{1.5, 0, -9.75},
			Yaw:      -179.5,
			Velocity: mgl32.Vec3{0, -9.81, 0},
			Flags:    protocol.FlagGrounded | protocol.FlagSprinting,
		},
		&protocol.MeleeAttack{
			TargetID:  2,
			WeaponID:  1,
			Hitbox:    protocol.HitboxLimbs,
			Direction: mgl32.Vec3{0, 0, 1},
		},
		&protocol.RangedAttack{
			TargetID:  5,
			WeaponID:  3,
			Hitbox:    protocol.HitboxHead,
			Origin:    mgl32.Vec3{4, 1.62, -20},
			Direction: mgl32.Vec3{0, 0, -1},
			Distance:  38.5,
		},
		&protocol.AttackResult{
			AttackerID:    3,
			TargetID:      5,
			WeaponID:      3,
			Success:       true,
			DamageDealt:   61.6,
			WasKilled:     true,
			Hitbox:        protocol.HitboxHead,
			Distance:      38.5,
			RemainingAmmo: 5,
		},
		&protocol.AttackResult{
			AttackerID:    3,
			WeaponID:      3,
			RemainingAmmo: -1,
			Message:       "out of ammo",
		},
		&protocol.TakeDamageNotify{
			VictimID:   5,
			AttackerID: 3,
			Damage:     61.6,
			DamageType: protocol.DamageBullet,
			Hitbox:     protocol.HitboxHead,
			Direction:  mgl32.Vec3{0, 0, -1},
		},
		&protocol.PlayerKilled{
			VictimID:   5,
			KillerID:   3,
			WeaponID:   3,
			Hitbox:     protocol.HitboxHead,
			Distance:   38.5,
			KillerName: "scrappy",
			WeaponUsed: "revolver",
		},
		&protocol.RespawnRequest{},
		&protocol.RespawnResponse{Message: "respawn available in 3s"},
		&protocol.RespawnResponse{Success: true, SpawnPosition: mgl32.Vec3{0, 0, 10}},
		&protocol.WeaponEquip{WeaponID: 4, Slot: 1},
		&protocol.WeaponReload{WeaponID: 3},
		&protocol.WeaponStateUpdate{
			WeaponID:       3,
			CurrentAmmo:    6,
			ReserveAmmo:    30,
			IsReloading:    true,
			ReloadProgress: 0.25,
		},
	}

	for _, original := range messages {
		t.Run(original.Type().String(), func(t *testing.T) {
			is := is.New(t)

			frame, err := protocol.Encode(original)
			is.NoErr(err)
			is.Equal(frame[0], byte(original.Type()))
			is.Equal(len(frame), protocol.HeaderSize+int(binary.LittleEndian.Uint32(frame[1:protocol.HeaderSize])))

			decoded, err := protocol.Decode(frame)
			is.NoErr(err)
			is.Equal(original, decoded)
		})
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	is := is.New(t)

	frame, err := protocol.Encode(&protocol.Heartbeat{})
	is.NoErr(err)
	is.Equal(len(frame), protocol.HeaderSize)
	is.Equal(frame[0], byte(protocol.TypeHeartbeat))
	is.Equal(binary.LittleEndian.Uint32(frame[1:]), uint32(0))
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	is := is.New(t)

	_, err := protocol.Encode(&protocol.ConnectionRequest{
		Name: strings.Repeat("a", protocol.MaxPayloadSize+1),
	})
	is.True(err != nil)
}

func TestReadMessageStream(t *testing.T) {
	is := is.New(t)

	var stream bytes.Buffer
	for _, msg := range []protocol.Message{
		&protocol.ConnectionRequest{Name: "nomad"},
		&protocol.Heartbeat{},
	} {
		frame, err := protocol.Encode(msg)
		is.NoErr(err)
		stream.Write(frame)
	}

	msg, err := protocol.ReadMessage(&stream)
	is.NoErr(err)
	req, ok := msg.(*protocol.ConnectionRequest)
	is.True(ok)
	is.Equal(req.Name, "nomad")

	msg, err = protocol.ReadMessage(&stream)
	is.NoErr(err)
	is.Equal(msg.Type(), protocol.TypeHeartbeat)

	_, err = protocol.ReadMessage(&stream)
	is.True(errors.Is(err, io.EOF))
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	is := is.New(t)

	frame, err := protocol.Encode(&protocol.PlayerDisconnect{ClientID: 9})
	is.NoErr(err)

	_, err = protocol.ReadMessage(bytes.NewReader(frame[:len(frame)-2]))
	is.True(errors.Is(err, io.ErrUnexpectedEOF))
}

func TestDecodeMalformed(t *testing.T) {
	is := is.New(t)

	melee, err := protocol.Encode(&protocol.MeleeAttack{
		TargetID:  1,
		WeaponID:  1,
		Hitbox:    protocol.HitboxHead,
		Direction: mgl32.Vec3{0, 0, 1},
	})
	is.NoErr(err)
	// TargetID(4) + WeaponID(1) put the hitbox byte at payload offset 5.
	badHitbox := bytes.Clone(melee)
	badHitbox[protocol.HeaderSize+5] = 0xff

	notify, err := protocol.Encode(&protocol.TakeDamageNotify{
		VictimID:   1,
		AttackerID: 2,
		Damage:     10,
		DamageType: protocol.DamageMelee,
		Direction:  mgl32.Vec3{1, 0, 0},
	})
	is.NoErr(err)
	badDamageType := bytes.Clone(notify)
	badDamageType[protocol.HeaderSize+12] = 0xff

	movement, err := protocol.Encode(&protocol.PlayerMovement{ClientID: 1, Sequence: 1})
	is.NoErr(err)
	badFlags := bytes.Clone(movement)
	badFlags[protocol.HeaderSize+36] = 0x80
	nanYaw := bytes.Clone(movement)
	binary.LittleEndian.PutUint32(nanYaw[protocol.HeaderSize+20:], math.Float32bits(float32(math.NaN())))

	oversized := frame(byte(protocol.TypeConnectionRequest), make([]byte, protocol.MaxPayloadSize+1))

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{byte(protocol.TypeHeartbeat), 0x00}},
		{"unknown type", frame(0xee, nil)},
		{"length overrun", movement[:protocol.HeaderSize]},
		{"trailing byte", append(frame(byte(protocol.TypeHeartbeat), nil), 0x00)},
		{"payload on empty message", frame(byte(protocol.TypeHeartbeat), []byte{1})},
		{"oversized length", oversized},
		{"string length overrun", frame(byte(protocol.TypeConnectionRequest), []byte{0x05, 0x00, 0x00, 0x00, 'a'})},
		{"hitbox out of range", badHitbox},
		{"damage type out of range", badDamageType},
		{"unknown move flag", badFlags},
		{"non-finite yaw", nanYaw},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			_, err := protocol.Decode(tc.data)
			is.True(errors.Is(err, protocol.ErrMalformedPacket))
		})
	}
}

func TestDecodeTruncatedFrames(t *testing.T) {
	is := is.New(t)

	full, err := protocol.Encode(&protocol.PlayerKilled{
		VictimID:   5,
		KillerID:   3,
		WeaponID:   3,
		Hitbox:     protocol.HitboxBody,
		Distance:   12,
		KillerName: "scrappy",
		WeaponUsed: "revolver",
	})
	is.NoErr(err)

	for i := 0; i < len(full); i++ {
		_, err := protocol.Decode(full[:i])
		is.True(errors.Is(err, protocol.ErrMalformedPacket))
	}
}

func TestMoveFlags(t *testing.T) {
	is := is.New(t)

	flags := protocol.FlagGrounded | protocol.FlagCrouching
	is.True(flags.Grounded())
	is.True(flags.Crouching())
	is.True(!flags.Sprinting())
}

// frame prepends a wire header to a raw payload so tests can craft frames
// Encode would refuse to produce.
func frame(msgType byte, payload []byte) []byte {
	out := make([]byte, protocol.HeaderSize, protocol.HeaderSize+len(payload))
	out[0] = msgType
	binary.LittleEndian.PutUint32(out[1:], uint32(len(payload)))
	return append(out, payload...)
}
