// Package protocol implements the fixed-layout binary wire format shared by
// the reliable and unreliable channels.
//
// Every frame is [1 byte type][4 bytes payload length, little-endian][payload].
// The type byte read first decides how the remaining bytes are interpreted;
// decoding is never attempted without it. The layout is closed and
// versionless. Malformed input of any kind (truncated payload, oversized
// length, unknown type, trailing bytes, non-finite floats) fails with
// ErrMalformedPacket; the codec never panics on hostile bytes.
package protocol

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the frame header: type byte plus uint32 payload length.
	HeaderSize = 5
	// MaxPayloadSize bounds a single payload on both channels. Anything
	// larger than this is garbage, not a message.
	MaxPayloadSize = 16 << 10
)

// ErrMalformedPacket marks bytes that cannot be a well-formed frame. On the
// reliable channel it is connection-fatal; on the unreliable channel the
// datagram is dropped.
var ErrMalformedPacket = errors.New("protocol: malformed packet")

// Type identifies a message layout on the wire.
type Type uint8

const (
	// session, reliable channel
	TypeConnectionRequest Type = 0x01
	TypeConnectionAccept  Type = 0x02
	TypeServerFull        Type = 0x03
	TypeClientReady       Type = 0x04
	TypeHeartbeat         Type = 0x05
	TypeDisconnect        Type = 0x06
	TypePlayerSpawn       Type = 0x07
	TypePlayerDisconnect  Type = 0x08

	// movement, unreliable channel
	TypePlayerMovement Type = 0x10

	// combat; requests arrive unreliable, outcomes leave reliable
	TypeMeleeAttack      Type = 0x20
	TypeRangedAttack     Type = 0x21
	TypeAttackResult     Type = 0x22
	TypeTakeDamageNotify Type = 0x23
	TypePlayerKilled     Type = 0x24
	TypeRespawnRequest   Type = 0x25
	TypeRespawnResponse  Type = 0x26

	// weapon management, reliable channel
	TypeWeaponEquip       Type = 0x30
	TypeWeaponReload      Type = 0x31
	TypeWeaponStateUpdate Type = 0x32
)

func (t Type) String() string {
	switch t {
	case TypeConnectionRequest:
		return "ConnectionRequest"
	case TypeConnectionAccept:
		return "ConnectionAccept"
	case TypeServerFull:
		return "ServerFull"
	case TypeClientReady:
		return "ClientReady"
	case TypeHeartbeat:
		return "Heartbeat"
	case TypeDisconnect:
		return "Disconnect"
	case TypePlayerSpawn:
		return "PlayerSpawn"
	case TypePlayerDisconnect:
		return "PlayerDisconnect"
	case TypePlayerMovement:
		return "PlayerMovement"
	case TypeMeleeAttack:
		return "MeleeAttack"
	case TypeRangedAttack:
		return "RangedAttack"
	case TypeAttackResult:
		return "AttackResult"
	case TypeTakeDamageNotify:
		return "TakeDamageNotify"
	case TypePlayerKilled:
		return "PlayerKilled"
	case TypeRespawnRequest:
		return "RespawnRequest"
	case TypeRespawnResponse:
		return "RespawnResponse"
	case TypeWeaponEquip:
		return "WeaponEquip"
	case TypeWeaponReload:
		return "WeaponReload"
	case TypeWeaponStateUpdate:
		return "WeaponStateUpdate"
	}
	return fmt.Sprintf("Type(0x%02x)", uint8(t))
}

// WeaponID names an entry of the closed weapon catalog.
type WeaponID uint8

// Hitbox tags the body region a shot struck; it selects the damage
// multiplier server-side.
type Hitbox uint8

const (
	HitboxBody Hitbox = iota
	HitboxHead
	HitboxLimbs

	hitboxMax
)

func (h Hitbox) String() string {
	switch h {
	case HitboxBody:
		return "body"
	case HitboxHead:
		return "head"
	case HitboxLimbs:
		return "limbs"
	}
	return fmt.Sprintf("hitbox(%d)", uint8(h))
}

// DamageType distinguishes how damage was dealt, for victim-side effects.
type DamageType uint8

const (
	DamageMelee DamageType = iota
	DamageBullet
	DamageThrown

	damageTypeMax
)

func (d DamageType) String() string {
	switch d {
	case DamageMelee:
		return "melee"
	case DamageBullet:
		return "bullet"
	case DamageThrown:
		return "thrown"
	}
	return fmt.Sprintf("damage(%d)", uint8(d))
}

// MoveFlags packs the movement state bits of a sample.
type MoveFlags uint8

const (
	FlagGrounded MoveFlags = 1 << iota
	FlagCrouching
	FlagSprinting

	flagsAll = FlagGrounded | FlagCrouching | FlagSprinting
)

func (f MoveFlags) Grounded() bool  { return f&FlagGrounded != 0 }
func (f MoveFlags) Crouching() bool { return f&FlagCrouching != 0 }
func (f MoveFlags) Sprinting() bool { return f&FlagSprinting != 0 }

// Message is one decoded frame payload. Every concrete message type in this
// package implements it; the set is closed.
type Message interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Type() Type
}

// Encode serializes a message into a single framed byte slice suitable for
// both channels.
func Encode(msg Message) ([]byte, error) {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not marshal %s payload: %w", msg.Type(), err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%s payload too large (%d bytes)", msg.Type(), len(payload))
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, byte(msg.Type()))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...), nil
}

// Decode interprets one whole frame, typically a datagram. The buffer must
// hold exactly one frame.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return nil, ErrMalformedPacket
	}
	size := binary.LittleEndian.Uint32(data[1:HeaderSize])
	if size > MaxPayloadSize || int(size) != len(data)-HeaderSize {
		return nil, ErrMalformedPacket
	}
	return decodePayload(Type(data[0]), data[HeaderSize:])
}

// ReadMessage frames the next message out of a byte stream. io.EOF before
// any header byte means the peer went away cleanly; the caller treats it
// as an implicit disconnect.
func ReadMessage(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[1:])
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload length %d", ErrMalformedPacket, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("could not read %s payload: %w", Type(header[0]), err)
	}
	return decodePayload(Type(header[0]), payload)
}

func decodePayload(t Type, payload []byte) (Message, error) {
	msg := newMessage(t)
	if msg == nil {
		return nil, fmt.Errorf("%w: unknown type 0x%02x", ErrMalformedPacket, uint8(t))
	}
	if err := msg.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("could not unmarshal %s: %w", t, err)
	}
	return msg, nil
}

func newMessage(t Type) Message {
	switch t {
	case TypeConnectionRequest:
		return &ConnectionRequest{}
	case TypeConnectionAccept:
		return &ConnectionAccept{}
	case TypeServerFull:
		return &ServerFull{}
	case TypeClientReady:
		return &ClientReady{}
	case TypeHeartbeat:
		return &Heartbeat{}
	case TypeDisconnect:
		return &Disconnect{}
	case TypePlayerSpawn:
		return &PlayerSpawn{}
	case TypePlayerDisconnect:
		return &PlayerDisconnect{}
	case TypePlayerMovement:
		return &PlayerMovement{}
	case TypeMeleeAttack:
		return &MeleeAttack{}
	case TypeRangedAttack:
		return &RangedAttack{}
	case TypeAttackResult:
		return &AttackResult{}
	case TypeTakeDamageNotify:
		return &TakeDamageNotify{}
	case TypePlayerKilled:
		return &PlayerKilled{}
	case TypeRespawnRequest:
		return &RespawnRequest{}
	case TypeRespawnResponse:
		return &RespawnResponse{}
	case TypeWeaponEquip:
		return &WeaponEquip{}
	case TypeWeaponReload:
		return &WeaponReload{}
	case TypeWeaponStateUpdate:
		return &WeaponStateUpdate{}
	}
	return nil
}
