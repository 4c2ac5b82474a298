package protocol

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Field order in each struct is wire order: fixed-width fields first,
// length-prefixed fields last.

// ConnectionRequest opens the handshake. Name is validated server-side, not
// by the codec.
type ConnectionRequest struct {
	Name string
}

var _ Message = (*ConnectionRequest)(nil)

func (*ConnectionRequest) Type() Type { return TypeConnectionRequest }

func (m *ConnectionRequest) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.str(m.Name)
	return w.buf, nil
}

func (m *ConnectionRequest) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.Name = r.str()
	return r.done()
}

// ConnectionAccept carries the server-assigned identity and spawn point.
type ConnectionAccept struct {
	ClientID      uint32
	SpawnPosition mgl32.Vec3
}

var _ Message = (*ConnectionAccept)(nil)

func (*ConnectionAccept) Type() Type { return TypeConnectionAccept }

func (m *ConnectionAccept) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.ClientID)
	w.vec3(m.SpawnPosition)
	return w.buf, nil
}

func (m *ConnectionAccept) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.ClientID = r.u32()
	m.SpawnPosition = r.vec3()
	return r.done()
}

// ServerFull is terminal: the server writes it and closes the connection
// without registering a session.
type ServerFull struct{}

var _ Message = (*ServerFull)(nil)

func (*ServerFull) Type() Type                        { return TypeServerFull }
func (*ServerFull) MarshalBinary() ([]byte, error)    { return nil, nil }
func (*ServerFull) UnmarshalBinary(data []byte) error { return emptyPayload(data) }

// ClientReady tells the server the client finished loading and entity
// streaming may begin.
type ClientReady struct{}

var _ Message = (*ClientReady)(nil)

func (*ClientReady) Type() Type                        { return TypeClientReady }
func (*ClientReady) MarshalBinary() ([]byte, error)    { return nil, nil }
func (*ClientReady) UnmarshalBinary(data []byte) error { return emptyPayload(data) }

// Heartbeat keeps the reliable channel alive; the server echoes it back.
type Heartbeat struct{}

var _ Message = (*Heartbeat)(nil)

func (*Heartbeat) Type() Type                        { return TypeHeartbeat }
func (*Heartbeat) MarshalBinary() ([]byte, error)    { return nil, nil }
func (*Heartbeat) UnmarshalBinary(data []byte) error { return emptyPayload(data) }

// Disconnect is the explicit leave notice; a read failure carries the same
// meaning implicitly.
type Disconnect struct{}

var _ Message = (*Disconnect)(nil)

func (*Disconnect) Type() Type                        { return TypeDisconnect }
func (*Disconnect) MarshalBinary() ([]byte, error)    { return nil, nil }
func (*Disconnect) UnmarshalBinary(data []byte) error { return emptyPayload(data) }

// PlayerSpawn announces an entity entering the world: existing players to a
// newly ready client, new arrivals and respawns to everyone else.
type PlayerSpawn struct {
	ClientID uint32
	Position mgl32.Vec3
	Name     string
}

var _ Message = (*PlayerSpawn)(nil)

func (*PlayerSpawn) Type() Type { return TypePlayerSpawn }

func (m *PlayerSpawn) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.ClientID)
	w.vec3(m.Position)
	w.str(m.Name)
	return w.buf, nil
}

func (m *PlayerSpawn) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.ClientID = r.u32()
	m.Position = r.vec3()
	m.Name = r.str()
	return r.done()
}

// PlayerDisconnect is the departure notice broadcast to remaining sessions.
type PlayerDisconnect struct {
	ClientID uint32
}

var _ Message = (*PlayerDisconnect)(nil)

func (*PlayerDisconnect) Type() Type { return TypePlayerDisconnect }

func (m *PlayerDisconnect) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.ClientID)
	return w.buf, nil
}

func (m *PlayerDisconnect) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.ClientID = r.u32()
	return r.done()
}

// PlayerMovement is one movement sample. Clients report their own predicted
// state; the server re-broadcasts accepted samples to everyone else and
// echoes a client its own authoritative state at a low rate. Sequence grows
// monotonically per entity; receivers drop anything not newer than the last
// sample seen.
type PlayerMovement struct {
	ClientID uint32
	Sequence uint32
	Position mgl32.Vec3
	Yaw      float32
	Velocity mgl32.Vec3
	Flags    MoveFlags
}

var _ Message = (*PlayerMovement)(nil)

func (*PlayerMovement) Type() Type { return TypePlayerMovement }

func (m *PlayerMovement) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.ClientID)
	w.u32(m.Sequence)
	w.vec3(m.Position)
	w.f32(m.Yaw)
	w.vec3(m.Velocity)
	w.u8(uint8(m.Flags))
	return w.buf, nil
}

func (m *PlayerMovement) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.ClientID = r.u32()
	m.Sequence = r.u32()
	m.Position = r.vec3()
	m.Yaw = r.f32()
	m.Velocity = r.vec3()
	m.Flags = MoveFlags(r.u8())
	if m.Flags&^flagsAll != 0 {
		return ErrMalformedPacket
	}
	return r.done()
}

// MeleeAttack reports a swing. The claimed target and hitbox are advisory;
// the server re-simulates from its own view of the attacker.
type MeleeAttack struct {
	TargetID  uint32
	WeaponID  WeaponID
	Hitbox    Hitbox
	Direction mgl32.Vec3
}

var _ Message = (*MeleeAttack)(nil)

func (*MeleeAttack) Type() Type { return TypeMeleeAttack }

func (m *MeleeAttack) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.TargetID)
	w.u8(uint8(m.WeaponID))
	w.u8(uint8(m.Hitbox))
	w.vec3(m.Direction)
	return w.buf, nil
}

func (m *MeleeAttack) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.TargetID = r.u32()
	m.WeaponID = WeaponID(r.u8())
	m.Hitbox = Hitbox(r.u8())
	m.Direction = r.vec3()
	if m.Hitbox >= hitboxMax {
		return ErrMalformedPacket
	}
	return r.done()
}

// RangedAttack reports a shot. Origin is the claimed muzzle position the
// server checks against its authoritative attacker position before
// re-simulating the ray.
type RangedAttack struct {
	TargetID  uint32
	WeaponID  WeaponID
	Hitbox    Hitbox
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
	Distance  float32
}

var _ Message = (*RangedAttack)(nil)

func (*RangedAttack) Type() Type { return TypeRangedAttack }

func (m *RangedAttack) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.TargetID)
	w.u8(uint8(m.WeaponID))
	w.u8(uint8(m.Hitbox))
	w.vec3(m.Origin)
	w.vec3(m.Direction)
	w.f32(m.Distance)
	return w.buf, nil
}

func (m *RangedAttack) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.TargetID = r.u32()
	m.WeaponID = WeaponID(r.u8())
	m.Hitbox = Hitbox(r.u8())
	m.Origin = r.vec3()
	m.Direction = r.vec3()
	m.Distance = r.f32()
	if m.Hitbox >= hitboxMax {
		return ErrMalformedPacket
	}
	return r.done()
}

// AttackResult closes the loop on an attack attempt. Successful results are
// broadcast to every active session; rejects go to the shooter alone.
// RemainingAmmo is -1 when the weapon has no magazine. Applying the same
// result twice is harmless: every field is a state set, not an increment.
type AttackResult struct {
	AttackerID    uint32
	TargetID      uint32
	WeaponID      WeaponID
	Success       bool
	DamageDealt   float32
	WasKilled     bool
	Hitbox        Hitbox
	Distance      float32
	RemainingAmmo int16
	Message       string
}

var _ Message = (*AttackResult)(nil)

func (*AttackResult) Type() Type { return TypeAttackResult }

func (m *AttackResult) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.AttackerID)
	w.u32(m.TargetID)
	w.u8(uint8(m.WeaponID))
	w.flag(m.Success)
	w.f32(m.DamageDealt)
	w.flag(m.WasKilled)
	w.u8(uint8(m.Hitbox))
	w.f32(m.Distance)
	w.i16(m.RemainingAmmo)
	w.str(m.Message)
	return w.buf, nil
}

func (m *AttackResult) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.AttackerID = r.u32()
	m.TargetID = r.u32()
	m.WeaponID = WeaponID(r.u8())
	m.Success = r.flag()
	m.DamageDealt = r.f32()
	m.WasKilled = r.flag()
	m.Hitbox = Hitbox(r.u8())
	m.Distance = r.f32()
	m.RemainingAmmo = r.i16()
	m.Message = r.str()
	if m.Hitbox >= hitboxMax {
		return ErrMalformedPacket
	}
	return r.done()
}

// TakeDamageNotify drives victim-side effects (damage direction indicator,
// flinch) on every client.
type TakeDamageNotify struct {
	VictimID   uint32
	AttackerID uint32
	Damage     float32
	DamageType DamageType
	Hitbox     Hitbox
	Direction  mgl32.Vec3
}

var _ Message = (*TakeDamageNotify)(nil)

func (*TakeDamageNotify) Type() Type { return TypeTakeDamageNotify }

func (m *TakeDamageNotify) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.VictimID)
	w.u32(m.AttackerID)
	w.f32(m.Damage)
	w.u8(uint8(m.DamageType))
	w.u8(uint8(m.Hitbox))
	w.vec3(m.Direction)
	return w.buf, nil
}

func (m *TakeDamageNotify) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.VictimID = r.u32()
	m.AttackerID = r.u32()
	m.Damage = r.f32()
	m.DamageType = DamageType(r.u8())
	m.Hitbox = Hitbox(r.u8())
	m.Direction = r.vec3()
	if m.DamageType >= damageTypeMax || m.Hitbox >= hitboxMax {
		return ErrMalformedPacket
	}
	return r.done()
}

// PlayerKilled feeds the kill feed and flips the victim into the dead state
// on every client.
type PlayerKilled struct {
	VictimID   uint32
	KillerID   uint32
	WeaponID   WeaponID
	Hitbox     Hitbox
	Distance   float32
	KillerName string
	WeaponUsed string
}

var _ Message = (*PlayerKilled)(nil)

func (*PlayerKilled) Type() Type { return TypePlayerKilled }

func (m *PlayerKilled) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u32(m.VictimID)
	w.u32(m.KillerID)
	w.u8(uint8(m.WeaponID))
	w.u8(uint8(m.Hitbox))
	w.f32(m.Distance)
	w.str(m.KillerName)
	w.str(m.WeaponUsed)
	return w.buf, nil
}

func (m *PlayerKilled) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.VictimID = r.u32()
	m.KillerID = r.u32()
	m.WeaponID = WeaponID(r.u8())
	m.Hitbox = Hitbox(r.u8())
	m.Distance = r.f32()
	m.KillerName = r.str()
	m.WeaponUsed = r.str()
	if m.Hitbox >= hitboxMax {
		return ErrMalformedPacket
	}
	return r.done()
}

// RespawnRequest asks for a respawn; the server-side availability timer
// decides whether it is granted.
type RespawnRequest struct{}

var _ Message = (*RespawnRequest)(nil)

func (*RespawnRequest) Type() Type                        { return TypeRespawnRequest }
func (*RespawnRequest) MarshalBinary() ([]byte, error)    { return nil, nil }
func (*RespawnRequest) UnmarshalBinary(data []byte) error { return emptyPayload(data) }

// RespawnResponse answers a RespawnRequest either way.
type RespawnResponse struct {
	Success       bool
	SpawnPosition mgl32.Vec3
	Message       string
}

var _ Message = (*RespawnResponse)(nil)

func (*RespawnResponse) Type() Type { return TypeRespawnResponse }

func (m *RespawnResponse) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.flag(m.Success)
	w.vec3(m.SpawnPosition)
	w.str(m.Message)
	return w.buf, nil
}

func (m *RespawnResponse) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.Success = r.flag()
	m.SpawnPosition = r.vec3()
	m.Message = r.str()
	return r.done()
}

// WeaponEquip selects a weapon into a loadout slot.
type WeaponEquip struct {
	WeaponID WeaponID
	Slot     uint8
}

var _ Message = (*WeaponEquip)(nil)

func (*WeaponEquip) Type() Type { return TypeWeaponEquip }

func (m *WeaponEquip) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u8(uint8(m.WeaponID))
	w.u8(m.Slot)
	return w.buf, nil
}

func (m *WeaponEquip) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.WeaponID = WeaponID(r.u8())
	m.Slot = r.u8()
	return r.done()
}

// WeaponReload asks the server to start a reload on the given weapon.
type WeaponReload struct {
	WeaponID WeaponID
}

var _ Message = (*WeaponReload)(nil)

func (*WeaponReload) Type() Type { return TypeWeaponReload }

func (m *WeaponReload) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u8(uint8(m.WeaponID))
	return w.buf, nil
}

func (m *WeaponReload) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.WeaponID = WeaponID(r.u8())
	return r.done()
}

// WeaponStateUpdate corrects the owning client's ammo shadow. Unicast only.
type WeaponStateUpdate struct {
	WeaponID       WeaponID
	CurrentAmmo    uint16
	ReserveAmmo    uint16
	IsReloading    bool
	ReloadProgress float32
}

var _ Message = (*WeaponStateUpdate)(nil)

func (*WeaponStateUpdate) Type() Type { return TypeWeaponStateUpdate }

func (m *WeaponStateUpdate) MarshalBinary() ([]byte, error) {
	w := wireWriter{}
	w.u8(uint8(m.WeaponID))
	w.u16(m.CurrentAmmo)
	w.u16(m.ReserveAmmo)
	w.flag(m.IsReloading)
	w.f32(m.ReloadProgress)
	return w.buf, nil
}

func (m *WeaponStateUpdate) UnmarshalBinary(data []byte) error {
	r := wireReader{buf: data}
	m.WeaponID = WeaponID(r.u8())
	m.CurrentAmmo = r.u16()
	m.ReserveAmmo = r.u16()
	m.IsReloading = r.flag()
	m.ReloadProgress = r.f32()
	return r.done()
}

func emptyPayload(data []byte) error {
	if len(data) != 0 {
		return ErrMalformedPacket
	}
	return nil
}
