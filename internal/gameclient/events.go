package gameclient

import (
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// Event is a server-driven state change surfaced to the embedding game
// loop. The client applies every event to its own state before delivering
// it, so consumers treat events as notifications, never as commands. The
// set is closed, one event per message category.
type Event interface {
	event()
}

// SpawnEvent announces an entity entering the world: the initial world
// snapshot, later joins and respawns of other players.
type SpawnEvent struct {
	protocol.PlayerSpawn
}

// DepartEvent announces another player leaving.
type DepartEvent struct {
	protocol.PlayerDisconnect
}

// AttackEvent carries an attack outcome: the client's own feedback
// (success or reject) and successful attacks broadcast for everyone else's
// tracers and hit markers.
type AttackEvent struct {
	protocol.AttackResult
}

// DamageEvent drives victim-side effects; it arrives for every damaged
// entity, not only the local player.
type DamageEvent struct {
	protocol.TakeDamageNotify
}

// KillEvent feeds the kill feed. A KillEvent naming the local player as
// victim means the client is dead until a respawn is granted.
type KillEvent struct {
	protocol.PlayerKilled
}

// RespawnEvent answers RequestRespawn either way.
type RespawnEvent struct {
	protocol.RespawnResponse
}

// WeaponEvent is the authoritative correction of the local ammo shadow.
type WeaponEvent struct {
	protocol.WeaponStateUpdate
}

// DisconnectedEvent is terminal: the session is gone and the event channel
// closes right after it.
type DisconnectedEvent struct {
	Reason string
}

func (SpawnEvent) event()        {}
func (DepartEvent) event()       {}
func (AttackEvent) event()       {}
func (DamageEvent) event()       {}
func (KillEvent) event()         {}
func (RespawnEvent) event()      {}
func (WeaponEvent) event()       {}
func (DisconnectedEvent) event() {}
