package gameclient

import (
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
)

// Inbound handling applies each message to client state first and emits the
// event second, so a consumer reacting to an event always observes the
// state the event describes.

func (c *Client) handleReliable(msg protocol.Message) {
	c.touch()

	switch msg := msg.(type) {
	case *protocol.ConnectionAccept:
		c.applyAccept(msg)
	case *protocol.ServerFull:
		select {
		case c.acceptCh <- ErrServerFull:
		default:
		}
	case *protocol.Heartbeat:
		// Receiving it was the point.
	case *protocol.PlayerSpawn:
		c.applySpawn(msg)
		c.emit(SpawnEvent{PlayerSpawn: *msg})
	case *protocol.PlayerDisconnect:
		c.applyDepart(msg)
		c.emit(DepartEvent{PlayerDisconnect: *msg})
	case *protocol.AttackResult:
		c.applyAttackResult(msg)
		c.emit(AttackEvent{AttackResult: *msg})
	case *protocol.TakeDamageNotify:
		c.applyDamage(msg)
		c.emit(DamageEvent{TakeDamageNotify: *msg})
	case *protocol.PlayerKilled:
		c.applyKilled(msg)
		c.emit(KillEvent{PlayerKilled: *msg})
	case *protocol.RespawnResponse:
		c.applyRespawn(msg)
		c.emit(RespawnEvent{RespawnResponse: *msg})
	case *protocol.WeaponStateUpdate:
		c.applyWeaponState(msg)
		c.emit(WeaponEvent{WeaponStateUpdate: *msg})
	default:
		c.logger.Debug().Str("type", msg.Type().String()).Msg("ignoring unexpected message")
	}
}

// handleDatagram applies movement replication. Nothing here surfaces as an
// event; the game loop reads the smoothed results through the accessors.
func (c *Client) handleDatagram(msg protocol.Message) {
	c.touch()

	move, ok := msg.(*protocol.PlayerMovement)
	if !ok {
		c.logger.Debug().Str("type", msg.Type().String()).Msg("dropping unexpected datagram")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if move.ClientID == c.id {
		c.pred.reconcile(game.SampleFromMessage(move))
		return
	}
	if r, ok := c.remotes[move.ClientID]; ok {
		r.apply(game.SampleFromMessage(move))
	}
}

// touch refreshes the liveness clock; any traffic proves the server is
// there.
func (c *Client) touch() {
	c.mu.Lock()
	c.lastServerSeen = time.Now()
	c.mu.Unlock()
}

func (c *Client) applyAccept(msg *protocol.ConnectionAccept) {
	c.mu.Lock()
	if c.state != game.StateHandshaking {
		c.mu.Unlock()
		c.logger.Warn().Uint32("client", msg.ClientID).Msg("ignoring unexpected connection accept")
		return
	}
	c.id = msg.ClientID
	c.state = game.StateSpawning
	c.pred.teleport(msg.SpawnPosition)
	c.health = game.MaxHealth
	c.alive = true
	c.resetArsenal()
	c.mu.Unlock()

	select {
	case c.acceptCh <- nil:
	default:
	}
}

func (c *Client) applySpawn(msg *protocol.PlayerSpawn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.ClientID == c.id {
		return
	}
	if r, ok := c.remotes[msg.ClientID]; ok {
		// A known remote spawning again is a respawn.
		r.alive = true
		r.teleport(msg.Position)
		return
	}
	c.remotes[msg.ClientID] = newRemote(msg.ClientID, msg.Name, msg.Position)
}

func (c *Client) applyDepart(msg *protocol.PlayerDisconnect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.remotes, msg.ClientID)
}

// applyAttackResult corrects the own ammo shadow. Results are state sets,
// so re-applying a duplicate is harmless.
func (c *Client) applyAttackResult(msg *protocol.AttackResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.AttackerID != c.id || msg.RemainingAmmo < 0 {
		return
	}
	if state, ok := c.arsenal[msg.WeaponID]; ok {
		state.Magazine = uint16(msg.RemainingAmmo)
	}
}

func (c *Client) applyDamage(msg *protocol.TakeDamageNotify) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.VictimID != c.id {
		return
	}
	c.health -= msg.Damage
	if c.health < 0 {
		c.health = 0
	}
}

func (c *Client) applyKilled(msg *protocol.PlayerKilled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.VictimID == c.id {
		c.alive = false
		c.health = 0
		if held, ok := c.arsenal[c.equipped]; ok {
			held.CancelReload()
		}
		return
	}
	if r, ok := c.remotes[msg.VictimID]; ok {
		r.alive = false
	}
}

func (c *Client) applyRespawn(msg *protocol.RespawnResponse) {
	if !msg.Success {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Matches the server-side sequence bump so the next send is not
	// mistaken for a pre-death sample.
	c.pred.sample.Sequence++
	c.pred.teleport(msg.SpawnPosition)
	c.alive = true
	c.health = game.MaxHealth
	c.resetArsenal()
	c.gate.force = true
}

func (c *Client) applyWeaponState(msg *protocol.WeaponStateUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.arsenal[msg.WeaponID]
	if !ok {
		def, known := c.catalog.Lookup(msg.WeaponID)
		if !known {
			c.logger.Warn().Int("weapon", int(msg.WeaponID)).Msg("state update for unknown weapon")
			return
		}
		state = weapons.NewState(def)
		c.arsenal[msg.WeaponID] = state
	}
	state.Update(msg)
	// The server only reports on the weapon in hand.
	c.equipped = msg.WeaponID
}
