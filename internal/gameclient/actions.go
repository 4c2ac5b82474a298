package gameclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/go-gl/mathgl/mgl32"
)

// Step advances one frame: integrates the local prediction from input,
// eases every remote toward its target and reports the own sample when it
// is worth a datagram. Call it every frame, dead or alive; a dead client
// still watches the world move.
func (c *Client) Step(in Input, dt float32) {
	now := time.Now()

	c.mu.Lock()
	if c.state != game.StateActive {
		c.mu.Unlock()
		return
	}
	for _, r := range c.remotes {
		r.advance(dt)
	}
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.pred.integrate(in, dt)

	var out *protocol.PlayerMovement
	if c.gate.open(now, c.pred.sample) {
		c.pred.sample.Sequence++
		out = c.pred.sample.Message(c.id)
	}
	c.mu.Unlock()

	if out == nil {
		return
	}
	if err := c.endpoint.Write(out); err != nil {
		c.logger.Warn().Msgf("could not send movement: %v", err)
	}
}

// Fire pulls the trigger on the equipped ranged or throwable weapon along
// dir. The claim sent with the request comes from a raycast against the
// locally shown world; the server re-simulates and has the only say on
// what actually landed. The magazine is spent optimistically and corrected
// by the attack result.
func (c *Client) Fire(dir mgl32.Vec3) error {
	if dir.Len() == 0 {
		return errors.New("zero aim direction")
	}
	dir = dir.Normalize()
	now := time.Now()

	c.mu.Lock()
	if c.state != game.StateActive || !c.alive {
		c.mu.Unlock()
		return errors.New("cannot fire while not in the world")
	}
	def, ok := c.catalog.Lookup(c.equipped)
	if !ok {
		c.mu.Unlock()
		return errors.New("nothing equipped")
	}
	if def.Class == weapons.ClassMelee {
		c.mu.Unlock()
		return fmt.Errorf("%s needs a swing, not a trigger", def.Name)
	}
	state := c.arsenal[c.equipped]
	if !state.CanFire(def, now) {
		c.mu.Unlock()
		return fmt.Errorf("%s is not ready", def.Name)
	}
	if def.Class == weapons.ClassRanged && state.Magazine == 0 {
		c.mu.Unlock()
		return fmt.Errorf("%s is empty", def.Name)
	}

	origin := c.eye()
	msg := &protocol.RangedAttack{
		WeaponID:  def.ID,
		Origin:    origin,
		Direction: dir,
	}
	if hit, found := game.Raycast(c.remoteEntities(), origin, dir, def.Range, c.id); found {
		msg.TargetID = hit.EntityID
		msg.Hitbox = hit.Hitbox
		msg.Distance = hit.Distance
	}

	state.LastFire = now
	if def.Class == weapons.ClassRanged {
		state.Magazine--
	}
	c.mu.Unlock()

	return c.endpoint.Write(msg)
}

// Swing attacks with the equipped melee weapon along dir. The claimed
// victim comes from the same local raycast as Fire; a swing at empty air
// is still sent, the server answers it with a miss.
func (c *Client) Swing(dir mgl32.Vec3) error {
	if dir.Len() == 0 {
		return errors.New("zero aim direction")
	}
	dir = dir.Normalize()
	now := time.Now()

	c.mu.Lock()
	if c.state != game.StateActive || !c.alive {
		c.mu.Unlock()
		return errors.New("cannot swing while not in the world")
	}
	def, ok := c.catalog.Lookup(c.equipped)
	if !ok {
		c.mu.Unlock()
		return errors.New("nothing equipped")
	}
	if def.Class != weapons.ClassMelee {
		c.mu.Unlock()
		return fmt.Errorf("%s is not a melee weapon", def.Name)
	}
	state := c.arsenal[c.equipped]
	if !state.CanFire(def, now) {
		c.mu.Unlock()
		return fmt.Errorf("%s is not ready", def.Name)
	}

	msg := &protocol.MeleeAttack{
		WeaponID:  def.ID,
		Direction: dir,
	}
	if hit, found := game.Raycast(c.remoteEntities(), c.eye(), dir, def.Range, c.id); found {
		msg.TargetID = hit.EntityID
		msg.Hitbox = hit.Hitbox
	}

	state.LastFire = now
	c.mu.Unlock()

	return c.endpoint.Write(msg)
}

// Equip swaps the weapon in hand. Validated locally against the catalog
// and the owned arsenal so obvious mistakes never reach the wire; the
// authoritative swap still happens server-side.
func (c *Client) Equip(weaponID protocol.WeaponID) error {
	c.mu.Lock()
	if c.state != game.StateActive {
		c.mu.Unlock()
		return errors.New("cannot equip while not in the world")
	}
	def, ok := c.catalog.Lookup(weaponID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown weapon %d", weaponID)
	}
	if _, owned := c.arsenal[weaponID]; !owned {
		c.mu.Unlock()
		return fmt.Errorf("%s is not in the arsenal", def.Name)
	}
	if weaponID == c.equipped {
		c.mu.Unlock()
		return nil
	}
	// Swapping away abandons an in-progress reload, like the server does.
	if held, ok := c.arsenal[c.equipped]; ok {
		held.CancelReload()
	}
	c.equipped = weaponID
	c.mu.Unlock()

	return c.writeReliable(&protocol.WeaponEquip{WeaponID: weaponID, Slot: def.Slot})
}

// Reload starts a reload on the equipped weapon, optimistically locally
// and authoritatively on the server. The state update answering it
// re-syncs whatever the optimism got wrong.
func (c *Client) Reload() error {
	now := time.Now()

	c.mu.Lock()
	if c.state != game.StateActive || !c.alive {
		c.mu.Unlock()
		return errors.New("cannot reload while not in the world")
	}
	def, ok := c.catalog.Lookup(c.equipped)
	if !ok || def.Ranged == nil {
		c.mu.Unlock()
		return errors.New("nothing to reload")
	}
	weaponID := c.equipped
	c.arsenal[weaponID].StartReload(def, now)
	c.mu.Unlock()

	return c.writeReliable(&protocol.WeaponReload{WeaponID: weaponID})
}

// RequestRespawn asks to be put back into the world. The server owns the
// respawn timer; asking too early is answered with a denial, not an error.
func (c *Client) RequestRespawn() error {
	c.mu.Lock()
	if c.state != game.StateActive {
		c.mu.Unlock()
		return errors.New("cannot respawn while not in the world")
	}
	if c.alive {
		c.mu.Unlock()
		return errors.New("still alive")
	}
	c.mu.Unlock()

	return c.writeReliable(&protocol.RespawnRequest{})
}

// eye is the aim origin of the predicted self. Caller holds mu.
func (c *Client) eye() mgl32.Vec3 {
	self := game.Entity{Sample: c.pred.sample}
	return self.Eye()
}

// remoteEntities builds the hit-test world from the shown remotes. Caller
// holds mu.
func (c *Client) remoteEntities() []*game.Entity {
	out := make([]*game.Entity, 0, len(c.remotes))
	for _, r := range c.remotes {
		out = append(out, r.entity())
	}
	return out
}
