package gameserver

import (
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
)

// handleRespawnRequest puts a dead session back into the world once its
// server-owned timer ran out. The timer starts at the kill, never at the
// request.
func (s *Server) handleRespawnRequest(sess *session, now time.Time) {
	if sess.state != game.StateActive {
		s.strike(sess, "respawn outside active state")
		return
	}
	if sess.entity.Alive {
		s.unicast(sess, &protocol.RespawnResponse{Message: "still alive"})
		return
	}
	if now.Before(sess.respawnAt) {
		s.unicast(sess, &protocol.RespawnResponse{Message: "respawn not ready"})
		return
	}

	spawn := s.spawns.Next()
	sess.entity.Respawn(spawn)
	sess.respawnAt = time.Time{}

	// Death burns the old magazines; back to the stock arsenal. Ledger
	// items (spears, scrap) survive death.
	s.resetLoadout(sess)

	s.unicast(sess, &protocol.RespawnResponse{Success: true, SpawnPosition: spawn})
	s.broadcastReliable(&protocol.PlayerSpawn{
		ClientID: sess.id,
		Position: spawn,
		Name:     sess.name,
	}, sess.id)
	s.sendWeaponState(sess, now)
	s.echoSelf(sess)

	s.logger.Info().Uint32("client", sess.id).Msg("respawned")
}

// resetLoadout hands the session the stock arsenal with the first available
// weapon equipped.
func (s *Server) resetLoadout(sess *session) {
	sess.arsenal = make(map[protocol.WeaponID]*weapons.State)
	sess.equipped = 0
	for _, weaponID := range weapons.DefaultLoadout() {
		def, ok := s.catalog.Lookup(weaponID)
		if !ok {
			// Override catalogs may drop built-ins; the loadout shrinks.
			continue
		}
		sess.arsenal[weaponID] = weapons.NewState(def)
		if sess.equipped == 0 {
			sess.equipped = weaponID
		}
	}
}
