package gameserver

import (
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/debug"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// handleWeaponEquip swaps the weapon in hand. The weapon must be known,
// owned, and the claimed slot must match the catalog.
func (s *Server) handleWeaponEquip(sess *session, msg *protocol.WeaponEquip, now time.Time) {
	if sess.state != game.StateActive {
		s.strike(sess, "equip outside active state")
		return
	}
	def, ok := s.catalog.Lookup(msg.WeaponID)
	if !ok {
		s.strike(sess, "equip of unknown weapon")
		return
	}
	if msg.Slot != def.Slot {
		s.strike(sess, "equip slot does not match catalog")
		return
	}
	if _, ok := sess.arsenal[msg.WeaponID]; !ok {
		s.strike(sess, "equip of unowned weapon")
		return
	}
	if msg.WeaponID == sess.equipped {
		// Duplicate equips just re-sync the client's shadow.
		s.sendWeaponState(sess, now)
		return
	}

	// Swapping away abandons an in-progress reload.
	if held, ok := sess.arsenal[sess.equipped]; ok {
		held.CancelReload()
	}
	sess.equipped = msg.WeaponID
	s.sendWeaponState(sess, now)
}

// handleWeaponReload starts a reload on the equipped weapon. Requests that
// cannot start one (full magazine, dry reserve, melee in hand, reload already
// running) are answered with the current state so the client re-syncs.
func (s *Server) handleWeaponReload(sess *session, msg *protocol.WeaponReload, now time.Time) {
	if sess.state != game.StateActive {
		s.strike(sess, "reload outside active state")
		return
	}
	if msg.WeaponID != sess.equipped {
		s.strike(sess, "reload of unequipped weapon")
		return
	}
	def, ok := s.catalog.Lookup(sess.equipped)
	debug.Assert(ok, "equipped weapon missing from catalog")
	state, ok := sess.arsenal[sess.equipped]
	debug.Assert(ok, "equipped weapon missing from arsenal")

	state.StartReload(def, now)
	s.sendWeaponState(sess, now)
}

// stepReloads completes reloads whose timer ran out this tick. Only the
// equipped weapon can be mid-reload; swapping or dying cancels.
func (s *Server) stepReloads(now time.Time) {
	for _, sess := range s.byID {
		if sess.state != game.StateActive {
			continue
		}
		state, ok := sess.arsenal[sess.equipped]
		if !ok || !state.Reloading {
			continue
		}
		def, ok := s.catalog.Lookup(sess.equipped)
		debug.Assert(ok, "equipped weapon missing from catalog")
		if !state.ReloadDone(def, now) {
			continue
		}
		state.FinishReload(def)
		s.sendWeaponState(sess, now)
	}
}

// sendWeaponState pushes the authoritative view of the weapon in hand to
// its owner.
func (s *Server) sendWeaponState(sess *session, now time.Time) {
	state, ok := sess.arsenal[sess.equipped]
	if !ok {
		return
	}
	def, ok := s.catalog.Lookup(sess.equipped)
	if !ok {
		return
	}
	s.unicast(sess, &protocol.WeaponStateUpdate{
		WeaponID:       sess.equipped,
		CurrentAmmo:    state.Magazine,
		ReserveAmmo:    state.Reserve,
		IsReloading:    state.Reloading,
		ReloadProgress: state.ReloadProgress(def, now),
	})
}
