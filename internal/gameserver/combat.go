package gameserver

import (
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/debug"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/go-gl/mathgl/mgl32"
)

// Attack handling never trusts the client's claim. The claim is sanity
// checked, then the shot is re-simulated against the server's own world
// state; only the re-simulation result lands. Spoofable fields failing a
// sanity check are dropped silently so a doctored client cannot probe for
// the exact tolerances.

func (s *Server) handleRangedAttack(sess *session, msg *protocol.RangedAttack, now time.Time) {
	if sess.state != game.StateActive || !sess.entity.Alive {
		// A death notice races the client's last trigger pull.
		return
	}
	def, state, ok := s.attackPrereqs(sess, msg.WeaponID, now)
	if !ok {
		return
	}
	if def.Class == weapons.ClassMelee {
		s.strike(sess, "melee weapon in ranged attack")
		return
	}
	if fireInterval := def.MinFireInterval(); !state.LastFire.IsZero() && now.Sub(state.LastFire) < fireInterval {
		s.rejectAttack(sess, def, state, msg.TargetID, "firing too fast")
		return
	}

	if mgl32.Abs(msg.Direction.Len()-1) > game.DirectionTolerance {
		s.strike(sess, "attack direction not unit length")
		return
	}
	if msg.Origin.Sub(sess.entity.Eye()).Len() > game.OriginTolerance {
		s.strike(sess, "attack origin too far from player")
		return
	}
	if msg.Distance < 0 || msg.Distance > def.Range {
		s.strike(sess, "claimed hit beyond weapon range")
		return
	}

	switch def.Class {
	case weapons.ClassRanged:
		if state.Reloading {
			s.rejectAttack(sess, def, state, msg.TargetID, "reloading")
			return
		}
		if state.Magazine == 0 {
			s.rejectAttack(sess, def, state, msg.TargetID, "out of ammo")
			return
		}
		state.Magazine--
	case weapons.ClassThrowable:
		if !s.ledger.Consume(sess.id, def.Throwable.ItemID, 1) {
			s.rejectAttack(sess, def, state, msg.TargetID, "nothing to throw")
			return
		}
	}
	state.LastFire = now

	// The claim stops here. The shot starts at the authoritative eye, not
	// the reported origin, and the ray decides target, hitbox and distance.
	hit, found := game.Raycast(s.entities(), sess.entity.Eye(), msg.Direction, def.Range, sess.id)
	if !found {
		s.rejectAttack(sess, def, state, msg.TargetID, "missed")
		return
	}
	victim, ok := s.byID[hit.EntityID]
	debug.Assert(ok, "raycast hit an unregistered entity")

	s.applyHit(sess, victim, def, state, hit.Hitbox, msg.Direction, hit.Distance, now)
}

func (s *Server) handleMeleeAttack(sess *session, msg *protocol.MeleeAttack, now time.Time) {
	if sess.state != game.StateActive || !sess.entity.Alive {
		return
	}
	def, state, ok := s.attackPrereqs(sess, msg.WeaponID, now)
	if !ok {
		return
	}
	if def.Class != weapons.ClassMelee {
		s.strike(sess, "ranged weapon in melee attack")
		return
	}
	if fireInterval := def.MinFireInterval(); !state.LastFire.IsZero() && now.Sub(state.LastFire) < fireInterval {
		s.rejectAttack(sess, def, state, msg.TargetID, "firing too fast")
		return
	}
	if mgl32.Abs(msg.Direction.Len()-1) > game.DirectionTolerance {
		s.strike(sess, "attack direction not unit length")
		return
	}
	state.LastFire = now

	// The swing happened; whether it lands depends on the authoritative
	// reach and facing, not the client's hit report.
	victim, ok := s.byID[msg.TargetID]
	if !ok || victim.state != game.StateActive || victim.id == sess.id {
		s.rejectAttack(sess, def, state, msg.TargetID, "no such target")
		return
	}
	if !victim.entity.Alive {
		s.rejectAttack(sess, def, state, msg.TargetID, "target already dead")
		return
	}
	distance := victim.entity.Position().Sub(sess.entity.Position()).Len()
	if distance > def.Range*game.MeleeReachSlack {
		s.rejectAttack(sess, def, state, msg.TargetID, "out of reach")
		return
	}
	if toward := victim.entity.Eye().Sub(sess.entity.Eye()); toward.Len() > game.PlayerRadius &&
		toward.Normalize().Dot(msg.Direction) < game.MeleeFacingMin {
		s.rejectAttack(sess, def, state, msg.TargetID, "not facing target")
		return
	}

	// Melee hit zones are not resolvable from a ray, so the claimed hitbox
	// stands. Multipliers keep it honest enough: reach already proved
	// proximity and the wire layer rejects unknown zones.
	s.applyHit(sess, victim, def, state, msg.Hitbox, msg.Direction, distance, now)
}

// attackPrereqs runs the checks shared by every attack: the weapon must be
// in the catalog, in hand, and under the macro cap. Violations strike.
func (s *Server) attackPrereqs(sess *session, weaponID protocol.WeaponID, now time.Time) (*weapons.Definition, *weapons.State, bool) {
	def, ok := s.catalog.Lookup(weaponID)
	if !ok {
		s.strike(sess, "attack with unknown weapon")
		return nil, nil, false
	}
	if weaponID != sess.equipped {
		s.strike(sess, "attack with unequipped weapon")
		return nil, nil, false
	}
	state, ok := sess.arsenal[weaponID]
	debug.Assert(ok, "equipped weapon missing from arsenal")

	if !sess.noteAttackAttempt(now) {
		s.strike(sess, "attack rate beyond the macro cap")
		return nil, nil, false
	}
	return def, state, true
}

// noteAttackAttempt records an attack attempt and reports whether the
// session stays under the hard rolling-second cap. Attempts count whether
// or not they pass later checks, so a macro spamming the trigger cannot
// hide behind cooldown rejections.
func (sess *session) noteAttackAttempt(now time.Time) bool {
	cutoff := now.Add(-time.Second)
	kept := sess.shotLog[:0]
	for _, at := range sess.shotLog {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	sess.shotLog = append(kept, now)
	return len(sess.shotLog) <= game.MacroShotCap
}

// applyHit lands a validated attack: authoritative damage, result fan-out,
// and kill bookkeeping when health runs out.
func (s *Server) applyHit(attacker, victim *session, def *weapons.Definition, state *weapons.State, hitbox protocol.Hitbox, direction mgl32.Vec3, distance float32, now time.Time) {
	damage := def.BaseDamage * game.HitboxMultiplier(hitbox) * def.Falloff(distance)
	killed := victim.entity.ApplyDamage(damage)

	s.broadcastReliable(&protocol.AttackResult{
		AttackerID:    attacker.id,
		TargetID:      victim.id,
		WeaponID:      def.ID,
		Success:       true,
		DamageDealt:   damage,
		WasKilled:     killed,
		Hitbox:        hitbox,
		Distance:      distance,
		RemainingAmmo: remainingAmmo(def, state),
	}, 0)
	s.broadcastReliable(&protocol.TakeDamageNotify{
		VictimID:   victim.id,
		AttackerID: attacker.id,
		Damage:     damage,
		DamageType: damageTypeFor(def.Class),
		Hitbox:     hitbox,
		Direction:  direction,
	}, 0)

	if !killed {
		return
	}

	victim.respawnAt = now.Add(game.RespawnDelay)
	if held, ok := victim.arsenal[victim.equipped]; ok {
		held.CancelReload()
	}
	s.ledger.Grant(attacker.id, ItemScrap, killBounty)
	s.broadcastReliable(&protocol.PlayerKilled{
		VictimID:   victim.id,
		KillerID:   attacker.id,
		WeaponID:   def.ID,
		Hitbox:     hitbox,
		Distance:   distance,
		KillerName: attacker.name,
		WeaponUsed: def.Name,
	}, 0)
	s.logger.Info().
		Uint32("victim", victim.id).
		Uint32("killer", attacker.id).
		Str("weapon", def.Name).
		Msg("player killed")
}

// rejectAttack tells only the shooter why the attack did not land. The
// world state is whatever it already is; rejected shots may still have
// spent a round.
func (s *Server) rejectAttack(sess *session, def *weapons.Definition, state *weapons.State, targetID uint32, reason string) {
	s.logger.Debug().
		Uint32("client", sess.id).
		Str("weapon", def.Name).
		Str("reason", reason).
		Msg("attack rejected")
	s.unicast(sess, &protocol.AttackResult{
		AttackerID:    sess.id,
		TargetID:      targetID,
		WeaponID:      def.ID,
		RemainingAmmo: remainingAmmo(def, state),
		Message:       reason,
	})
}

// entities snapshots the joined world for a raycast.
func (s *Server) entities() []*game.Entity {
	out := make([]*game.Entity, 0, len(s.byID))
	for _, sess := range s.byID {
		if sess.state != game.StateActive {
			continue
		}
		out = append(out, sess.entity)
	}
	return out
}

func remainingAmmo(def *weapons.Definition, state *weapons.State) int16 {
	if def.Class != weapons.ClassRanged {
		return -1
	}
	return int16(state.Magazine)
}

func damageTypeFor(class weapons.Class) protocol.DamageType {
	switch class {
	case weapons.ClassRanged:
		return protocol.DamageBullet
	case weapons.ClassThrowable:
		return protocol.DamageThrown
	default:
		return protocol.DamageMelee
	}
}
