package gameserver

import (
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
)

const maxNameRunes = 24

// startingSpears seeds a fresh session's ledger so the default throwable is
// usable out of the box.
const startingSpears = 3

// routeReliable handles one frame off a session's reliable channel. The
// caller already refreshed lastSeen.
func (s *Server) routeReliable(sess *session, msg protocol.Message, now time.Time) {
	s.logger.Debug().
		Uint32("client", sess.id).
		Str("type", msg.Type().String()).
		Msg("recv")

	switch msg := msg.(type) {
	case *protocol.ConnectionRequest:
		s.handleConnectionRequest(sess, msg, now)
	case *protocol.ClientReady:
		s.handleClientReady(sess, now)
	case *protocol.Heartbeat:
		// Echoed so an otherwise idle client can tell the server is alive.
		s.unicast(sess, &protocol.Heartbeat{})
	case *protocol.Disconnect:
		s.deregister(sess, "client requested disconnect")
	case *protocol.RespawnRequest:
		s.handleRespawnRequest(sess, now)
	case *protocol.WeaponEquip:
		s.handleWeaponEquip(sess, msg, now)
	case *protocol.WeaponReload:
		s.handleWeaponReload(sess, msg, now)
	case *protocol.MeleeAttack:
		s.handleMeleeAttack(sess, msg, now)
	case *protocol.RangedAttack:
		s.handleRangedAttack(sess, msg, now)
	case *protocol.PlayerMovement:
		// Movement normally rides the unreliable channel; the sample
		// itself is channel-agnostic.
		s.handleMovement(sess, msg)
	default:
		s.strike(sess, "unexpected message "+msg.Type().String())
	}
}

// routeDatagram attributes a datagram to a session via the address index
// and handles it. Unknown addresses can only introduce themselves with a
// movement sample naming an endpoint-less session.
func (s *Server) routeDatagram(msg protocol.Message, sender netip.AddrPort, now time.Time) {
	key := makeAddrKey(sender)
	sess, bound := s.byAddr[key]

	if !bound {
		move, ok := msg.(*protocol.PlayerMovement)
		if !ok {
			s.logger.Debug().
				Str("addr", sender.String()).
				Str("type", msg.Type().String()).
				Msg("dropping datagram from unknown address")
			return
		}
		owner, ok := s.byID[move.ClientID]
		if !ok || owner.udpKey != 0 || owner.state != game.StateActive {
			s.logger.Debug().
				Str("addr", sender.String()).
				Uint32("claimed", move.ClientID).
				Msg("cannot bind movement endpoint")
			return
		}
		owner.udpKey = key
		owner.udpAddr = sender
		owner.lastSeen = now
		s.byAddr[key] = owner
		s.logger.Info().
			Uint32("client", owner.id).
			Str("addr", sender.String()).
			Msg("movement endpoint bound")
		s.handleMovement(owner, move)
		return
	}

	sess.lastSeen = now
	switch msg := msg.(type) {
	case *protocol.PlayerMovement:
		if msg.ClientID != sess.id {
			s.strike(sess, "movement claims another session's id")
			return
		}
		s.handleMovement(sess, msg)
	case *protocol.MeleeAttack:
		s.handleMeleeAttack(sess, msg, now)
	case *protocol.RangedAttack:
		s.handleRangedAttack(sess, msg, now)
	default:
		s.strike(sess, "unexpected datagram "+msg.Type().String())
	}
}

func (s *Server) handleConnectionRequest(sess *session, msg *protocol.ConnectionRequest, now time.Time) {
	if sess.id != 0 || sess.state != game.StateHandshaking {
		s.strike(sess, "duplicate connection request")
		return
	}

	// The accept loop's capacity check races a join burst; the registry
	// has the final word before an id is assigned.
	if len(s.byID) >= s.opts.MaxSessions {
		s.unicast(sess, &protocol.ServerFull{})
		s.deregister(sess, "server full")
		return
	}

	name := strings.TrimSpace(msg.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameRunes {
		s.logger.Info().
			Uint64("serial", sess.serial).
			Msgf("rejecting handshake, name length %d", n)
		s.deregister(sess, "invalid player name")
		return
	}

	id := s.nextID
	s.nextID++

	spawn := s.spawns.Next()
	sess.id = id
	sess.name = name
	sess.state = game.StateSpawning
	sess.entity = game.NewEntity(id, name, spawn)
	s.byID[id] = sess

	s.resetLoadout(sess)
	s.ledger.Grant(id, weapons.ItemSpear, startingSpears)

	s.logger.Info().
		Uint32("client", id).
		Str("name", name).
		Msg("session registered")
	s.unicast(sess, &protocol.ConnectionAccept{ClientID: id, SpawnPosition: spawn})
}

func (s *Server) handleClientReady(sess *session, now time.Time) {
	if sess.state != game.StateSpawning {
		s.strike(sess, "ready outside spawning state")
		return
	}
	sess.state = game.StateActive

	// Stream the current world to the newcomer, then announce it.
	for id, other := range s.byID {
		if id == sess.id || other.state != game.StateActive {
			continue
		}
		s.unicast(sess, &protocol.PlayerSpawn{
			ClientID: id,
			Position: other.entity.Position(),
			Name:     other.name,
		})
	}
	s.broadcastReliable(&protocol.PlayerSpawn{
		ClientID: sess.id,
		Position: sess.entity.Position(),
		Name:     sess.name,
	}, sess.id)

	s.sendWeaponState(sess, now)
	s.logger.Info().Uint32("client", sess.id).Msg("session active")
}
