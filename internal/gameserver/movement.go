package gameserver

import (
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// handleMovement adopts a client sample as the session's authoritative
// transform. Samples are self-reported; combat never trusts them beyond
// the entity position they produce here.
func (s *Server) handleMovement(sess *session, msg *protocol.PlayerMovement) {
	if sess.state != game.StateActive || !sess.entity.Alive {
		return
	}
	// Datagrams reorder; an older sequence is yesterday's news.
	if msg.Sequence <= sess.entity.Sample.Sequence {
		return
	}
	sess.entity.Sample = game.SampleFromMessage(msg)
	s.dirty[sess.id] = struct{}{}
}

// flushMovement fans the tick's dirty samples out over the unreliable
// channel. Every sample is encoded once and written to every other bound
// session; the mover itself only hears its own echo at the slow cadence
// so reconciliation drift cannot accumulate unnoticed.
func (s *Server) flushMovement() {
	for id := range s.dirty {
		sess, ok := s.byID[id]
		if !ok {
			continue
		}
		frame, err := protocol.Encode(sess.entity.Sample.Message(id))
		if err != nil {
			s.logger.Error().Err(err).Uint32("client", id).Msg("encoding movement")
			continue
		}
		for otherID, other := range s.byID {
			if otherID == id || other.state != game.StateActive {
				continue
			}
			s.sendDatagram(other, frame)
		}
		delete(s.dirty, id)
	}

	for _, sess := range s.byID {
		if sess.state != game.StateActive || sess.udpKey == 0 {
			continue
		}
		sess.echoTimer++
		if sess.echoTimer < game.SelfEchoEveryTicks {
			continue
		}
		s.echoSelf(sess)
	}
}

// echoSelf sends a session its own authoritative sample and resets the
// echo countdown. Called on the slow cadence and immediately after any
// server-side teleport such as a respawn.
func (s *Server) echoSelf(sess *session) {
	sess.echoTimer = 0
	if sess.udpKey == 0 {
		return
	}
	frame, err := protocol.Encode(sess.entity.Sample.Message(sess.id))
	if err != nil {
		s.logger.Error().Err(err).Uint32("client", sess.id).Msg("encoding self echo")
		return
	}
	s.sendDatagram(sess, frame)
}
