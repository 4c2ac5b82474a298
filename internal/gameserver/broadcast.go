package gameserver

import (
	"fmt"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/hashicorp/go-multierror"
)

// unicast queues a reliable message for one session. Encode failures are
// bugs (we built the message); queue failures mark the session slow and the
// tick sweeps it afterwards.
func (s *Server) unicast(sess *session, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error().Msgf("could not encode %s: %v", msg.Type(), err)
		return
	}
	if !sess.enqueue(frame) {
		s.logger.Warn().Uint32("client", sess.id).Msgf("send queue full, dropping %s", msg.Type())
	}
}

// broadcastReliable encodes once and queues the frame on every joined
// session, skipping skipID (0 skips nobody). Sessions still loading the
// world are left out; the ready snapshot is their single source for what
// they missed. Queue failures are collected and logged; the slow sessions
// get swept by the tick.
func (s *Server) broadcastReliable(msg protocol.Message, skipID uint32) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error().Msgf("could not encode %s: %v", msg.Type(), err)
		return
	}

	var errs error
	for id, sess := range s.byID {
		if id == skipID || sess.state != game.StateActive {
			continue
		}
		if !sess.enqueue(frame) {
			errs = multierror.Append(errs, fmt.Errorf("send queue full for client %d", id))
		}
	}
	if errs != nil {
		s.logger.Warn().Msgf("broadcast %s incomplete: %v", msg.Type(), errs)
	}
}

// sendDatagram pushes a movement frame at one session's bound endpoint.
// Loss is fine; errors here are local socket problems worth a log line.
func (s *Server) sendDatagram(sess *session, frame []byte) {
	if sess.udpKey == 0 {
		return
	}
	if err := s.endpoint.WriteEncodedTo(frame, sess.udpAddr); err != nil {
		s.logger.Warn().Uint32("client", sess.id).Msgf("could not send datagram: %v", err)
	}
}

// sweepSlowWriters disconnects sessions whose reliable queue overflowed
// during this dispatch. Runs after handlers so map iteration never sees a
// concurrent delete.
func (s *Server) sweepSlowWriters() {
	var slow []*session
	for _, sess := range s.bySerial {
		if sess.slowWriter {
			slow = append(slow, sess)
		}
	}
	for _, sess := range slow {
		s.deregister(sess, "reliable send queue overflow")
	}
}
