package gameserver

import (
	"context"
	"errors"
	"io"
	"net/netip"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/debug"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// Commands the socket loops post to the tick goroutine. Nothing else ever
// touches tick-owned state.
type (
	connOpened struct{ sess *session }

	connClosed struct {
		serial uint64
		err    error
	}

	inbound struct {
		serial uint64
		msg    protocol.Message
	}

	datagram struct {
		msg    protocol.Message
		sender netip.AddrPort
	}
)

func (s *Server) runTick(ctx context.Context) {
	ticker := time.NewTicker(game.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case cmd := <-s.commands:
			s.dispatch(cmd, time.Now())
		case now := <-ticker.C:
			s.step(now)
		}
	}
}

func (s *Server) dispatch(cmd any, now time.Time) {
	switch cmd := cmd.(type) {
	case connOpened:
		s.register(cmd.sess, now)
	case connClosed:
		sess, ok := s.bySerial[cmd.serial]
		if !ok {
			// Deregistration closed the socket first; the read loop's
			// trailing error is expected.
			return
		}
		reason := "connection lost"
		if errors.Is(cmd.err, io.EOF) {
			reason = "peer closed connection"
		}
		s.deregister(sess, reason)
	case inbound:
		sess, ok := s.bySerial[cmd.serial]
		if !ok {
			return
		}
		sess.lastSeen = now
		s.routeReliable(sess, cmd.msg, now)
		s.sweepSlowWriters()
	case datagram:
		s.routeDatagram(cmd.msg, cmd.sender, now)
		s.sweepSlowWriters()
	default:
		debug.Assert(false, "unhandled tick command")
	}
}

// step advances everything time-driven: liveness, reload completion,
// movement flush and the low-rate authoritative self echo.
func (s *Server) step(now time.Time) {
	s.evictIdle(now)
	s.stepReloads(now)
	s.flushMovement()
	s.sweepSlowWriters()
}

func (s *Server) evictIdle(now time.Time) {
	type evict struct {
		sess   *session
		reason string
	}
	var idle []evict
	for _, sess := range s.bySerial {
		switch {
		case sess.id == 0 && now.Sub(sess.openedAt) > game.HandshakeTimeout:
			idle = append(idle, evict{sess, "handshake timeout"})
		case now.Sub(sess.lastSeen) > game.LivenessTimeout:
			idle = append(idle, evict{sess, "liveness timeout"})
		}
	}
	for _, e := range idle {
		s.deregister(e.sess, e.reason)
	}
}

// shutdown tears down every remaining session. Runs once, when the tick
// goroutine observes cancellation.
func (s *Server) shutdown() {
	sessions := make([]*session, 0, len(s.bySerial))
	for _, sess := range s.bySerial {
		sessions = append(sessions, sess)
	}
	for _, sess := range sessions {
		s.deregister(sess, "server shutting down")
	}
}
