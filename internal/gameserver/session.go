package gameserver

import (
	"net/netip"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/transport"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/cespare/xxhash/v2"
	"github.com/phuslu/log"
)

type addrKey uint64

func makeAddrKey(addr netip.AddrPort) addrKey {
	return addrKey(xxhash.Sum64String(addr.String()))
}

// sendQueueSize bounds the per-session reliable write queue. A client that
// cannot drain it is disconnected rather than allowed to stall the tick.
const sendQueueSize = 64

// session is one connected client. The socket loops only touch serial,
// stream and sendCh; every other field belongs to the tick goroutine.
type session struct {
	serial uint64
	stream *transport.Stream
	sendCh chan []byte

	id     uint32
	name   string
	state  game.SessionState
	entity *game.Entity

	udpKey  addrKey
	udpAddr netip.AddrPort

	openedAt time.Time
	lastSeen time.Time

	arsenal  map[protocol.WeaponID]*weapons.State
	equipped protocol.WeaponID

	// shotLog holds recent attack attempt times for the rolling
	// macro cap; respawnAt is zero unless the entity is dead.
	shotLog    []time.Time
	strikes    int
	respawnAt  time.Time
	echoTimer  int
	slowWriter bool
}

func newSession(serial uint64, stream *transport.Stream) *session {
	now := time.Now()
	return &session{
		serial:   serial,
		stream:   stream,
		sendCh:   make(chan []byte, sendQueueSize),
		state:    game.StateHandshaking,
		openedAt: now,
		lastSeen: now,
	}
}

// runWrites drains the reliable send queue. The tick goroutine is the only
// sender and the only closer; a write failure closes the socket, which ends
// the read loop and with it the session.
func (sess *session) runWrites(logger *log.Logger) {
	for frame := range sess.sendCh {
		if err := sess.stream.WriteEncoded(frame); err != nil {
			logger.Warn().Uint64("serial", sess.serial).Msgf("write failed: %v", err)
			sess.stream.Close()
			return
		}
	}
}

// enqueue queues a frame without ever blocking the tick. Reports false when
// the client is too slow to keep its reliable stream flowing.
func (sess *session) enqueue(frame []byte) bool {
	select {
	case sess.sendCh <- frame:
		return true
	default:
		sess.slowWriter = true
		return false
	}
}

// register is the connOpened handler: the connection exists but has no
// identity until its ConnectionRequest arrives.
func (s *Server) register(sess *session, now time.Time) {
	sess.openedAt = now
	sess.lastSeen = now
	s.bySerial[sess.serial] = sess
	s.publishCount()
	s.logger.Debug().
		Uint64("serial", sess.serial).
		Str("addr", sess.stream.RemoteAddr().String()).
		Msg("connection opened")
}

// deregister removes a session everywhere, announces the departure and
// releases its socket and writer.
func (s *Server) deregister(sess *session, reason string) {
	if _, open := s.bySerial[sess.serial]; !open {
		return
	}
	delete(s.bySerial, sess.serial)
	if sess.udpKey != 0 {
		delete(s.byAddr, sess.udpKey)
	}

	hadIdentity := sess.id != 0
	if hadIdentity {
		delete(s.byID, sess.id)
		delete(s.dirty, sess.id)
	}
	sess.state = game.StateDisconnected
	s.publishCount()

	close(sess.sendCh)
	sess.stream.Close()

	s.logger.Info().
		Uint64("serial", sess.serial).
		Uint32("client", sess.id).
		Str("reason", reason).
		Msg("session closed")

	if hadIdentity {
		s.broadcastReliable(&protocol.PlayerDisconnect{ClientID: sess.id}, sess.id)
	}
}

func (s *Server) publishCount() {
	s.sessionCount.Store(int32(len(s.bySerial)))
}

// strike records a protocol violation. Under the kick policy the session is
// dropped once it reaches the limit; observe only keeps the tally.
func (s *Server) strike(sess *session, reason string) {
	sess.strikes++
	s.logger.Warn().
		Uint32("client", sess.id).
		Int("strikes", sess.strikes).
		Str("violation", reason).
		Msg("protocol violation")
	if s.opts.AnticheatPolicy == PolicyKick && sess.strikes >= s.opts.StrikeLimit {
		s.deregister(sess, "strike limit reached")
	}
}
