// Package gameserver is the authoritative session and replication layer: it
// owns the session registry, the world entities, movement intake and
// re-broadcast, the combat validator and the respawn flow. All state is
// owned by a single tick goroutine; socket loops only post commands to it.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/transport"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

// AnticheatPolicy decides what accumulating strikes leads to.
type AnticheatPolicy string

const (
	// PolicyObserve logs and counts violations without acting on them.
	PolicyObserve AnticheatPolicy = "observe"
	// PolicyKick disconnects a session once it reaches the strike limit.
	PolicyKick AnticheatPolicy = "kick"
)

type Options struct {
	// Addr is the TCP listen address. UDPAddr defaults to the same
	// host:port once the listener resolved it (handy with ":0").
	Addr    string
	UDPAddr string

	MaxSessions int

	AnticheatPolicy AnticheatPolicy
	StrikeLimit     int

	// Catalog defaults to the built-in weapon set; Ledger to an in-memory
	// one. A real inventory service plugs in through Ledger.
	Catalog *weapons.Catalog
	Ledger  Ledger

	Logger *log.Logger
}

type Server struct {
	opts Options

	listener net.Listener
	endpoint *transport.Endpoint

	logger *log.Logger

	commands chan any

	// sessionCount mirrors len(bySerial) for the accept loop's capacity
	// check; the tick goroutine publishes it after every change.
	sessionCount atomic.Int32

	// Everything below is owned by the tick goroutine.
	bySerial map[uint64]*session
	byID     map[uint32]*session
	byAddr   map[addrKey]*session
	nextID   uint32
	spawns   game.SpawnRing
	catalog  *weapons.Catalog
	ledger   Ledger
	dirty    map[uint32]struct{}

	wg sync.WaitGroup
}

func New(opts Options) (*Server, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 16
	}
	if opts.AnticheatPolicy == "" {
		opts.AnticheatPolicy = PolicyObserve
	}
	if opts.AnticheatPolicy != PolicyObserve && opts.AnticheatPolicy != PolicyKick {
		return nil, fmt.Errorf("unknown anticheat policy %q", opts.AnticheatPolicy)
	}
	if opts.StrikeLimit <= 0 {
		opts.StrikeLimit = 10
	}
	if opts.Catalog == nil {
		opts.Catalog = weapons.DefaultCatalog()
	}
	if opts.Ledger == nil {
		opts.Ledger = NewMemoryLedger()
	}

	// nil logger (tests) means the silenced default.
	logger := opts.Logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen tcp: %w", err)
	}
	udpAddr := opts.UDPAddr
	if udpAddr == "" {
		udpAddr = listener.Addr().String()
	}
	endpoint, err := transport.ListenEndpoint("udp", udpAddr)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("could not bind movement endpoint: %w", err)
	}

	return &Server{
		opts:     opts,
		listener: listener,
		endpoint: endpoint,
		logger:   logger,
		commands: make(chan any, 1024),
		bySerial: make(map[uint64]*session),
		byID:     make(map[uint32]*session),
		byAddr:   make(map[addrKey]*session),
		nextID:   1,
		catalog:  opts.Catalog,
		ledger:   opts.Ledger,
		dirty:    make(map[uint32]struct{}),
	}, nil
}

// Addr is the reliable channel's address, useful when constructed with ":0".
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// UDPAddr is the unreliable channel's address.
func (s *Server) UDPAddr() net.Addr {
	return s.endpoint.LocalAddr()
}

// Run serves until ctx is cancelled, then tears down every session and
// joins all loops.
func (s *Server) Run(ctx context.Context) error {
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.runTick(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.runAccept(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.runDatagrams(ctx)
	}()

	<-ctx.Done()

	var errs error
	if err := s.listener.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := s.endpoint.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	s.wg.Wait()
	return errs
}

// post hands a command to the tick goroutine, giving up on shutdown so
// producers never deadlock against a stopped consumer.
func (s *Server) post(ctx context.Context, cmd any) {
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
	}
}

func (s *Server) runAccept(ctx context.Context) {
	var serial uint64
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error().Msgf("could not accept: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Full servers turn connections away before any registration;
		// the tick re-checks at handshake time to close the race.
		if int(s.sessionCount.Load()) >= s.opts.MaxSessions {
			s.logger.Info().Str("addr", conn.RemoteAddr().String()).Msg("turning away connection, server full")
			stream := transport.NewStream(conn)
			if err := stream.WriteMessage(&protocol.ServerFull{}); err != nil {
				s.logger.Warn().Msgf("could not write server full notice: %v", err)
			}
			stream.Close()
			continue
		}

		serial++
		sess := newSession(serial, transport.NewStream(conn))

		// Registration must reach the tick before the read loop can
		// post this connection's messages or its close.
		s.post(ctx, connOpened{sess: sess})

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.runSessionReads(ctx, sess)
		}()
		go func() {
			defer s.wg.Done()
			sess.runWrites(s.logger)
		}()
	}
}

// runSessionReads pumps one session's reliable channel into the tick. A read
// error of any kind, including a malformed frame, ends the session: there is
// no resynchronizing a corrupt stream.
func (s *Server) runSessionReads(ctx context.Context, sess *session) {
	for {
		msg, err := sess.stream.ReadMessage()
		if err != nil {
			s.post(ctx, connClosed{serial: sess.serial, err: err})
			return
		}
		s.post(ctx, inbound{serial: sess.serial, msg: msg})
	}
}

// runDatagrams pumps the shared unreliable endpoint into the tick. Malformed
// datagrams are dropped here; there is no stream to corrupt and no session
// resolved yet.
func (s *Server) runDatagrams(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.endpoint.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		msg, sender, err := s.endpoint.Read()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Str("addr", sender.String()).Msgf("dropping datagram: %v", err)
			continue
		}
		s.post(ctx, datagram{msg: msg, sender: sender})
	}
}
