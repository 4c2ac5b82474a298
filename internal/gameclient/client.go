// Package gameclient is the embeddable client runtime: it owns the two
// channels to the server, the handshake, local movement prediction with
// server reconciliation, smoothing of remote entities and the optimistic
// weapon shadow. The embedding game loop drives it with Step and the
// action methods and drains Events for everything server-driven.
package gameclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/transport"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

// ErrServerFull is what Join returns when the server turned the connection
// away at capacity.
var ErrServerFull = errors.New("gameclient: server full")

// eventBuffer bounds the event channel. A consumer that stops draining
// loses events rather than wedging the read loop.
const eventBuffer = 128

type Options struct {
	// Addr is the server's reliable channel address. UDPAddr defaults to
	// the same host:port.
	Addr    string
	UDPAddr string

	// Name is the player name offered in the handshake.
	Name string

	// Catalog must match the server's; it defaults to the built-in set.
	Catalog *weapons.Catalog

	Logger *log.Logger
}

// Client is one game session. Run drives the socket loops; the game loop
// calls Join, Ready and then Step every frame from a single goroutine.
// Accessors and actions are safe to call from any goroutine.
type Client struct {
	opts Options

	stream   *transport.Stream
	endpoint *transport.Endpoint

	logger  *log.Logger
	catalog *weapons.Catalog

	// writeMu serializes reliable channel writes; the heartbeat loop and
	// action methods write concurrently.
	writeMu sync.Mutex

	events   chan Event
	acceptCh chan error

	stop     chan struct{}
	stopOnce sync.Once

	wg sync.WaitGroup

	// Everything below is guarded by mu.
	mu             sync.Mutex
	state          game.SessionState
	id             uint32
	pred           predictor
	gate           sendGate
	health         float32
	alive          bool
	remotes        map[uint32]*remote
	arsenal        map[protocol.WeaponID]*weapons.State
	equipped       protocol.WeaponID
	lastServerSeen time.Time
	stopReason     string
}

// Dial connects both channels. The session is not joined yet: start Run,
// then Join.
func Dial(opts Options) (*Client, error) {
	if opts.Name == "" {
		return nil, errors.New("gameclient: player name required")
	}
	if opts.Catalog == nil {
		opts.Catalog = weapons.DefaultCatalog()
	}

	// nil logger (tests) means the silenced default.
	logger := opts.Logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	conn, err := net.Dial("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial tcp: %w", err)
	}
	udpAddr := opts.UDPAddr
	if udpAddr == "" {
		udpAddr = opts.Addr
	}
	endpoint, err := transport.DialEndpoint("udp", udpAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not dial movement endpoint: %w", err)
	}

	return &Client{
		opts:           opts,
		stream:         transport.NewStream(conn),
		endpoint:       endpoint,
		logger:         logger,
		catalog:        opts.Catalog,
		events:         make(chan Event, eventBuffer),
		acceptCh:       make(chan error, 1),
		stop:           make(chan struct{}),
		state:          game.StateConnecting,
		remotes:        make(map[uint32]*remote),
		lastServerSeen: time.Now(),
	}, nil
}

// Events is the server-driven event feed. It closes after a terminal
// DisconnectedEvent once Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run pumps both channels and the heartbeat until the context is cancelled,
// the server goes away or Leave is called. It owns the teardown: sockets
// closed, loops joined, a terminal DisconnectedEvent delivered and the
// event channel closed.
func (c *Client) Run(ctx context.Context) error {
	c.wg.Add(3)
	go func() {
		defer c.wg.Done()
		c.runReliableReads()
	}()
	go func() {
		defer c.wg.Done()
		c.runDatagramReads()
	}()
	go func() {
		defer c.wg.Done()
		c.runHeartbeat()
	}()

	select {
	case <-ctx.Done():
		c.shutdown("context cancelled")
	case <-c.stop:
	}

	// Closing the sockets unblocks any read the loops are parked on.
	var errs error
	if err := c.stream.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.endpoint.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	c.wg.Wait()

	c.mu.Lock()
	c.state = game.StateDisconnected
	reason := c.stopReason
	c.mu.Unlock()

	c.emit(DisconnectedEvent{Reason: reason})
	close(c.events)
	return errs
}

// shutdown requests teardown once; the first reason wins.
func (c *Client) shutdown(reason string) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopReason = reason
		c.mu.Unlock()
		close(c.stop)
	})
}

// Join performs the handshake: it offers the player name and blocks until
// the server assigns an identity, turns the session away or ctx runs out.
// Run must already be started, it routes the answer here.
func (c *Client) Join(ctx context.Context) error {
	c.mu.Lock()
	if c.state != game.StateConnecting {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot join in state %s", state)
	}
	c.state = game.StateHandshaking
	c.mu.Unlock()

	if err := c.writeReliable(&protocol.ConnectionRequest{Name: c.opts.Name}); err != nil {
		return fmt.Errorf("could not send connection request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stop:
		// A capacity turn-away answers and closes back to back; prefer
		// the answer when both raced in.
		select {
		case err := <-c.acceptCh:
			return err
		default:
		}
		return errors.New("disconnected during handshake")
	case err := <-c.acceptCh:
		return err
	}
}

// Ready reports loading finished. The server streams the world snapshot in
// response and starts replicating this session to everyone else. The
// unconditional movement sample right after is what introduces this
// client's address on the unreliable channel.
func (c *Client) Ready() error {
	c.mu.Lock()
	if c.state != game.StateSpawning {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot ready in state %s", state)
	}
	c.state = game.StateActive
	c.pred.sample.Sequence++
	binding := c.pred.sample.Message(c.id)
	c.mu.Unlock()

	if err := c.writeReliable(&protocol.ClientReady{}); err != nil {
		return fmt.Errorf("could not send ready notice: %w", err)
	}
	if err := c.endpoint.Write(binding); err != nil {
		return fmt.Errorf("could not send binding sample: %w", err)
	}
	return nil
}

// Leave tells the server goodbye and tears the session down. The implicit
// variant, just closing, reads the same server-side.
func (c *Client) Leave() {
	if err := c.writeReliable(&protocol.Disconnect{}); err != nil {
		c.logger.Debug().Msgf("could not send disconnect notice: %v", err)
	}
	c.shutdown("leave requested")
}

// runReliableReads pumps the reliable channel. Any read error ends the
// session; there is no resynchronizing a corrupt or closed stream.
func (c *Client) runReliableReads() {
	for {
		msg, err := c.stream.ReadMessage()
		if err != nil {
			reason := "connection lost"
			if errors.Is(err, io.EOF) {
				reason = "server closed connection"
			}
			c.shutdown(reason)
			return
		}
		c.handleReliable(msg)
	}
}

// runDatagramReads pumps the unreliable channel. Malformed datagrams are
// dropped, loss is the channel's nature.
func (c *Client) runDatagramReads() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if err := c.endpoint.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		msg, _, err := c.endpoint.Read()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn().Msgf("dropping datagram: %v", err)
			continue
		}
		c.handleDatagram(msg)
	}
}

// runHeartbeat keeps the reliable channel warm and watches the server's
// side of it. Anything received on either channel counts as liveness.
func (c *Client) runHeartbeat() {
	ticker := time.NewTicker(game.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			last := c.lastServerSeen
			c.mu.Unlock()
			if time.Since(last) > game.LivenessTimeout {
				c.shutdown("server stopped responding")
				return
			}
			if err := c.writeReliable(&protocol.Heartbeat{}); err != nil {
				c.shutdown("could not write heartbeat")
				return
			}
		}
	}
}

func (c *Client) writeReliable(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.WriteMessage(msg)
}

// emit delivers an event without ever blocking a read loop.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn().Msg("event buffer full, dropping event")
	}
}

// RemoteView is a snapshot of another player's smoothed state, safe to
// keep across frames.
type RemoteView struct {
	ID       uint32
	Name     string
	Alive    bool
	Position mgl32.Vec3
	Yaw      float32
}

func (c *Client) ID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) State() game.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position is the locally predicted own position.
func (c *Client) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pred.sample.Position
}

func (c *Client) Yaw() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pred.sample.Yaw
}

func (c *Client) Health() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

func (c *Client) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Client) Equipped() protocol.WeaponID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.equipped
}

// Ammo is the optimistic shadow of the equipped weapon's magazine. The
// server corrects it with every attack result and state update.
func (c *Client) Ammo() (magazine, reserve uint16, reloading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.arsenal[c.equipped]
	if !ok {
		return 0, 0, false
	}
	return state.Magazine, state.Reserve, state.Reloading
}

// Remotes snapshots every known remote player's smoothed state.
func (c *Client) Remotes() []RemoteView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RemoteView, 0, len(c.remotes))
	for _, r := range c.remotes {
		out = append(out, r.view())
	}
	return out
}

// Remote looks up one remote player by id.
func (c *Client) Remote(id uint32) (RemoteView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.remotes[id]
	if !ok {
		return RemoteView{}, false
	}
	return r.view(), true
}

// resetArsenal mirrors the server's stock loadout. Caller holds mu.
func (c *Client) resetArsenal() {
	c.arsenal = make(map[protocol.WeaponID]*weapons.State)
	c.equipped = 0
	for _, weaponID := range weapons.DefaultLoadout() {
		def, ok := c.catalog.Lookup(weaponID)
		if !ok {
			continue
		}
		c.arsenal[weaponID] = weapons.NewState(def)
		if c.equipped == 0 {
			c.equipped = weaponID
		}
	}
}
