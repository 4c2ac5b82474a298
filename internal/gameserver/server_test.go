package gameserver

import (
	"io"
	"net"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/game"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/transport"
	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/weapons"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/matryer/is"
)

// These tests drive the tick loop by hand: commands go straight through
// dispatch with a fabricated clock and replies pile up in each session's
// send queue, so nothing depends on goroutine scheduling. Only the
// datagram fan-out runs over real sockets.

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	is := is.New(t)
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	if opts.UDPAddr == "" {
		opts.UDPAddr = "127.0.0.1:0"
	}
	srv, err := New(opts)
	is.NoErr(err)
	t.Cleanup(func() {
		srv.listener.Close()
		srv.endpoint.Close()
	})
	return srv
}

// connect registers a raw connection, as the accept loop would.
func connect(t *testing.T, srv *Server, serial uint64, now time.Time) *session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	sess := newSession(serial, transport.NewStream(server))
	srv.dispatch(connOpened{sess: sess}, now)
	return sess
}

// join runs the whole handshake and discards its traffic.
func join(t *testing.T, srv *Server, serial uint64, name string, now time.Time) *session {
	t.Helper()
	is := is.New(t)
	sess := connect(t, srv, serial, now)
	srv.dispatch(inbound{serial: serial, msg: &protocol.ConnectionRequest{Name: name}}, now)
	srv.dispatch(inbound{serial: serial, msg: &protocol.ClientReady{}}, now)
	is.Equal(sess.state, game.StateActive)
	drain(t, sess)
	return sess
}

// drain empties a session's send queue, decoding every queued frame.
func drain(t *testing.T, sess *session) []protocol.Message {
	t.Helper()
	is := is.New(t)
	var out []protocol.Message
	for {
		select {
		case frame, ok := <-sess.sendCh:
			if !ok {
				return out
			}
			msg, err := protocol.Decode(frame)
			is.NoErr(err)
			out = append(out, msg)
		default:
			return out
		}
	}
}

// firstOf picks the first queued message of type M, failing if none came.
func firstOf[M protocol.Message](t *testing.T, msgs []protocol.Message) M {
	t.Helper()
	for _, msg := range msgs {
		if typed, ok := msg.(M); ok {
			return typed
		}
	}
	var zero M
	t.Fatalf("no %T among %d messages %v", zero, len(msgs), msgs)
	return zero
}

func countOf[M protocol.Message](msgs []protocol.Message) int {
	n := 0
	for _, msg := range msgs {
		if _, ok := msg.(M); ok {
			n++
		}
	}
	return n
}

func place(sess *session, pos mgl32.Vec3) {
	sess.entity.Sample.Position = pos
}

// duel joins two combatants ten meters apart on the z axis.
func duel(t *testing.T, srv *Server) (a, b *session, now time.Time) {
	t.Helper()
	now = time.Now()
	a = join(t, srv, 1, "hunter", now)
	b = join(t, srv, 2, "prey", now)
	place(a, mgl32.Vec3{0, 0, 0})
	place(b, mgl32.Vec3{0, 0, 10})
	drain(t, a) // b's spawn announcement
	return a, b, now
}

// shot builds a well-formed ranged attack for whatever the session holds.
func shot(sess *session, dir mgl32.Vec3, claimedDistance float32) *protocol.RangedAttack {
	return &protocol.RangedAttack{
		WeaponID:  sess.equipped,
		Hitbox:    protocol.HitboxBody,
		Origin:    sess.entity.Eye(),
		Direction: dir,
		Distance:  claimedDistance,
	}
}

// aimAt is the unit direction from the shooter's eye to a world point.
func aimAt(sess *session, target mgl32.Vec3) mgl32.Vec3 {
	return target.Sub(sess.entity.Eye()).Normalize()
}

// bindEndpoint gives the session a real datagram return address by sending
// the first movement sample from a fresh client socket.
func bindEndpoint(t *testing.T, srv *Server, sess *session, now time.Time) *net.UDPConn {
	t.Helper()
	is := is.New(t)
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	is.NoErr(err)
	t.Cleanup(func() { conn.Close() })

	sample := sess.entity.Sample
	srv.dispatch(datagram{
		msg: &protocol.PlayerMovement{
			ClientID: sess.id,
			Sequence: sample.Sequence + 1,
			Position: sample.Position,
			Yaw:      sample.Yaw,
		},
		sender: conn.LocalAddr().(*net.UDPAddr).AddrPort(),
	}, now)
	is.True(sess.udpKey != 0) // binding must have taken
	return conn
}

func recvDatagram(t *testing.T, conn *net.UDPConn) protocol.Message {
	t.Helper()
	is := is.New(t)
	is.NoErr(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	buf := make([]byte, transport.MaxDatagramSize)
	n, _, err := conn.ReadFromUDP(buf)
	is.NoErr(err)
	msg, err := protocol.Decode(buf[:n])
	is.NoErr(err)
	return msg
}

func TestHandshakeLifecycle(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	a := connect(t, srv, 1, now)
	srv.dispatch(inbound{serial: 1, msg: &protocol.ConnectionRequest{Name: "huntress"}}, now)
	accept := firstOf[*protocol.ConnectionAccept](t, drain(t, a))
	is.Equal(accept.ClientID, uint32(1))
	is.Equal(a.state, game.StateSpawning)
	is.Equal(accept.SpawnPosition, a.entity.Position())

	b := connect(t, srv, 2, now)
	srv.dispatch(inbound{serial: 2, msg: &protocol.ConnectionRequest{Name: "trapper"}}, now)
	acceptB := firstOf[*protocol.ConnectionAccept](t, drain(t, b))
	is.Equal(acceptB.ClientID, uint32(2)) // ids count up and are never recycled
	is.True(accept.SpawnPosition != acceptB.SpawnPosition)

	srv.dispatch(inbound{serial: 1, msg: &protocol.ClientReady{}}, now)
	srv.dispatch(inbound{serial: 2, msg: &protocol.ClientReady{}}, now)

	// The earlier arrival learns about the newcomer through the announce,
	// the newcomer through its world snapshot.
	seenByA := firstOf[*protocol.PlayerSpawn](t, drain(t, a))
	is.Equal(seenByA.ClientID, uint32(2))
	is.Equal(seenByA.Name, "trapper")

	msgsB := drain(t, b)
	is.Equal(countOf[*protocol.PlayerSpawn](msgsB), 1) // exactly one copy of the world
	seenByB := firstOf[*protocol.PlayerSpawn](t, msgsB)
	is.Equal(seenByB.ClientID, uint32(1))

	loadout := firstOf[*protocol.WeaponStateUpdate](t, msgsB)
	is.Equal(loadout.WeaponID, weapons.Revolver)
	is.Equal(loadout.CurrentAmmo, uint16(6))
	is.Equal(loadout.ReserveAmmo, uint16(36))
	is.Equal(loadout.IsReloading, false)

	// Ledger seeded with throwables.
	is.Equal(srv.ledger.(*MemoryLedger).Balance(b.id, weapons.ItemSpear), 3)
}

func TestHandshakeRejectsBadNames(t *testing.T) {
	for name, player := range map[string]string{
		"blank":    "   ",
		"too long": strings.Repeat("é", 25),
	} {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			srv := newTestServer(t, Options{})
			now := time.Now()

			sess := connect(t, srv, 1, now)
			srv.dispatch(inbound{serial: 1, msg: &protocol.ConnectionRequest{Name: player}}, now)
			is.Equal(len(srv.bySerial), 0) // dropped outright
			is.Equal(countOf[*protocol.ConnectionAccept](drain(t, sess)), 0)
		})
	}

	t.Run("24 runes is fine", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		now := time.Now()

		sess := connect(t, srv, 1, now)
		srv.dispatch(inbound{serial: 1, msg: &protocol.ConnectionRequest{Name: strings.Repeat("é", 24)}}, now)
		is.Equal(sess.state, game.StateSpawning)
	})
}

func TestServerFullAtHandshake(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{MaxSessions: 2})
	now := time.Now()

	join(t, srv, 1, "one", now)
	join(t, srv, 2, "two", now)

	// The accept loop's capacity gate races a join burst; the tick has the
	// final word when the handshake arrives.
	third := connect(t, srv, 3, now)
	srv.dispatch(inbound{serial: 3, msg: &protocol.ConnectionRequest{Name: "three"}}, now)

	msgs := drain(t, third)
	firstOf[*protocol.ServerFull](t, msgs)
	is.Equal(countOf[*protocol.ConnectionAccept](msgs), 0)
	is.Equal(len(srv.byID), 2)
	is.Equal(int(srv.sessionCount.Load()), 2)
}

func TestDuplicateConnectionRequestStrikes(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	sess := join(t, srv, 1, "huntress", now)
	srv.dispatch(inbound{serial: 1, msg: &protocol.ConnectionRequest{Name: "huntress again"}}, now)
	is.Equal(sess.strikes, 1)
	is.Equal(sess.name, "huntress")
	is.Equal(countOf[*protocol.ConnectionAccept](drain(t, sess)), 0)
}

func TestReadyBeforeHandshakeStrikes(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	sess := connect(t, srv, 1, now)
	srv.dispatch(inbound{serial: 1, msg: &protocol.ClientReady{}}, now)
	is.Equal(sess.strikes, 1)
	is.Equal(sess.state, game.StateHandshaking)
}

func TestServerMessageFromClientStrikes(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	sess := join(t, srv, 1, "huntress", now)
	srv.dispatch(inbound{serial: 1, msg: &protocol.AttackResult{AttackerID: 1, Success: true}}, now)
	is.Equal(sess.strikes, 1)
}

func TestHeartbeatEchoAndLiveness(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	sess := join(t, srv, 1, "huntress", now)

	srv.dispatch(inbound{serial: 1, msg: &protocol.Heartbeat{}}, now.Add(10*time.Second))
	firstOf[*protocol.Heartbeat](t, drain(t, sess))

	// The heartbeat moved lastSeen, so 16s after joining is only 6s idle.
	srv.step(now.Add(16 * time.Second))
	is.Equal(len(srv.byID), 1)

	// Gone quiet past the timeout.
	srv.step(now.Add(26 * time.Second))
	is.Equal(len(srv.byID), 0)
	is.Equal(sess.state, game.StateDisconnected)
}

func TestHandshakeTimeoutEviction(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	connect(t, srv, 1, now)
	srv.step(now.Add(9 * time.Second))
	is.Equal(len(srv.bySerial), 1)

	srv.step(now.Add(11 * time.Second))
	is.Equal(len(srv.bySerial), 0)
}

func TestDisconnectAnnounced(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	a := join(t, srv, 1, "leaver", now)
	b := join(t, srv, 2, "stayer", now)
	drain(t, a)

	srv.dispatch(inbound{serial: 1, msg: &protocol.Disconnect{}}, now)
	is.Equal(len(srv.byID), 1)
	is.Equal(a.state, game.StateDisconnected)

	gone := firstOf[*protocol.PlayerDisconnect](t, drain(t, b))
	is.Equal(gone.ClientID, a.id)

	// A later join takes a fresh id, not the leaver's.
	c := join(t, srv, 3, "joiner", now)
	is.Equal(c.id, uint32(3))
}

func TestConnClosedDeregisters(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	a := join(t, srv, 1, "dropper", now)
	srv.dispatch(connClosed{serial: 1, err: io.EOF}, now)
	is.Equal(len(srv.bySerial), 0)
	is.Equal(a.state, game.StateDisconnected)

	// The read loop's trailing error after a server-side deregistration
	// must not blow up on the unknown serial.
	srv.dispatch(connClosed{serial: 1, err: io.ErrUnexpectedEOF}, now)
}

func TestMovementBindingAndReplication(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)

	udpA := bindEndpoint(t, srv, a, now)
	udpB := bindEndpoint(t, srv, b, now)
	srv.step(now)

	// Each side hears the other's binding sample.
	onB := firstOf[*protocol.PlayerMovement](t, []protocol.Message{recvDatagram(t, udpB)})
	is.Equal(onB.ClientID, a.id)
	onA := firstOf[*protocol.PlayerMovement](t, []protocol.Message{recvDatagram(t, udpA)})
	is.Equal(onA.ClientID, b.id)

	move := &protocol.PlayerMovement{
		ClientID: a.id,
		Sequence: 2,
		Position: mgl32.Vec3{1, 0, 3},
		Yaw:      45,
		Velocity: mgl32.Vec3{4.5, 0, 0},
		Flags:    protocol.FlagGrounded | protocol.FlagSprinting,
	}
	srv.dispatch(datagram{msg: move, sender: a.udpAddr}, now)
	is.Equal(a.entity.Position(), mgl32.Vec3{1, 0, 3})

	srv.step(now)
	relayed := firstOf[*protocol.PlayerMovement](t, []protocol.Message{recvDatagram(t, udpB)})
	is.Equal(relayed.ClientID, a.id)
	is.Equal(relayed.Sequence, uint32(2))
	is.Equal(relayed.Position, mgl32.Vec3{1, 0, 3})
	is.Equal(relayed.Yaw, float32(45))
	is.True(relayed.Flags.Sprinting())

	// Reordered datagram: an older sequence changes nothing.
	stale := &protocol.PlayerMovement{ClientID: a.id, Sequence: 1, Position: mgl32.Vec3{9, 9, 9}}
	srv.dispatch(datagram{msg: stale, sender: a.udpAddr}, now)
	is.Equal(a.entity.Position(), mgl32.Vec3{1, 0, 3})
	_, dirty := srv.dirty[a.id]
	is.True(!dirty)
}

func TestMovementSpoofedIDStrikes(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)

	bindEndpoint(t, srv, a, now)
	forged := &protocol.PlayerMovement{ClientID: b.id, Sequence: 50, Position: mgl32.Vec3{5, 0, 5}}
	srv.dispatch(datagram{msg: forged, sender: a.udpAddr}, now)

	is.Equal(a.strikes, 1)
	is.Equal(b.entity.Position(), mgl32.Vec3{0, 0, 10})
	is.Equal(b.entity.Sample.Sequence, uint32(0))
}

func TestDatagramFromUnknownAddress(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	sender := netipAddrPort(t, "127.0.0.1:40000")

	// Only a movement sample may introduce a return address.
	srv.dispatch(datagram{msg: shot(a, mgl32.Vec3{0, 0, 1}, 10), sender: sender}, now)
	is.Equal(len(srv.byAddr), 0)

	// A movement naming an unknown session cannot bind either.
	srv.dispatch(datagram{msg: &protocol.PlayerMovement{ClientID: 99, Sequence: 1}, sender: sender}, now)
	is.Equal(len(srv.byAddr), 0)
}

func TestSelfEchoCadence(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	now := time.Now()

	a := join(t, srv, 1, "loner", now)
	udp := bindEndpoint(t, srv, a, now)

	for i := 0; i < game.SelfEchoEveryTicks; i++ {
		srv.step(now)
	}

	// With nobody else joined, the only datagram in thirty ticks is the
	// authoritative echo of the session's own sample.
	echo := firstOf[*protocol.PlayerMovement](t, []protocol.Message{recvDatagram(t, udp)})
	is.Equal(echo.ClientID, a.id)
	is.Equal(echo.Sequence, a.entity.Sample.Sequence)
	is.Equal(a.echoTimer, 0)
}

func TestRangedHitboxDamage(t *testing.T) {
	t.Run("head doubles", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)

		// Level shot from eye height lands at 1.62 of 1.8, in the head zone.
		srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 10)}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.True(result.Success)
		is.Equal(result.TargetID, b.id)
		is.Equal(result.Hitbox, protocol.HitboxHead)
		is.Equal(result.DamageDealt, float32(80))
		is.Equal(result.WasKilled, false)
		is.Equal(result.RemainingAmmo, int16(5))
		is.Equal(b.entity.Health, float32(20))

		// The victim hears both the broadcast result and the damage notify.
		msgsB := drain(t, b)
		firstOf[*protocol.AttackResult](t, msgsB)
		notify := firstOf[*protocol.TakeDamageNotify](t, msgsB)
		is.Equal(notify.VictimID, b.id)
		is.Equal(notify.AttackerID, a.id)
		is.Equal(notify.Damage, float32(80))
		is.Equal(notify.DamageType, protocol.DamageBullet)
	})

	t.Run("torso is baseline", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)

		srv.dispatch(inbound{serial: a.serial, msg: shot(a, aimAt(a, mgl32.Vec3{0, 0.9, 10}), 10)}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.True(result.Success)
		is.Equal(result.Hitbox, protocol.HitboxBody)
		is.Equal(result.DamageDealt, float32(40))
		is.Equal(b.entity.Health, float32(60))
	})

	t.Run("shin is limbs", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)

		srv.dispatch(inbound{serial: a.serial, msg: shot(a, aimAt(a, mgl32.Vec3{0, 0.3, 10}), 10)}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.True(result.Success)
		is.Equal(result.Hitbox, protocol.HitboxLimbs)
		is.Equal(result.DamageDealt, float32(30))
		is.Equal(b.entity.Health, float32(70))
	})
}

func TestRangedFalloffBeyondOptimal(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)
	place(b, mgl32.Vec3{0, 0, 32.5}) // past the revolver's 15m optimal

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 32.5)}, now)

	result := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.True(result.Success)
	is.Equal(result.Hitbox, protocol.HitboxHead)
	is.True(result.DamageDealt < 80) // falloff shaved the headshot
	is.True(result.DamageDealt > 40) // but stays above the 0.5 floor
	is.Equal(b.entity.Health, 100-result.DamageDealt)
}

func TestRangedMissSpendsRound(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now)

	result := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(result.Success, false)
	is.Equal(result.Message, "missed")
	is.Equal(result.RemainingAmmo, int16(5))
	is.Equal(b.entity.Health, float32(100))
	is.Equal(a.strikes, 0)

	// Failure feedback is private to the shooter.
	is.Equal(countOf[*protocol.AttackResult](drain(t, b)), 0)
}

func TestFireCooldownFeedback(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now)
	drain(t, a)

	// 100ms later is inside the revolver's 500ms interval.
	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now.Add(100*time.Millisecond))
	result := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(result.Success, false)
	is.Equal(result.Message, "firing too fast")
	is.Equal(result.RemainingAmmo, int16(5)) // the refused shot spent nothing
	is.Equal(a.strikes, 0)

	// The interval boundary itself fires.
	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now.Add(500*time.Millisecond))
	result = firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(result.Message, "missed")
	is.Equal(result.RemainingAmmo, int16(4))
}

func TestMacroCapDropsSilently(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	// Thirteen trigger pulls inside a second: twelve get an answer (one
	// fired, eleven cooldown rejections), the thirteenth vanishes.
	var results int
	for i := 0; i < 13; i++ {
		srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now.Add(time.Duration(i)*10*time.Millisecond))
		results += countOf[*protocol.AttackResult](drain(t, a))
	}
	is.Equal(results, game.MacroShotCap)
	is.Equal(a.strikes, 1)

	// The window rolls: a second later the cap has room again.
	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now.Add(2*time.Second))
	is.Equal(countOf[*protocol.AttackResult](drain(t, a)), 1)
	is.Equal(a.strikes, 1)
}

func TestSpoofedClaimsDropSilently(t *testing.T) {
	type spoof struct {
		build func(a *session) *protocol.RangedAttack
	}
	cases := map[string]spoof{
		"origin away from player": {func(a *session) *protocol.RangedAttack {
			msg := shot(a, mgl32.Vec3{0, 0, 1}, 10)
			msg.Origin = a.entity.Eye().Add(mgl32.Vec3{6, 0, 0})
			return msg
		}},
		"direction not unit length": {func(a *session) *protocol.RangedAttack {
			return shot(a, mgl32.Vec3{0, 0, 2}, 10)
		}},
		"claimed distance beyond range": {func(a *session) *protocol.RangedAttack {
			return shot(a, mgl32.Vec3{0, 0, 1}, 60)
		}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			srv := newTestServer(t, Options{})
			a, b, now := duel(t, srv)

			srv.dispatch(inbound{serial: a.serial, msg: tc.build(a)}, now)

			is.Equal(countOf[*protocol.AttackResult](drain(t, a)), 0) // no feedback to probe
			is.Equal(a.strikes, 1)
			is.Equal(a.arsenal[weapons.Revolver].Magazine, uint16(6)) // no round spent
			is.Equal(b.entity.Health, float32(100))
		})
	}
}

func TestOutOfAmmoRejectedBeforeRaycast(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)
	a.arsenal[weapons.Revolver].Magazine = 0

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 10)}, now)

	result := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(result.Success, false)
	is.Equal(result.Message, "out of ammo")
	is.Equal(result.RemainingAmmo, int16(0))
	is.Equal(b.entity.Health, float32(100)) // dry fire reaches no simulation
}

func TestReloadLifecycle(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now)
	drain(t, a)

	reloadAt := now.Add(time.Second)
	srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponReload{WeaponID: weapons.Revolver}}, reloadAt)
	update := firstOf[*protocol.WeaponStateUpdate](t, drain(t, a))
	is.True(update.IsReloading)
	is.Equal(update.CurrentAmmo, uint16(5))

	// Firing mid-reload is refused with feedback, and no round is spent.
	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, reloadAt.Add(time.Second))
	result := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(result.Success, false)
	is.Equal(result.Message, "reloading")

	// Half way through nothing completes.
	srv.step(reloadAt.Add(1250 * time.Millisecond))
	is.Equal(countOf[*protocol.WeaponStateUpdate](drain(t, a)), 0)
	is.True(a.arsenal[weapons.Revolver].Reloading)

	// The tick past the reload duration tops the magazine from reserve.
	srv.step(reloadAt.Add(2600 * time.Millisecond))
	update = firstOf[*protocol.WeaponStateUpdate](t, drain(t, a))
	is.Equal(update.IsReloading, false)
	is.Equal(update.CurrentAmmo, uint16(6))
	is.Equal(update.ReserveAmmo, uint16(35))
}

func TestReloadOnFullMagazineResyncs(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponReload{WeaponID: weapons.Revolver}}, now)
	update := firstOf[*protocol.WeaponStateUpdate](t, drain(t, a))
	is.Equal(update.IsReloading, false) // nothing to do, state echoed back
	is.Equal(update.CurrentAmmo, uint16(6))
	is.Equal(a.strikes, 0)
}

func TestReloadOfUnequippedWeaponStrikes(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponReload{WeaponID: weapons.Knife}}, now)
	is.Equal(a.strikes, 1)
}

func TestDeathCancelsReload(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)
	b.entity.Health = 10
	b.arsenal[weapons.Revolver].Magazine = 2

	srv.dispatch(inbound{serial: b.serial, msg: &protocol.WeaponReload{WeaponID: weapons.Revolver}}, now)
	is.True(b.arsenal[weapons.Revolver].Reloading)

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 10)}, now)
	is.Equal(b.entity.Alive, false)
	is.Equal(b.arsenal[weapons.Revolver].Reloading, false)
}

func TestKillRespawnFlow(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)
	udpB := bindEndpoint(t, srv, b, now)
	drain(t, b)
	b.entity.Health = 10

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 10)}, now)

	msgsA := drain(t, a)
	result := firstOf[*protocol.AttackResult](t, msgsA)
	is.True(result.Success)
	is.True(result.WasKilled)

	feed := firstOf[*protocol.PlayerKilled](t, msgsA)
	is.Equal(feed.VictimID, b.id)
	is.Equal(feed.KillerID, a.id)
	is.Equal(feed.KillerName, "hunter")
	is.Equal(feed.WeaponUsed, "revolver")
	is.Equal(feed.Hitbox, protocol.HitboxHead)

	// The victim sees its own death too, and the killer gets paid.
	firstOf[*protocol.PlayerKilled](t, drain(t, b))
	is.Equal(srv.ledger.(*MemoryLedger).Balance(a.id, ItemScrap), killBounty)
	is.Equal(b.entity.Alive, false)

	// Too eager: the server timer is not done.
	srv.dispatch(inbound{serial: b.serial, msg: &protocol.RespawnRequest{}}, now.Add(time.Second))
	resp := firstOf[*protocol.RespawnResponse](t, drain(t, b))
	is.Equal(resp.Success, false)
	is.Equal(resp.Message, "respawn not ready")
	is.Equal(b.entity.Alive, false)

	// Dead players are transparent to gunfire in the meantime.
	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 10)}, now.Add(time.Second))
	miss := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(miss.Success, false)
	is.Equal(miss.Message, "missed")

	// After the delay the respawn lands on a fresh ring point with a
	// stock arsenal, announces itself, and echoes the new sample.
	before := b.entity.Sample.Sequence
	srv.dispatch(inbound{serial: b.serial, msg: &protocol.RespawnRequest{}}, now.Add(6*time.Second))

	msgsB := drain(t, b)
	resp = firstOf[*protocol.RespawnResponse](t, msgsB)
	is.True(resp.Success)
	is.Equal(resp.SpawnPosition, b.entity.Position())
	is.True(b.entity.Alive)
	is.Equal(b.entity.Health, float32(100))
	is.True(b.entity.Sample.Sequence > before)
	is.Equal(b.arsenal[weapons.Revolver].Magazine, uint16(6))
	is.Equal(firstOf[*protocol.WeaponStateUpdate](t, msgsB).CurrentAmmo, uint16(6))

	announce := firstOf[*protocol.PlayerSpawn](t, drain(t, a))
	is.Equal(announce.ClientID, b.id)

	echo := firstOf[*protocol.PlayerMovement](t, []protocol.Message{recvDatagram(t, udpB)})
	is.Equal(echo.ClientID, b.id)
	is.Equal(echo.Position, resp.SpawnPosition)

	// Ledger items survived the death.
	is.Equal(srv.ledger.(*MemoryLedger).Balance(b.id, weapons.ItemSpear), 3)
}

func TestRespawnWhileAlive(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	srv.dispatch(inbound{serial: a.serial, msg: &protocol.RespawnRequest{}}, now)
	resp := firstOf[*protocol.RespawnResponse](t, drain(t, a))
	is.Equal(resp.Success, false)
	is.Equal(resp.Message, "still alive")
}

func TestMeleeValidation(t *testing.T) {
	swing := func(target uint32, dir mgl32.Vec3) *protocol.MeleeAttack {
		return &protocol.MeleeAttack{
			TargetID:  target,
			WeaponID:  weapons.Knife,
			Hitbox:    protocol.HitboxHead,
			Direction: dir,
		}
	}
	equipKnife := func(t *testing.T, srv *Server, sess *session, now time.Time) {
		t.Helper()
		srv.dispatch(inbound{serial: sess.serial, msg: &protocol.WeaponEquip{WeaponID: weapons.Knife, Slot: weapons.SlotSecondary}}, now)
		drain(t, sess)
	}

	t.Run("claimed hitbox lands inside reach", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)
		place(b, mgl32.Vec3{0, 0, 1.5})
		equipKnife(t, srv, a, now)

		srv.dispatch(inbound{serial: a.serial, msg: swing(b.id, mgl32.Vec3{0, 0, 1})}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.True(result.Success)
		is.Equal(result.Hitbox, protocol.HitboxHead)
		is.Equal(result.DamageDealt, float32(50)) // 25 base doubled
		is.Equal(result.RemainingAmmo, int16(-1)) // blades carry no magazine
		is.Equal(b.entity.Health, float32(50))

		notify := firstOf[*protocol.TakeDamageNotify](t, drain(t, b))
		is.Equal(notify.DamageType, protocol.DamageMelee)
	})

	t.Run("out of reach", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)
		place(b, mgl32.Vec3{0, 0, 3}) // past 2m×1.1 slack
		equipKnife(t, srv, a, now)

		srv.dispatch(inbound{serial: a.serial, msg: swing(b.id, mgl32.Vec3{0, 0, 1})}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.Equal(result.Success, false)
		is.Equal(result.Message, "out of reach")
		is.Equal(b.entity.Health, float32(100))
		is.Equal(a.strikes, 0) // lag, not cheating
	})

	t.Run("not facing", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)
		place(b, mgl32.Vec3{0, 0, 1.5})
		equipKnife(t, srv, a, now)

		srv.dispatch(inbound{serial: a.serial, msg: swing(b.id, mgl32.Vec3{1, 0, 0})}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.Equal(result.Message, "not facing target")
		is.Equal(b.entity.Health, float32(100))
	})

	t.Run("dead target", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)
		place(b, mgl32.Vec3{0, 0, 1.5})
		equipKnife(t, srv, a, now)
		b.entity.Alive = false

		srv.dispatch(inbound{serial: a.serial, msg: swing(b.id, mgl32.Vec3{0, 0, 1})}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.Equal(result.Message, "target already dead")
	})

	t.Run("unknown target", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, _, now := duel(t, srv)
		equipKnife(t, srv, a, now)

		srv.dispatch(inbound{serial: a.serial, msg: swing(99, mgl32.Vec3{0, 0, 1})}, now)

		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.Equal(result.Message, "no such target")
	})

	t.Run("ranged weapon in a melee frame", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, b, now := duel(t, srv)
		place(b, mgl32.Vec3{0, 0, 1.5})

		msg := swing(b.id, mgl32.Vec3{0, 0, 1})
		msg.WeaponID = weapons.Revolver // equipped, but wrong class
		srv.dispatch(inbound{serial: a.serial, msg: msg}, now)

		is.Equal(a.strikes, 1)
		is.Equal(countOf[*protocol.AttackResult](drain(t, a)), 0)
	})
}

func TestThrowableConsumesLedger(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)
	ledger := srv.ledger.(*MemoryLedger)

	srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: weapons.Spear, Slot: weapons.SlotThrowable}}, now)
	is.Equal(a.equipped, weapons.Spear)
	drain(t, a)

	for i := 1; i <= 3; i++ {
		at := now.Add(time.Duration(i) * 1100 * time.Millisecond)
		srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, at)
		result := firstOf[*protocol.AttackResult](t, drain(t, a))
		is.Equal(result.Message, "missed")
		is.Equal(result.RemainingAmmo, int16(-1))
		is.Equal(ledger.Balance(a.id, weapons.ItemSpear), 3-i) // each throw burns one
	}

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 1, 0}, 10)}, now.Add(5*time.Second))
	result := firstOf[*protocol.AttackResult](t, drain(t, a))
	is.Equal(result.Success, false)
	is.Equal(result.Message, "nothing to throw")
}

func TestWeaponEquipValidation(t *testing.T) {
	t.Run("unknown weapon", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, _, now := duel(t, srv)

		srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: 99, Slot: 0}}, now)
		is.Equal(a.strikes, 1)
		is.Equal(a.equipped, weapons.Revolver)
	})

	t.Run("slot mismatch", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, _, now := duel(t, srv)

		srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: weapons.Knife, Slot: weapons.SlotPrimary}}, now)
		is.Equal(a.strikes, 1)
		is.Equal(a.equipped, weapons.Revolver)
	})

	t.Run("unowned weapon", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, _, now := duel(t, srv)

		srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: weapons.BoltRifle, Slot: weapons.SlotPrimary}}, now)
		is.Equal(a.strikes, 1)
		is.Equal(a.equipped, weapons.Revolver)
	})

	t.Run("swap cancels reload", func(t *testing.T) {
		is := is.New(t)
		srv := newTestServer(t, Options{})
		a, _, now := duel(t, srv)
		a.arsenal[weapons.Revolver].Magazine = 2

		srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponReload{WeaponID: weapons.Revolver}}, now)
		is.True(a.arsenal[weapons.Revolver].Reloading)

		srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: weapons.Knife, Slot: weapons.SlotSecondary}}, now)
		is.Equal(a.equipped, weapons.Knife)
		is.Equal(a.arsenal[weapons.Revolver].Reloading, false)
		is.Equal(a.arsenal[weapons.Revolver].Magazine, uint16(2)) // interrupted, nothing moved
	})
}

func TestAttackRequiresEquippedWeapon(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, _, now := duel(t, srv)

	// Knife is owned but holstered while the revolver is in hand.
	srv.dispatch(inbound{serial: a.serial, msg: &protocol.MeleeAttack{
		TargetID:  2,
		WeaponID:  weapons.Knife,
		Direction: mgl32.Vec3{0, 0, 1},
	}}, now)
	is.Equal(a.strikes, 1)
	is.Equal(countOf[*protocol.AttackResult](drain(t, a)), 0)
}

func TestDeadAttackerIsIgnored(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{})
	a, b, now := duel(t, srv)
	a.entity.Alive = false

	srv.dispatch(inbound{serial: a.serial, msg: shot(a, mgl32.Vec3{0, 0, 1}, 10)}, now)
	is.Equal(countOf[*protocol.AttackResult](drain(t, a)), 0)
	is.Equal(a.strikes, 0) // racing one's own death is not a violation
	is.Equal(b.entity.Health, float32(100))
}

func TestKickPolicyEnforcesStrikeLimit(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{AnticheatPolicy: PolicyKick, StrikeLimit: 2})
	now := time.Now()

	a := join(t, srv, 1, "cheater", now)
	b := join(t, srv, 2, "witness", now)
	drain(t, a)

	srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: 99}}, now)
	is.Equal(len(srv.byID), 2) // one strike is a warning

	srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: 99}}, now)
	is.Equal(len(srv.byID), 1)
	is.Equal(a.state, game.StateDisconnected)

	gone := firstOf[*protocol.PlayerDisconnect](t, drain(t, b))
	is.Equal(gone.ClientID, a.id)
}

func TestObservePolicyOnlyCounts(t *testing.T) {
	is := is.New(t)
	srv := newTestServer(t, Options{StrikeLimit: 2})
	a, _, now := duel(t, srv)

	for i := 0; i < 5; i++ {
		srv.dispatch(inbound{serial: a.serial, msg: &protocol.WeaponEquip{WeaponID: 99}}, now)
	}
	is.Equal(a.strikes, 5)
	is.Equal(a.state, game.StateActive) // observed, never kicked
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	is := is.New(t)
	_, err := New(Options{Addr: "127.0.0.1:0", UDPAddr: "127.0.0.1:0", AnticheatPolicy: "banhammer"})
	is.True(err != nil)
}

func netipAddrPort(t *testing.T, s string) netip.AddrPort {
	t.Helper()
	is := is.New(t)
	ap, err := netip.ParseAddrPort(s)
	is.NoErr(err)
	return ap
}
