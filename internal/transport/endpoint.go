package transport

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// MaxDatagramSize is the largest frame either side will send in one
// datagram. Movement samples are far below it.
const MaxDatagramSize = protocol.HeaderSize + protocol.MaxPayloadSize

// Endpoint frames messages over UDP, one frame per datagram. Read is not
// safe for concurrent use; writes are (the kernel serializes sends).
type Endpoint struct {
	conn *net.UDPConn
	buf  []byte
}

// ListenEndpoint binds the server side of the unreliable channel.
func ListenEndpoint(network, address string) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen udp: %w", err)
	}
	return &Endpoint{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

// DialEndpoint binds the client side, connected to a single server address.
func DialEndpoint(network, address string) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}
	conn, err := net.DialUDP(network, nil, addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial udp: %w", err)
	}
	return &Endpoint{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

// Read blocks for the next datagram and decodes it. The sender address is
// valid whenever the read itself succeeded, including when decoding failed,
// so callers can attribute malformed traffic.
func (e *Endpoint) Read() (protocol.Message, netip.AddrPort, error) {
	n, sender, err := e.conn.ReadFromUDPAddrPort(e.buf)
	if err != nil {
		return nil, netip.AddrPort{}, err
	}
	msg, err := protocol.Decode(e.buf[:n])
	if err != nil {
		return nil, sender, err
	}
	return msg, sender, nil
}

// Write sends on a dialed endpoint.
func (e *Endpoint) Write(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := e.conn.Write(frame); err != nil {
		return fmt.Errorf("could not write datagram: %w", err)
	}
	return nil
}

// WriteTo sends on a listening endpoint.
func (e *Endpoint) WriteTo(msg protocol.Message, to netip.AddrPort) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return e.WriteEncodedTo(frame, to)
}

// WriteEncodedTo sends an already framed message, letting broadcast paths
// encode once.
func (e *Endpoint) WriteEncodedTo(frame []byte, to netip.AddrPort) error {
	if _, err := e.conn.WriteToUDPAddrPort(frame, to); err != nil {
		return fmt.Errorf("could not write datagram to %s: %w", to, err)
	}
	return nil
}

// SetReadDeadline bounds the next Read. Receive loops use short deadlines
// to stay responsive to shutdown.
func (e *Endpoint) SetReadDeadline(t time.Time) error {
	return e.conn.SetReadDeadline(t)
}

func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

func (e *Endpoint) Close() error {
	return e.conn.Close()
}
