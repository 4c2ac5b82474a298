// Package transport wraps the two channels a session runs on: a reliable
// TCP stream for session, combat and weapon traffic, and an unreliable UDP
// endpoint for movement samples. Both carry the same frame format from
// internal/protocol.
package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/GhostTheDark/FpsSobrevivencia-sub000/internal/protocol"
)

// writeWait bounds a single frame write so one stalled peer cannot wedge
// the writer behind it.
const writeWait = 5 * time.Second

// Stream frames messages over a reliable ordered connection. Reads and
// writes may run concurrently with each other, but each side expects a
// single goroutine.
type Stream struct {
	conn net.Conn
}

func NewStream(conn net.Conn) *Stream {
	return &Stream{conn: conn}
}

// ReadMessage blocks until a whole frame arrives. Close unblocks it with an
// error. io.EOF means the peer closed cleanly.
func (s *Stream) ReadMessage() (protocol.Message, error) {
	return protocol.ReadMessage(s.conn)
}

func (s *Stream) WriteMessage(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.WriteEncoded(frame)
}

// WriteEncoded sends an already framed message. Broadcast paths encode once
// and hand the same frame to every stream.
func (s *Stream) WriteEncoded(frame []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("could not set write deadline: %w", err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("could not write frame: %w", err)
	}
	return nil
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
