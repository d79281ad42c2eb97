package gateway

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
)

// UDP datagram layout: two big-endian bytes of signed RSSI in dBm,
// followed by the raw frame payload. LoRa payloads top out at 255 bytes;
// the buffer leaves headroom for forwarder framing.
const (
	rssiHeaderLen = 2
	maxFrameSize  = 512
)

// UDPSource receives frames forwarded by the radio daemon over UDP.
//
// The radio PHY lives in a separate process; it reads the modem, measures
// RSSI and forwards each frame as one datagram. Undersized datagrams are
// dropped and counted against no one - the parser never sees them.
type UDPSource struct {
	conn   *net.UDPConn
	frames chan Frame
	logger *logging.Logger
}

// ListenUDP opens the frame listener on the given address.
func ListenUDP(addr string, logger *logging.Logger) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving frame listen address %q: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listening for frames on %q: %w", addr, err)
	}

	return &UDPSource{
		conn:   conn,
		frames: make(chan Frame, 16),
		logger: logger.With("component", "udp_source"),
	}, nil
}

// Frames returns the channel the source delivers on. The channel is
// closed when Run returns.
func (s *UDPSource) Frames() <-chan Frame {
	return s.frames
}

// Addr returns the bound listen address.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Run reads datagrams until the context is cancelled.
func (s *UDPSource) Run(ctx context.Context) error {
	defer close(s.frames)

	// Unblock the read on cancellation.
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	s.logger.Info("frame listener started", "addr", s.conn.LocalAddr().String())

	buf := make([]byte, maxFrameSize)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading frame datagram: %w", err)
		}

		if n < rssiHeaderLen {
			s.logger.Debug("dropping undersized datagram", "bytes", n)
			continue
		}

		payload := make([]byte, n-rssiHeaderLen)
		copy(payload, buf[rssiHeaderLen:n])

		frame := Frame{
			Payload: payload,
			RSSI:    int(int16(binary.BigEndian.Uint16(buf[:rssiHeaderLen]))),
		}

		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}
