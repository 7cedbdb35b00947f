package udp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	applog "beatbox/internal/log"
)

// ErrSenderClosed is returned by Send once Close has run.
var ErrSenderClosed = errors.New("udp sender closed")

// UDPSender is a connected, send-only UDP socket. The telemetry
// publisher fires fixed-size packets through it; delivery is best
// effort, as UDP is.
type UDPSender struct {
	mu     sync.Mutex // serializes Write against Close
	conn   *net.UDPConn
	closed bool
}

// NewUDPSender connects a socket to the collector at targetAddress
// ("host:port"). The local end binds to an ephemeral port.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve udp target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %q: %w", targetAddress, err)
	}

	applog.Infof("UDPSender: connection established to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits data as one datagram. The lock spans the write so
// Close cannot release the socket mid-send.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		applog.Warnf("UDPSender: error sending packet: %v", err)
		return fmt.Errorf("send udp packet: %w", err)
	}
	return nil
}

// Close releases the socket. Further Sends return ErrSenderClosed;
// calling Close again is a no-op.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	applog.Infof("UDPSender: closing connection to %s", s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close udp connection: %w", err)
	}
	return nil
}

var _ io.Closer = (*UDPSender)(nil)
