// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"beatbox/internal/events"
)

const packetSize = 46

// newLoopbackPair binds a loopback listener and a sender aimed at it.
func newLoopbackPair(t *testing.T) (*net.UDPConn, *UDPSender) {
	t.Helper()

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	sender, err := NewUDPSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	t.Cleanup(func() { sender.Close() })

	return listener, sender
}

func readPacket(t *testing.T, listener *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 512)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	return buf[:n]
}

func TestTelemetryPublisherPacketLayout(t *testing.T) {
	listener, sender := newLoopbackPair(t)

	hub := events.NewHub(0)
	t.Cleanup(hub.Close)

	pub, err := NewTelemetryPublisher(hub, sender)
	if err != nil {
		t.Fatalf("NewTelemetryPublisher: %v", err)
	}
	pub.Start()
	t.Cleanup(func() { pub.Stop() })

	// Non-telemetry events must not produce packets.
	hub.Publish(events.TypeLifecycle, events.Lifecycle{State: "running", TempoBPM: 120})

	hub.Publish(events.TypeTelemetry, events.Telemetry{
		TempoBPM:        120,
		FramesProcessed: 123456,
		DroppedFrames:   7,
		FreeBuffers:     12,
		FilledBuffers:   4,
		RMS:             0.25,
		CallbackAvgMS:   1.5,
		CallbackMaxMS:   3.25,
	})

	raw := readPacket(t, listener)
	if len(raw) != packetSize {
		t.Fatalf("packet is %d bytes, want %d", len(raw), packetSize)
	}

	// Decode by hand at fixed offsets so the wire layout is pinned, not
	// just round-tripped.
	seq := binary.BigEndian.Uint32(raw[0:4])
	unixMS := int64(binary.BigEndian.Uint64(raw[4:12]))
	tempo := binary.BigEndian.Uint16(raw[12:14])
	frames := binary.BigEndian.Uint64(raw[14:22])
	dropped := binary.BigEndian.Uint64(raw[22:30])
	free := binary.BigEndian.Uint16(raw[30:32])
	filled := binary.BigEndian.Uint16(raw[32:34])
	rms := math.Float32frombits(binary.BigEndian.Uint32(raw[34:38]))
	avgMS := math.Float32frombits(binary.BigEndian.Uint32(raw[38:42]))
	maxMS := math.Float32frombits(binary.BigEndian.Uint32(raw[42:46]))

	if seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}
	if unixMS <= 0 {
		t.Errorf("timestamp = %d, want positive epoch milliseconds", unixMS)
	}
	if tempo != 120 {
		t.Errorf("tempo = %d, want 120", tempo)
	}
	if frames != 123456 {
		t.Errorf("frames = %d, want 123456", frames)
	}
	if dropped != 7 {
		t.Errorf("dropped = %d, want 7", dropped)
	}
	if free != 12 || filled != 4 {
		t.Errorf("pool occupancy = %d/%d, want 12/4", free, filled)
	}
	if rms != 0.25 {
		t.Errorf("rms = %v, want 0.25", rms)
	}
	if avgMS != 1.5 || maxMS != 3.25 {
		t.Errorf("callback latency = %v/%v, want 1.5/3.25", avgMS, maxMS)
	}

	// A second snapshot advances the sequence number.
	hub.Publish(events.TypeTelemetry, events.Telemetry{TempoBPM: 90})
	raw = readPacket(t, listener)
	if got := binary.BigEndian.Uint32(raw[0:4]); got != 2 {
		t.Errorf("second packet sequence = %d, want 2", got)
	}
}

func TestTelemetryPublisherStopIsIdempotent(t *testing.T) {
	_, sender := newLoopbackPair(t)

	hub := events.NewHub(0)
	t.Cleanup(hub.Close)

	pub, err := NewTelemetryPublisher(hub, sender)
	if err != nil {
		t.Fatalf("NewTelemetryPublisher: %v", err)
	}

	// Stop before Start is a no-op.
	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}

	pub.Start()
	pub.Start() // second Start is a no-op
	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pub.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewTelemetryPublisherErrors(t *testing.T) {
	_, sender := newLoopbackPair(t)
	hub := events.NewHub(0)
	t.Cleanup(hub.Close)

	if _, err := NewTelemetryPublisher(hub, nil); err == nil {
		t.Error("nil sender accepted")
	}
	if _, err := NewTelemetryPublisher(nil, sender); err == nil {
		t.Error("nil hub accepted")
	}
}

func TestUDPSenderClosed(t *testing.T) {
	_, sender := newLoopbackPair(t)

	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := sender.Send([]byte{1, 2, 3}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
}

func TestNewUDPSenderBadAddress(t *testing.T) {
	if _, err := NewUDPSender("not-a-real-host:port:extra"); err == nil {
		t.Error("malformed address accepted")
	}
}
