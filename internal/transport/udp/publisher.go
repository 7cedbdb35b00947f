// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

// PacketWriter is the outbound half of a sender. UDPSender satisfies
// it; the publisher depends on nothing else.
type PacketWriter interface {
	Send(data []byte) error
}

// TelemetryPublisher forwards Telemetry events from the hub as fixed
// binary packets over UDP, for debug collectors that plot engine load
// without parsing JSON. It runs in a goroutine managed by Start and
// Stop.
type TelemetryPublisher struct {
	sender PacketWriter
	hub    *events.Hub

	sub      *events.Subscription
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects sub during Start/Stop.

	sequenceNum uint32
	// Reusable buffer for constructing the binary packet.
	packetBuffer *bytes.Buffer
}

// NewTelemetryPublisher creates a publisher wired to the hub and the
// given sender.
func NewTelemetryPublisher(hub *events.Hub, sender PacketWriter) (*TelemetryPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("TelemetryPublisher: UDP sender cannot be nil")
	}
	if hub == nil {
		return nil, fmt.Errorf("TelemetryPublisher: event hub cannot be nil")
	}

	return &TelemetryPublisher{
		sender:       sender,
		hub:          hub,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start subscribes to the hub and begins forwarding telemetry packets.
// Safe to call multiple times; subsequent calls are no-ops while
// running.
func (p *TelemetryPublisher) Start() {
	p.mu.Lock()
	if p.sub != nil {
		p.mu.Unlock()
		applog.Warnf("TelemetryPublisher: Start called but already running.")
		return
	}

	p.sub = p.hub.Subscribe(16)
	p.stopOnce = sync.Once{}
	sub := p.sub
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("TelemetryPublisher: publisher goroutine started")
		for evt := range sub.C {
			if evt.Type != events.TypeTelemetry {
				continue
			}
			snapshot, ok := evt.Data.(events.Telemetry)
			if !ok {
				continue
			}
			p.buildAndSendPacket(evt.UnixMS, snapshot)
		}
		applog.Infof("TelemetryPublisher: publisher goroutine finished")
	}()
}

// Stop cancels the hub subscription and waits for the goroutine to
// drain. Safe to call multiple times.
func (p *TelemetryPublisher) Stop() error {
	p.mu.Lock()
	if p.sub == nil {
		p.mu.Unlock()
		applog.Debugf("TelemetryPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		p.sub.Close()
		p.sub = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

/*
Telemetry Packet Structure (BigEndian), 46 bytes total

+------------------------------------------------------------------------------+
| Field             | Data Type | Size (Bytes) | Description                   |
|-------------------|-----------|--------------|-------------------------------|
| Sequence Number   | uint32    | 4            | Monotonically increasing      |
| Timestamp         | int64     | 8            | Milliseconds since epoch      |
| Tempo             | uint16    | 2            | Metronome tempo in BPM        |
| Frames Processed  | uint64    | 8            | Total frames through callback |
| Dropped Frames    | uint64    | 8            | Frames lost to pool pressure  |
| Free Buffers      | uint16    | 2            | Free queue occupancy          |
| Filled Buffers    | uint16    | 2            | Filled queue occupancy        |
| RMS               | float32   | 4            | Last analysis chunk RMS       |
| Callback Avg      | float32   | 4            | Mean callback time, ms        |
| Callback Max      | float32   | 4            | Worst callback time, ms       |
+------------------------------------------------------------------------------+
*/

// telemetryPacket mirrors the wire layout above. All fields are fixed
// size so a single binary.Write packs the whole struct.
type telemetryPacket struct {
	Sequence      uint32
	UnixMS        int64
	TempoBPM      uint16
	Frames        uint64
	Dropped       uint64
	FreeBuffers   uint16
	FilledBuffers uint16
	RMS           float32
	CallbackAvgMS float32
	CallbackMaxMS float32
}

// buildAndSendPacket packs one telemetry snapshot and fires it at the
// collector. Packing errors skip the packet; send errors are logged by
// the sender.
func (p *TelemetryPublisher) buildAndSendPacket(unixMS int64, snapshot events.Telemetry) {
	p.sequenceNum++

	pkt := telemetryPacket{
		Sequence:      p.sequenceNum,
		UnixMS:        unixMS,
		TempoBPM:      uint16(snapshot.TempoBPM),
		Frames:        snapshot.FramesProcessed,
		Dropped:       snapshot.DroppedFrames,
		FreeBuffers:   uint16(snapshot.FreeBuffers),
		FilledBuffers: uint16(snapshot.FilledBuffers),
		RMS:           float32(snapshot.RMS),
		CallbackAvgMS: float32(snapshot.CallbackAvgMS),
		CallbackMaxMS: float32(snapshot.CallbackMaxMS),
	}

	p.packetBuffer.Reset()
	if err := binary.Write(p.packetBuffer, binary.BigEndian, pkt); err != nil {
		applog.Errorf("TelemetryPublisher: error packing packet: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("TelemetryPublisher: sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close implements the io.Closer interface. It gracefully stops the
// publisher goroutine.
func (p *TelemetryPublisher) Close() error {
	return p.Stop()
}

// Ensure TelemetryPublisher satisfies the io.Closer interface.
var _ interface{ Close() error } = (*TelemetryPublisher)(nil)
