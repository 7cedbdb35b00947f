// Package transport fans the event stream out to external consumers.
// Each Transport is one egress surface (console, WebSocket); a Fanout
// drives them all from a single hub subscription.
package transport

import (
	"sync"

	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

// Transport defines a generic interface for sending events to an
// external consumer. Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}

// Fanout subscribes to the hub and forwards every event to each
// attached transport. A transport error is logged and skipped; one
// slow or broken consumer never stalls the others.
type Fanout struct {
	hub        *events.Hub
	transports []Transport

	mu      sync.Mutex
	sub     *events.Subscription
	wg      sync.WaitGroup
	running bool
}

// NewFanout wires the given transports to the hub. Start begins
// delivery.
func NewFanout(hub *events.Hub, transports ...Transport) *Fanout {
	return &Fanout{hub: hub, transports: transports}
}

// Start subscribes to the hub and launches the delivery goroutine.
// Safe to call again after Stop; a second Start while running is a
// no-op.
func (f *Fanout) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		applog.Warnf("Fanout: Start called but already running.")
		return
	}

	f.sub = f.hub.Subscribe(256)
	f.running = true
	sub := f.sub

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for evt := range sub.C {
			for _, t := range f.transports {
				if err := t.Send(evt); err != nil {
					applog.Warnf("Fanout: transport %T send error: %v", t, err)
				}
			}
		}
	}()
	applog.Infof("Fanout: delivering events to %d transport(s)", len(f.transports))
}

// Stop ends delivery and waits for the in-flight event to finish. The
// transports stay open for a later Start.
func (f *Fanout) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.sub.Close()
	f.sub = nil
	f.mu.Unlock()

	f.wg.Wait()
}

// Close stops delivery and closes every transport, returning the first
// close error encountered.
func (f *Fanout) Close() error {
	f.Stop()

	var firstErr error
	for _, t := range f.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
