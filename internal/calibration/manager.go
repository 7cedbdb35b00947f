// SPDX-License-Identifier: MIT
// Package calibration adapts the classifier thresholds to one
// performer. A guided session records ten accepted hits per sound
// (kick, then snare, then hi-hat); Finish averages each class and
// publishes the scaled means as the new thresholds.
package calibration

import (
	"fmt"
	"sync"

	"beatbox/internal/analysis"
	"beatbox/internal/config"
	"beatbox/internal/events"
	applog "beatbox/internal/log"
)

// Phase is the calibration state machine position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecordingKick
	PhaseRecordingSnare
	PhaseRecordingHiHat
	PhaseCompleted
)

// String returns the wire name used in progress events.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecordingKick:
		return "recording_kick"
	case PhaseRecordingSnare:
		return "recording_snare"
	case PhaseRecordingHiHat:
		return "recording_hihat"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// nextPhase is the only legal walk through the session. A phase absent
// here (other than the terminal ones) is corruption.
var nextPhase = map[Phase]Phase{
	PhaseRecordingKick:  PhaseRecordingSnare,
	PhaseRecordingSnare: PhaseRecordingHiHat,
	PhaseRecordingHiHat: PhaseCompleted,
}

// Accepted feature ranges. A centroid outside the audible band or a
// rate outside its mathematical range means the onset window caught
// garbage, not a hit.
const (
	minValidCentroidHz = 50.0
	maxValidCentroidHz = 20000.0
)

// Manager owns the calibration session. The analysis pipeline feeds it
// through the Collect/Recording pair while a phase is recording; the
// control surface drives Start/Finish/Reset. All methods are safe for
// concurrent use.
type Manager struct {
	mu    sync.Mutex
	phase Phase
	kick  []analysis.Features
	snare []analysis.Features
	hihat []analysis.Features

	required int
	margin   float64
	store    *analysis.ThresholdStore
	hub      *events.Hub
}

// NewManager wires a calibration session against the shared threshold
// store and event hub.
func NewManager(cfg *config.Config, store *analysis.ThresholdStore, hub *events.Hub) *Manager {
	return &Manager{
		required: cfg.Calibration.SamplesPerSound,
		margin:   cfg.Calibration.ThresholdMargin,
		store:    store,
		hub:      hub,
	}
}

// Start begins a fresh session. Allowed from Idle or Completed; a
// second Start during a recording phase fails.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseIdle, PhaseCompleted:
	default:
		return fmt.Errorf("%w: phase %s", ErrAlreadyInProgress, m.phase)
	}

	m.kick = m.kick[:0]
	m.snare = m.snare[:0]
	m.hihat = m.hihat[:0]
	m.phase = PhaseRecordingKick
	applog.Infof("calibration: session started, %d samples per sound", m.required)
	m.publishProgressLocked(nil)
	return nil
}

// Recording reports whether Collect currently accepts samples. The
// analysis pipeline checks this per onset.
func (m *Manager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case PhaseRecordingKick, PhaseRecordingSnare, PhaseRecordingHiHat:
		return true
	}
	return false
}

// Collect adds one onset's features to the current phase. Rejected
// samples do not advance the count. Reaching the quota moves the
// session to the next phase.
func (m *Manager) Collect(f analysis.Features) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, err := m.bucketLocked()
	if err != nil {
		return err
	}
	if f.Centroid < minValidCentroidHz || f.Centroid > maxValidCentroidHz {
		return fmt.Errorf("%w: centroid %.1f Hz outside [%.0f, %.0f]",
			ErrInvalidFeatures, f.Centroid, minValidCentroidHz, maxValidCentroidHz)
	}
	if f.ZCR < 0 || f.ZCR > 1 {
		return fmt.Errorf("%w: zero-crossing rate %.3f outside [0, 1]", ErrInvalidFeatures, f.ZCR)
	}

	*bucket = append(*bucket, f)
	if len(*bucket) >= m.required {
		next, ok := nextPhase[m.phase]
		if !ok {
			return fmt.Errorf("%w: no transition from phase %d", ErrStatePoisoned, int(m.phase))
		}
		applog.Infof("calibration: phase %s complete, moving to %s", m.phase, next)
		m.phase = next
	}
	m.publishProgressLocked(nil)
	return nil
}

// Finish computes the calibrated thresholds and publishes them to the
// shared store. Allowed only once every phase has its quota.
func (m *Manager) Finish() (analysis.Thresholds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseCompleted:
	case PhaseIdle:
		return analysis.Thresholds{}, ErrNotComplete
	case PhaseRecordingKick, PhaseRecordingSnare, PhaseRecordingHiHat:
		bucket, err := m.bucketLocked()
		if err != nil {
			return analysis.Thresholds{}, err
		}
		return analysis.Thresholds{}, fmt.Errorf("%w: phase %s has %d of %d",
			ErrInsufficientSamples, m.phase, len(*bucket), m.required)
	default:
		return analysis.Thresholds{}, fmt.Errorf("%w: phase %d", ErrStatePoisoned, int(m.phase))
	}

	t := analysis.Thresholds{
		KickCentroid:  meanCentroid(m.kick) * m.margin,
		KickZCR:       meanZCR(m.kick) * m.margin,
		SnareCentroid: meanCentroid(m.snare) * m.margin,
		HihatZCR:      meanZCR(m.hihat) * m.margin,
		Calibrated:    true,
	}
	m.store.Store(t)
	applog.Infof("calibration: thresholds published (kick %.0f Hz/%.3f, snare %.0f Hz, hihat %.3f)",
		t.KickCentroid, t.KickZCR, t.SnareCentroid, t.HihatZCR)

	m.publishProgressLocked(&events.ThresholdsSnapshot{
		KickCentroid:  t.KickCentroid,
		KickZCR:       t.KickZCR,
		SnareCentroid: t.SnareCentroid,
		HihatZCR:      t.HihatZCR,
	})
	return t, nil
}

// Reset abandons the session and returns to Idle. Already-published
// thresholds stay in effect.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseIdle
	m.kick = m.kick[:0]
	m.snare = m.snare[:0]
	m.hihat = m.hihat[:0]
	applog.Infof("calibration: session reset")
	m.publishProgressLocked(nil)
}

// Progress reports the machine position for control surfaces.
func (m *Manager) Progress() (phase Phase, collected, required int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase, m.collectedLocked(), m.required
}

// bucketLocked maps the current phase to its sample slice.
func (m *Manager) bucketLocked() (*[]analysis.Features, error) {
	switch m.phase {
	case PhaseRecordingKick:
		return &m.kick, nil
	case PhaseRecordingSnare:
		return &m.snare, nil
	case PhaseRecordingHiHat:
		return &m.hihat, nil
	case PhaseIdle, PhaseCompleted:
		return nil, fmt.Errorf("%w: phase %s", ErrNotRecording, m.phase)
	default:
		return nil, fmt.Errorf("%w: phase %d", ErrStatePoisoned, int(m.phase))
	}
}

func (m *Manager) collectedLocked() int {
	switch m.phase {
	case PhaseRecordingKick:
		return len(m.kick)
	case PhaseRecordingSnare:
		return len(m.snare)
	case PhaseRecordingHiHat:
		return len(m.hihat)
	case PhaseCompleted:
		return m.required
	default:
		return 0
	}
}

func (m *Manager) publishProgressLocked(thresholds *events.ThresholdsSnapshot) {
	m.hub.Publish(events.TypeCalibration, events.CalibrationProgress{
		Phase:      m.phase.String(),
		Collected:  m.collectedLocked(),
		Required:   m.required,
		Thresholds: thresholds,
	})
}

func meanCentroid(samples []analysis.Features) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, f := range samples {
		sum += f.Centroid
	}
	return sum / float64(len(samples))
}

func meanZCR(samples []analysis.Features) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, f := range samples {
		sum += f.ZCR
	}
	return sum / float64(len(samples))
}
