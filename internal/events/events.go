// Package events defines the engine's outward-facing event surface: the
// payload types and the lossy broadcast hub that carries them to
// consumers (WebSocket clients, UDP telemetry, the TUI).
package events

// Type discriminates event payloads in the envelope.
type Type string

const (
	TypeClassification Type = "classification"
	TypeOnset          Type = "onset"
	TypeCalibration    Type = "calibration_progress"
	TypeTelemetry      Type = "telemetry"
	TypeLifecycle      Type = "lifecycle"
)

// Event is the envelope every consumer sees. Seq increases by one per
// published event; a gap observed by a consumer means it fell behind
// and events were skipped for it.
type Event struct {
	Type   Type   `json:"type"`
	Seq    uint64 `json:"seq"`
	UnixMS int64  `json:"unix_ms"`
	Data   any    `json:"data"`
}

// Classification reports one detected and classified hit.
type Classification struct {
	Sound      string  `json:"sound"`
	Timing     string  `json:"timing"`
	DeltaMS    float64 `json:"delta_ms"`
	Timestamp  uint64  `json:"timestamp"` // absolute frame index of the onset
	Confidence float64 `json:"confidence"`
}

// Onset reports raw detector output before classification. Debug
// surfaces plot these against the classification stream.
type Onset struct {
	Timestamp uint64  `json:"timestamp"`
	RMS       float64 `json:"rms"`
	Centroid  float64 `json:"centroid_hz"`
	ZCR       float64 `json:"zcr"`
	Flatness  float64 `json:"flatness"`
	Rolloff   float64 `json:"rolloff_hz"`
	DecayMS   float64 `json:"decay_ms"`
}

// CalibrationProgress reports the calibration state machine position.
// Thresholds is set on the event published when calibration finishes.
type CalibrationProgress struct {
	Phase      string              `json:"phase"`
	Collected  int                 `json:"collected"`
	Required   int                 `json:"required"`
	Thresholds *ThresholdsSnapshot `json:"thresholds,omitempty"`
}

// ThresholdsSnapshot is the classifier threshold set after calibration.
type ThresholdsSnapshot struct {
	KickCentroid  float64 `json:"kick_centroid_hz"`
	KickZCR       float64 `json:"kick_zcr"`
	SnareCentroid float64 `json:"snare_centroid_hz"`
	HihatZCR      float64 `json:"hihat_zcr"`
}

// Telemetry is the periodic engine health snapshot.
type Telemetry struct {
	TempoBPM        int     `json:"tempo_bpm"`
	FramesProcessed uint64  `json:"frames_processed"`
	DroppedFrames   uint64  `json:"dropped_frames"`
	FreeBuffers     int     `json:"free_buffers"`
	FilledBuffers   int     `json:"filled_buffers"`
	RMS             float64 `json:"rms"`
	CallbackAvgMS   float64 `json:"callback_avg_ms"`
	CallbackMaxMS   float64 `json:"callback_max_ms"`
}

// Lifecycle marks engine state transitions.
type Lifecycle struct {
	State    string `json:"state"` // "started", "stopped", "tempo_changed"
	TempoBPM int    `json:"tempo_bpm"`
}
