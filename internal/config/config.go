package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the trainer engine.
const (
	// Metronome and engine defaults
	DefaultTempoBPM = 120 // Resting practice tempo
	MinTempoBPM     = 40  // Slowest supported practice tempo
	MaxTempoBPM     = 240 // Fastest supported practice tempo

	// Audio device defaults
	DefaultInputChannels   = 1           // Mono capture
	DefaultOutputChannels  = 1           // Mono click output
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 48000       // Matches most duplex interfaces

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer

	// Capture buffer pool
	DefaultBufferCount = 16   // Pooled capture buffers
	DefaultBufferSize  = 2048 // Samples per pooled buffer

	// Onset detection
	DefaultOnsetWindowSize  = 256    // FFT window (power of 2)
	DefaultOnsetHopSize     = 64     // Hop between analysis windows
	DefaultMedianHalfWindow = 50     // Median filter half width (101-wide window)
	DefaultThresholdOffset  = 0.15   // Flux above median required for a peak
	DefaultMinChunkSize     = 512    // Samples accumulated before analysis runs
	DefaultFFTWindow        = "Hann" // Analysis window function

	// Feature extraction
	DefaultFeatureWindowSize = 1024 // Samples per onset feature window (power of 2)

	// Calibration
	DefaultSamplesPerSound = 10  // Accepted hits per sound class
	DefaultThresholdMargin = 1.2 // Threshold = class mean * margin

	// Classification
	DefaultClassifierLevel = 1 // 1 = kick/snare/hihat, 2 = subclasses

	// Recording
	DefaultRecordingFormat   = "wav"
	DefaultRecordingBitDepth = 16
	DefaultRecordingDir      = "./recordings"

	// Transport
	DefaultWebSocketPort     = "8080"
	DefaultUDPTargetAddress  = "127.0.0.1:9090"
	DefaultTelemetryInterval = 500 * time.Millisecond
)

// Config holds all runtime configuration for the trainer. It is loaded
// from YAML, then overridden by environment variables and command line
// flags, in that order.
type Config struct {
	Debug    bool   `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel string `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command  string `yaml:"command,omitempty"` // A one-off command to execute instead of running the engine (e.g., "list").
	TUIMode  bool   `yaml:"-"`                 // Terminal UI mode, set from the CLI only.

	Audio       AudioConfig       `yaml:"audio"`       // Device, stream and pool settings.
	Analysis    AnalysisConfig    `yaml:"analysis"`    // Onset detection and classification settings.
	Calibration CalibrationConfig `yaml:"calibration"` // Per-user threshold calibration settings.
	Recording   RecordingConfig   `yaml:"recording"`   // Input capture recording settings.
	Transport   TransportConfig   `yaml:"transport"`   // Event fan-out settings (WebSocket, UDP telemetry).
}

// AudioConfig holds settings for the duplex stream and the capture pool.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for capture (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for the click output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Audio frames per callback invocation.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	InputChannels   int     `yaml:"input_channels"`    // Capture channels; >1 is downmixed to mono.
	OutputChannels  int     `yaml:"output_channels"`   // Click output channels.
	TempoBPM        int     `yaml:"tempo_bpm"`         // Initial metronome tempo.
	BufferCount     int     `yaml:"buffer_count"`      // Pooled capture buffers shared with analysis.
	BufferSize      int     `yaml:"buffer_size"`       // Samples per pooled buffer.
}

// AnalysisConfig holds onset detector and classifier tuning.
type AnalysisConfig struct {
	WindowSize        int     `yaml:"onset_window_size"`   // Onset FFT window; must be a power of 2.
	HopSize           int     `yaml:"onset_hop_size"`      // Hop between onset windows; must divide into WindowSize.
	MedianHalfWindow  int     `yaml:"median_half_window"`  // Adaptive threshold median half width.
	ThresholdOffset   float64 `yaml:"threshold_offset"`    // Flux margin above the median.
	MinChunkSize      int     `yaml:"min_chunk_size"`      // Minimum accumulated samples before analysis.
	FeatureWindowSize int     `yaml:"feature_window_size"` // Samples per onset feature window; power of 2.
	FFTWindow         string  `yaml:"fft_window"`          // Window function name (e.g., "Hann", "Hamming").
	ClassifierLevel   int     `yaml:"classifier_level"`    // 1 for base classes, 2 for subclasses.
}

// CalibrationConfig holds per-user threshold calibration settings.
type CalibrationConfig struct {
	SamplesPerSound int     `yaml:"samples_per_sound"` // Accepted hits required per sound class.
	ThresholdMargin float64 `yaml:"threshold_margin"`  // Threshold = class mean * margin.
}

// RecordingConfig holds settings for recording the capture stream.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Enable recording the mic input to file.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	Format      string `yaml:"format"`               // File format for recordings (wav only for now).
	BitDepth    int    `yaml:"bit_depth"`            // Bit depth for recorded audio (16, 24 or 32).
	MaxDuration int    `yaml:"max_duration_seconds"` // Stop recording after this many seconds (0 for unlimited).
}

// TransportConfig holds settings for publishing events off the process.
type TransportConfig struct {
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`  // Serve the JSON event stream over WebSocket.
	WebSocketPort     string        `yaml:"websocket_port"`     // Port for the /events endpoint.
	UDPEnabled        bool          `yaml:"udp_enabled"`        // Send binary telemetry packets over UDP.
	UDPTargetAddress  string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	TelemetryInterval time.Duration `yaml:"telemetry_interval"` // Interval between telemetry snapshots.
}

// NewConfig creates a Config with default values. This is the base
// configuration before applying a config file, environment variables or
// command line arguments.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
			OutputChannels:  DefaultOutputChannels,
			TempoBPM:        DefaultTempoBPM,
			BufferCount:     DefaultBufferCount,
			BufferSize:      DefaultBufferSize,
		},
		Analysis: AnalysisConfig{
			WindowSize:        DefaultOnsetWindowSize,
			HopSize:           DefaultOnsetHopSize,
			MedianHalfWindow:  DefaultMedianHalfWindow,
			ThresholdOffset:   DefaultThresholdOffset,
			MinChunkSize:      DefaultMinChunkSize,
			FeatureWindowSize: DefaultFeatureWindowSize,
			FFTWindow:         DefaultFFTWindow,
			ClassifierLevel:   DefaultClassifierLevel,
		},
		Calibration: CalibrationConfig{
			SamplesPerSound: DefaultSamplesPerSound,
			ThresholdMargin: DefaultThresholdMargin,
		},
		Recording: RecordingConfig{
			Enabled:     false,
			OutputDir:   DefaultRecordingDir,
			Format:      DefaultRecordingFormat,
			BitDepth:    DefaultRecordingBitDepth,
			MaxDuration: 0,
		},
		Transport: TransportConfig{
			WebSocketEnabled:  false,
			WebSocketPort:     DefaultWebSocketPort,
			UDPEnabled:        false,
			UDPTargetAddress:  DefaultUDPTargetAddress,
			TelemetryInterval: DefaultTelemetryInterval,
		},
	}
}
