package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"beatbox/internal/config"
	"beatbox/pkg/build"
)

// ParseArgs builds the effective configuration in three layers: the
// config file (or defaults), then environment overrides, then any flag
// the user set on the command line.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	options := config.NewConfig()

	var (
		configPath string

		flagDevice       int
		flagOutputDevice int
		flagSampleRate   float64
		flagFrames       int
		flagLowLatency   bool
		flagTempo        int
		flagRecord       bool
		flagOutputDir    string
		flagWebSocket    bool
		flagUDP          bool
		flagDebug        bool
		flagLogLevel     string
	)

	rootCmd := &cobra.Command{
		Use:           "beatbox",
		Short:         "Real-time beatbox classification and timing trainer",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			*options = *loaded

			// Flags the user actually set win over file and env values.
			f := cmd.Flags()
			if f.Changed("device") {
				options.Audio.InputDevice = flagDevice
			}
			if f.Changed("output-device") {
				options.Audio.OutputDevice = flagOutputDevice
			}
			if f.Changed("sample-rate") {
				options.Audio.SampleRate = flagSampleRate
			}
			if f.Changed("frames-per-buffer") {
				options.Audio.FramesPerBuffer = flagFrames
			}
			if f.Changed("low-latency") {
				options.Audio.LowLatency = flagLowLatency
			}
			if f.Changed("tempo") {
				options.Audio.TempoBPM = flagTempo
			}
			if f.Changed("record") {
				options.Recording.Enabled = flagRecord
			}
			if f.Changed("output-dir") {
				options.Recording.OutputDir = flagOutputDir
			}
			if f.Changed("websocket") {
				options.Transport.WebSocketEnabled = flagWebSocket
			}
			if f.Changed("udp") {
				options.Transport.UDPEnabled = flagUDP
			}
			if f.Changed("debug") {
				options.Debug = flagDebug
			}
			if options.Debug {
				options.LogLevel = "debug"
			}
			if f.Changed("log-level") {
				options.LogLevel = flagLogLevel
			}

			return options.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand: run the trainer headless.
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	// Calibrate command
	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Record your kick, snare and hihat to tune the classifier",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "calibrate"
		},
	}
	rootCmd.AddCommand(calibrateCmd)

	// Monitor command
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the trainer with the terminal monitor UI",
		Run: func(cmd *cobra.Command, args []string) {
			options.TUIMode = true
		},
	}
	rootCmd.AddCommand(monitorCmd)

	// Configuration file
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file. Default is ./config.yaml if present.")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&flagDevice, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVar(&flagOutputDevice, "output-device", config.DefaultDeviceID,
		"Specify output device ID for the click track")
	rootCmd.PersistentFlags().Float64VarP(&flagSampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&flagFrames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&flagLowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Trainer Configuration
	rootCmd.PersistentFlags().IntVarP(&flagTempo, "tempo", "t", config.DefaultTempoBPM,
		"Metronome tempo in beats per minute")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&flagRecord, "record", "r", false,
		"Record audio from the specified input device")
	rootCmd.PersistentFlags().StringVarP(&flagOutputDir, "output-dir", "o", config.DefaultRecordingDir,
		"Directory for recorded audio files")

	// Transport Configuration
	rootCmd.PersistentFlags().BoolVarP(&flagWebSocket, "websocket", "w", false,
		"Serve the JSON event stream over WebSocket")
	rootCmd.PersistentFlags().BoolVarP(&flagUDP, "udp", "u", false,
		"Send binary telemetry packets over UDP")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "v", false,
		"Show verbose output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"Logging level (debug, info, warn, error)")

	// Execute the CLI
	rootCmd.SetArgs(os.Args[1:])
	err := rootCmd.Execute()
	if err != nil {
		return nil, err
	}

	return options, nil
}
