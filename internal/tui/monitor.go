// Package tui is the terminal monitor: a live view of the
// classification feed and engine health, with a device listing screen
// and keys for tempo and calibration commands.
package tui

import (
	"fmt"
	"strings"

	"beatbox/internal/audio"
	"beatbox/internal/engine"
	"beatbox/internal/events"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	FeedScreen ScreenType = iota
	DevicesScreen
)

// maxFeedLines caps the hit feed so a long session does not grow the
// model without bound.
const maxFeedLines = 128

// tempoStepBPM is how far the +/- keys move the click track.
const tempoStepBPM = 5

// MonitorModel represents the Bubble Tea model for the live monitor
type MonitorModel struct {
	handle *engine.Handle
	sub    *events.Subscription

	viewport     viewport.Model
	ready        bool
	err          error
	activeScreen ScreenType

	devices       []audio.Device
	selectedIndex int

	feed       []string
	tempoBPM   int
	running    bool
	stats      events.Telemetry
	calib      events.CalibrationProgress
	sampleRate float64
	notice     string
}

// Init initializes the Bubble Tea model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(fetchDevices, waitForEvent(m.sub))
}

// fetchDevices gets the available audio devices
func fetchDevices() tea.Msg {
	devices, err := audio.GetDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

// waitForEvent blocks until the hub delivers the next event. The Update
// handler re-issues it after every eventMsg, so exactly one receive is
// in flight at a time.
func waitForEvent(sub *events.Subscription) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-sub.C
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg{evt}
	}
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

type eventMsg struct {
	event events.Event
}

type feedClosedMsg struct{}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Initialize the viewport with the window size
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			m.viewport.SetContent(m.renderActiveScreen())
		} else {
			// Just update viewport dimensions
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}

	case devicesMsg:
		m.devices = msg.devices
		if m.ready && m.activeScreen == DevicesScreen {
			m.viewport.SetContent(m.renderDevices())
		}

	case errMsg:
		m.err = msg.err

	case eventMsg:
		m = m.applyEvent(msg.event)
		if m.ready && m.activeScreen == FeedScreen {
			m.viewport.SetContent(m.renderFeed())
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, waitForEvent(m.sub))

	case feedClosedMsg:
		// The hub shut down underneath us; nothing left to show.
		return m, tea.Quit

	case tea.KeyMsg:
		// First check for keys that should work everywhere
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		// Then handle screen-specific keys. Handled keys return here so
		// the viewport's own bindings (d, f, j, k...) don't also fire.
		if m.activeScreen == FeedScreen {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("d"))):
				m.activeScreen = DevicesScreen
				m.viewport.SetContent(m.renderDevices())
				return m, nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("+", "="))):
				return m.adjustTempo(tempoStepBPM), nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("-", "_"))):
				return m.adjustTempo(-tempoStepBPM), nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("c"))):
				return m.runCommand("calibration started", m.handle.StartCalibration), nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("f"))):
				return m.runCommand("calibration saved", func() error {
					_, err := m.handle.FinishCalibration()
					return err
				}), nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("x"))):
				return m.runCommand("calibration reset", m.handle.ResetCalibration), nil
			}
		} else if m.activeScreen == DevicesScreen {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc", "d"))):
				// Return to feed screen
				m.activeScreen = FeedScreen
				m.viewport.SetContent(m.renderFeed())
				m.viewport.GotoBottom()
				return m, nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
					m.viewport.SetContent(m.renderDevices())
				}
				return m, nil

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
					m.viewport.SetContent(m.renderDevices())
				}
				return m, nil
			}
		}
	}

	// Handle viewport updates
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// applyEvent folds one hub event into the model state and the feed.
func (m MonitorModel) applyEvent(evt events.Event) MonitorModel {
	switch data := evt.Data.(type) {
	case events.Classification:
		m.feed = append(m.feed, m.formatClassification(data))

	case events.CalibrationProgress:
		m.calib = data
		if data.Thresholds != nil {
			t := data.Thresholds
			m.feed = append(m.feed, fmt.Sprintf(
				"calibration: kick %.0f Hz (zcr %.3f)  snare %.0f Hz  hihat zcr %.3f",
				t.KickCentroid, t.KickZCR, t.SnareCentroid, t.HihatZCR))
		}

	case events.Telemetry:
		m.stats = data
		m.tempoBPM = data.TempoBPM

	case events.Lifecycle:
		m.running = data.State != "stopped"
		m.tempoBPM = data.TempoBPM
		m.feed = append(m.feed, infoStyle.Render(
			fmt.Sprintf("engine: %s (tempo %d BPM)", data.State, data.TempoBPM)))
	}

	if len(m.feed) > maxFeedLines {
		m.feed = m.feed[len(m.feed)-maxFeedLines:]
	}
	return m
}

// formatClassification renders one hit as a feed line. On-time hits are
// highlighted; that is the whole point of practicing.
func (m MonitorModel) formatClassification(c events.Classification) string {
	secs := float64(c.Timestamp) / m.sampleRate
	line := fmt.Sprintf("%8.2fs  %-6s %-8s %+7.1f ms  conf %.2f",
		secs, c.Sound, c.Timing, c.DeltaMS, c.Confidence)
	if c.Timing == "on_time" {
		line = highlightStyle.Render(line)
	}
	return line
}

// adjustTempo nudges the click track and reports rejections inline.
func (m MonitorModel) adjustTempo(delta int) MonitorModel {
	next := m.tempoBPM + delta
	if err := m.handle.SetTempo(next); err != nil {
		m.notice = err.Error()
		return m
	}
	m.tempoBPM = next
	m.notice = ""
	return m
}

// runCommand invokes a handle command and surfaces the outcome in the
// status bar.
func (m MonitorModel) runCommand(okNotice string, fn func() error) MonitorModel {
	if err := fn(); err != nil {
		m.notice = err.Error()
		return m
	}
	m.notice = okNotice
	return m
}

// View renders the UI
func (m MonitorModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == FeedScreen {
		title = titleStyle.Render("Beatbox Trainer")
		help = infoStyle.Render("+/-: Tempo • c/f/x: Calibration • d: Devices • q: Quit")
	} else {
		title = titleStyle.Render("Audio Devices")
		help = infoStyle.Render("↑/↓: Navigate • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", title, m.renderStatus(), m.viewport.View(), help)
}

// renderStatus formats the single-line engine health bar.
func (m MonitorModel) renderStatus() string {
	state := warnStyle.Render("○ stopped")
	if m.running {
		state = highlightStyle.Render("● running")
	}

	line := fmt.Sprintf("%s  %d BPM • frames %d • dropped %d • buffers %d/%d • rms %.3f • cb %.1f/%.1f ms",
		state, m.tempoBPM,
		m.stats.FramesProcessed, m.stats.DroppedFrames,
		m.stats.FreeBuffers, m.stats.FilledBuffers,
		m.stats.RMS, m.stats.CallbackAvgMS, m.stats.CallbackMaxMS)

	if m.calib.Phase != "" && m.calib.Phase != "idle" && m.calib.Phase != "completed" {
		line += highlightStyle.Render(fmt.Sprintf(" • calibrating %s %d/%d",
			m.calib.Phase, m.calib.Collected, m.calib.Required))
	}
	if m.notice != "" {
		line += warnStyle.Render(" • " + m.notice)
	}
	return line
}

// renderActiveScreen picks the viewport content for the current screen.
func (m MonitorModel) renderActiveScreen() string {
	if m.activeScreen == DevicesScreen {
		return m.renderDevices()
	}
	return m.renderFeed()
}

// renderFeed formats the hit feed
func (m MonitorModel) renderFeed() string {
	if len(m.feed) == 0 {
		return "Waiting for hits..."
	}
	return strings.Join(m.feed, "\n")
}

// renderDevices formats the device list
func (m MonitorModel) renderDevices() string {
	var sb strings.Builder

	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n",
			device.ID, device.Name, device.Role())
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n",
			device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// NewMonitorModel creates a monitor model bound to a running handle.
func NewMonitorModel(h *engine.Handle) MonitorModel {
	stats := h.Stats()
	return MonitorModel{
		handle:       h,
		sub:          h.Subscribe(256),
		activeScreen: FeedScreen,
		tempoBPM:     stats.TempoBPM,
		running:      stats.Running,
		sampleRate:   h.SampleRate(),
	}
}

// StartMonitorUI launches the Bubble Tea TUI on an existing handle and
// blocks until the user quits.
func StartMonitorUI(h *engine.Handle) error {
	m := NewMonitorModel(h)
	defer m.sub.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
