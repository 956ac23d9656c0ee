// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"spectrometer/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DevicePickerModel lists the capture-capable devices and lets the user pick
// the one to analyse.
type DevicePickerModel struct {
	devices       []audio.Device
	selectedIndex int
	chosen        bool
	viewport      viewport.Model
	ready         bool
	err           error
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

var pickerKeys = struct {
	Quit, Up, Down, Select key.Binding
}{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Select: key.NewBinding(key.WithKeys("enter")),
}

// NewDevicePickerModel creates a picker over devices, keeping only inputs.
// A nil slice makes Init query PortAudio.
func NewDevicePickerModel(devices []audio.Device) DevicePickerModel {
	return DevicePickerModel{devices: inputsOnly(devices)}
}

func inputsOnly(devices []audio.Device) []audio.Device {
	if devices == nil {
		return nil
	}
	out := make([]audio.Device, 0, len(devices))
	for _, d := range devices {
		if d.IsInput() {
			out = append(out, d)
		}
	}
	return out
}

// Init fetches the device list when none was supplied.
func (m DevicePickerModel) Init() tea.Cmd {
	if m.devices != nil {
		return nil
	}
	return fetchDevices
}

// fetchDevices gets the available audio devices from an initialized PortAudio.
func fetchDevices() tea.Msg {
	devices, err := audio.HostDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = inputsOnly(msg.devices)
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pickerKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, pickerKeys.Up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, pickerKeys.Down):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, pickerKeys.Select):
			if len(m.devices) > 0 {
				m.chosen = true
				return m, tea.Quit
			}
		}
		m.viewport.SetContent(m.renderDevices())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Selected returns the PortAudio ID of the chosen device, if any.
func (m DevicePickerModel) Selected() (int, bool) {
	if !m.chosen || len(m.devices) == 0 {
		return 0, false
	}
	return m.devices[m.selectedIndex].ID, true
}

// View renders the UI
func (m DevicePickerModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Render("Select Input Device")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Analyse • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		entry := fmt.Sprintf("[%d] %s\n    Input channels: %d • Default sample rate: %.0f Hz\n",
			device.ID, device.Name, device.MaxInputChannels, device.DefaultSampleRate)
		if i == m.selectedIndex {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker and returns the chosen device ID. ok is false
// when the user quit without choosing. PortAudio must be initialized.
func PickDevice() (id int, ok bool, err error) {
	p := tea.NewProgram(NewDevicePickerModel(nil), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return 0, false, fmt.Errorf("device picker: %w", err)
	}
	id, ok = final.(DevicePickerModel).Selected()
	return id, ok, nil
}
