// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
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

	plotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7CE0A8"))
)

// Spring angular frequencies for the smoothing range. Smoothing 0 disables the
// spring; values towards 1 move towards the slow end.
const (
	fastSpring = 30.0
	slowSpring = 3.0

	chromeLines = 4 // title, blank, blank, status
)

// LevelSource is the pull side the display reads from each frame.
type LevelSource interface {
	Latest() []float64
	Published() uint64
}

type keyMap struct {
	Quit   key.Binding
	Freeze key.Binding
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Freeze: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "freeze")),
}

type tickMsg time.Time

// SpectrumModel is the Bubble Tea model drawing the latest levels at a fixed
// refresh rate.
type SpectrumModel struct {
	source   LevelSource
	interval time.Duration
	title    string

	smoothing bool
	spring    harmonica.Spring
	pos, vel  []float64

	display []float64 // what the next View draws
	frames  uint64
	seen    uint64 // source counter at the last tick
	frozen  bool

	width, height int
}

// NewSpectrumModel creates a model polling source refreshHz times per
// second. smoothing in (0, 1] eases level changes with a critically damped
// spring.
func NewSpectrumModel(source LevelSource, title string, refreshHz int, smoothing float64) SpectrumModel {
	if refreshHz <= 0 {
		refreshHz = 30
	}
	m := SpectrumModel{
		source:   source,
		interval: time.Second / time.Duration(refreshHz),
		title:    title,
		width:    80,
		height:   24,
	}
	if smoothing > 0 {
		smoothing = min(smoothing, 1)
		freq := fastSpring - smoothing*(fastSpring-slowSpring)
		m.smoothing = true
		m.spring = harmonica.NewSpring(harmonica.FPS(refreshHz), freq, 1.0)
	}
	return m
}

func (m SpectrumModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m SpectrumModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles input, resizes and refresh ticks.
func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Freeze):
			m.frozen = !m.frozen
		}

	case tickMsg:
		if !m.frozen {
			m = m.refresh()
		}
		return m, m.tick()
	}
	return m, nil
}

// refresh pulls the latest levels and steps the smoothing springs.
func (m SpectrumModel) refresh() SpectrumModel {
	latest := m.source.Latest()
	m.seen = m.source.Published()
	m.frames++

	if len(m.display) != len(latest) {
		m.display = make([]float64, len(latest))
		m.pos = make([]float64, len(latest))
		m.vel = make([]float64, len(latest))
	}
	if !m.smoothing {
		copy(m.display, latest)
		return m
	}
	for i, target := range latest {
		m.pos[i], m.vel[i] = m.spring.Update(m.pos[i], m.vel[i], target)
		m.display[i] = min(max(m.pos[i], 0), 1)
	}
	return m
}

// Levels returns the values drawn by the next View.
func (m SpectrumModel) Levels() []float64 {
	return m.display
}

// View renders the UI
func (m SpectrumModel) View() string {
	cols := max(m.width, 1)
	rows := max(m.height-chromeLines, 1)

	plot := plotStyle.Render(strings.Join(Plot(m.display, cols, rows), "\n"))

	status := fmt.Sprintf("frames: %d • published: %d", m.frames, m.seen)
	if m.frozen {
		status += " • " + highlightStyle.Render("frozen")
	}
	help := infoStyle.Render(fmt.Sprintf("%s • space: freeze/resume • q: quit", status))

	return fmt.Sprintf("%s\n\n%s\n\n%s", titleStyle.Render(m.title), plot, help)
}

// RunSpectrum shows the spectrum until the user quits or ctx is cancelled.
func RunSpectrum(ctx context.Context, m SpectrumModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("spectrum display: %w", err)
	}
	return nil
}
