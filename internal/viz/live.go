// Package viz renders a running simulation in the terminal, one
// stepper step per animation tick with a chart of a tracked quantity.
package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/metrics"
	"github.com/san-kum/fieldsim/internal/state"
)

const (
	chartWidth      = 60
	chartHeight     = 8
	historyCapacity = 600
)

var (
	frameStyle  = lipgloss.NewStyle().Padding(1, 2)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Build constructs a fresh stepper and initial state. The live view
// calls it once at startup and again on reset, since steppers carry
// per-run memory.
type Build func() (contract.Stepper, *state.State, error)

// Model is the bubbletea model for the live view.
type Model struct {
	title    string
	tracked  string
	dt       time.Duration
	maxSteps int
	build    Build

	stepper contract.Stepper
	st      *state.State
	series  *metrics.Series
	step    int
	running bool
	err     error
}

// NewModel builds the live view. maxSteps of zero runs until quit.
func NewModel(title, tracked string, dt time.Duration, maxSteps int, build Build) (Model, error) {
	m := Model{
		title:    title,
		tracked:  tracked,
		dt:       dt,
		maxSteps: maxSteps,
		build:    build,
		series:   metrics.NewSeries(tracked),
		running:  true,
	}
	stepper, st, err := build()
	if err != nil {
		return Model{}, err
	}
	m.stepper = stepper
	m.st = st
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

// Update handles key presses and advances the run on each tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil && !m.done() {
				m.running = !m.running
			}
		case "r":
			m.reset()
		}
	case TickMsg:
		if m.running && m.err == nil && !m.done() {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) done() bool {
	return m.maxSteps > 0 && m.step >= m.maxSteps
}

// advance takes one stepper step, recording the pre-step state with
// its diagnostics merged in, the same view the run loop gives its
// observers.
func (m *Model) advance() {
	diags, next, err := m.stepper.Step(m.st, m.dt)
	if err != nil {
		m.err = err
		m.running = false
		return
	}

	observed := m.st.Copy()
	for name, q := range diags {
		observed.Set(name, q)
	}
	m.series.Observe(m.step, observed)

	out := state.New(m.st.Time.Add(m.dt))
	for _, name := range m.st.Names() {
		q, _ := m.st.Get(name)
		out.Set(name, q)
	}
	for name, q := range next {
		out.Set(name, q)
	}
	m.st = out
	m.step++
}

func (m *Model) reset() {
	stepper, st, err := m.build()
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.stepper = stepper
	m.st = st
	m.series.Reset()
	m.step = 0
	m.err = nil
	m.running = true
}

// View renders the chart and status block.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")
	b.WriteString(statusStyle.Render(m.status()) + "\n")

	if vals := plottable(m.series.Values(m.tracked)); len(vals) > 1 {
		chart := asciigraph.Plot(vals,
			asciigraph.Height(chartHeight),
			asciigraph.Width(chartWidth),
			asciigraph.Caption(m.tracked))
		b.WriteString(graphStyle.Render(chart) + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(labelStyle.Render("Step") + valueStyle.Render(m.stepCount()) + "\n")
	b.WriteString(labelStyle.Render("Model time") + valueStyle.Render(m.st.Time.Format("2006-01-02 15:04:05.000")) + "\n")
	if last := m.series.Last(m.tracked); !math.IsNaN(last) {
		b.WriteString(labelStyle.Render(m.tracked) + valueStyle.Render(fmt.Sprintf("%.6g", last)) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("SP:Pause  R:Reset  Q:Quit"))
	return frameStyle.Render(b.String())
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return "FAILED"
	case m.done():
		return "DONE"
	case !m.running:
		return "PAUSED"
	default:
		return "RUNNING"
	}
}

func (m Model) stepCount() string {
	if m.maxSteps > 0 {
		return fmt.Sprintf("%d / %d", m.step, m.maxSteps)
	}
	return fmt.Sprintf("%d", m.step)
}

// plottable trims the series to the chart window and drops NaN gaps,
// which asciigraph cannot scale around.
func plottable(vals []float64) []float64 {
	if len(vals) > historyCapacity {
		vals = vals[len(vals)-historyCapacity:]
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Run starts the live view and blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
