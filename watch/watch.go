// Package watch renders a running local match in the terminal.
package watch

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nstehr/hive/hive-core/sim"
)

// Frame is one round's picture of the match.
type Frame struct {
	Round  int
	Board  string
	Result sim.Result
}

// Capture takes a frame of m as it stands.
func Capture(m *sim.Match) Frame {
	return Frame{Round: m.Round(), Board: m.Render(), Result: m.Result()}
}

type finishedMsg struct{}

// Model is the bubbletea model. It shows the latest frame until the channel
// closes, then waits for the viewer to quit.
type Model struct {
	frames   <-chan Frame
	last     Frame
	finished bool
}

func New(frames <-chan Frame) Model {
	return Model{frames: frames}
}

func waitForFrame(frames <-chan Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return finishedMsg{}
		}
		return f
	}
}

func (m Model) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case Frame:
		m.last = msg
		return m, waitForFrame(m.frames)
	case finishedMsg:
		m.finished = true
	}
	return m, nil
}

func (m Model) View() string {
	r := m.last.Result
	var s strings.Builder
	s.WriteString(m.last.Board)
	s.WriteString("\n")
	fmt.Fprintf(&s, "Round:   %d\n", m.last.Round)
	fmt.Fprintf(&s, "Units:   %d / %d\n", r.Units[0], r.Units[1])
	fmt.Fprintf(&s, "Leaders: %d / %d\n", r.Leaders[0], r.Leaders[1])
	fmt.Fprintf(&s, "Cheese:  %d / %d\n", r.Cheese[0], r.Cheese[1])
	fmt.Fprintf(&s, "Kills:   %d / %d\n", r.Kills[0], r.Kills[1])
	fmt.Fprintf(&s, "Faults:  %d / %d\n", r.Faults[0], r.Faults[1])
	if m.finished {
		fmt.Fprintf(&s, "\nMatch over, winner %s.", r.Winner)
	}
	s.WriteString("\nPress q to quit.\n")
	return s.String()
}
