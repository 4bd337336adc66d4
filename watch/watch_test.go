package watch

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nstehr/hive/hive-core/model"
	"github.com/nstehr/hive/hive-core/sim"
)

func TestFramesUpdateTheView(t *testing.T) {
	m := sim.New(sim.Options{Width: 6, Height: 4})
	m.Place(model.TeamA, model.Rat, model.Loc{X: 1, Y: 1})
	frames := make(chan Frame, 1)
	w := New(frames)

	next, cmd := w.Update(Capture(m))
	if cmd == nil {
		t.Fatal("no command to wait for the next frame")
	}
	view := next.View()
	if !strings.Contains(view, "Round:   0") || !strings.Contains(view, "Units:   1 / 0") {
		t.Errorf("view missing stats:\n%s", view)
	}
	if !strings.Contains(view, m.Render()) {
		t.Errorf("view missing board:\n%s", view)
	}

	close(frames)
	if _, ok := cmd().(finishedMsg); !ok {
		t.Error("closed channel should report the match finished")
	}
	done, _ := next.Update(finishedMsg{})
	if !strings.Contains(done.View(), "Match over") {
		t.Errorf("finished view:\n%s", done.View())
	}
}

func TestQuitKey(t *testing.T) {
	w := New(make(chan Frame))
	_, cmd := w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("q produced %T, want tea.QuitMsg", cmd())
	}
}
