package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vitrina/vitrina/internal/player"
)

const (
	seekStep   = 5
	volumeStep = 0.1
)

// playerView is the control surface for one playing video. Every call into
// the controller happens on the bubbletea event loop.
type playerView struct {
	title      string
	el         Element
	controller *player.Controller
	bar        progress.Model
}

func newPlayerView(title string, src player.MediaSource, el Element, logger *slog.Logger) (*playerView, error) {
	c := player.NewController(logger)
	if err := c.Bind(src, el); err != nil {
		return nil, err
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 40
	return &playerView{title: title, el: el, controller: c, bar: bar}, nil
}

// waitForElement delivers the element's next time update or state change
// to the event loop. Either channel closing ends the player.
func waitForElement(el Element) tea.Cmd {
	return func() tea.Msg {
		select {
		case u, ok := <-el.Updates():
			if !ok {
				return playerEndedMsg{el: el}
			}
			return timeUpdateMsg{el: el, update: u}
		case change, ok := <-el.Changes():
			if !ok {
				return playerEndedMsg{el: el}
			}
			return elementChangeMsg{el: el, change: change}
		}
	}
}

// handleKey applies a transport key. It reports false when the key
// closes the player.
func (p *playerView) handleKey(msg tea.KeyMsg, keys KeyMap) bool {
	c := p.controller
	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
		return false
	case key.Matches(msg, keys.TogglePlay):
		c.TogglePlay()
	case key.Matches(msg, keys.SeekBack):
		c.Seek(c.State().ProgressPercent - seekStep)
	case key.Matches(msg, keys.SeekForward):
		c.Seek(c.State().ProgressPercent + seekStep)
	case key.Matches(msg, keys.VolumeUp):
		c.SetVolume(c.State().EffectiveVolume() + volumeStep)
	case key.Matches(msg, keys.VolumeDown):
		c.SetVolume(c.State().EffectiveVolume() - volumeStep)
	case key.Matches(msg, keys.Mute):
		c.ToggleMute()
	case key.Matches(msg, keys.Fullscreen):
		c.RequestFullscreen()
	}
	return true
}

func (p *playerView) close() {
	p.controller.Close()
	if err := p.el.Close(); err != nil {
		slog.Warn("failed to close media element", "error", err)
	}
}

func (p *playerView) resize(width int) {
	p.bar.Width = max(10, min(width-12, 80))
}

func (p *playerView) view() string {
	state := p.controller.State()

	status := "⏸ Paused"
	if state.IsPlaying {
		status = "▶ Playing"
	}
	volume := fmt.Sprintf("Volume %d%%", int(state.VolumeLevel*100+0.5))
	if state.IsMuted {
		volume = "Muted"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(p.title))
	b.WriteString("\n\n")
	b.WriteString(p.bar.ViewAs(state.ProgressPercent / 100))
	b.WriteString(fmt.Sprintf(" %3.0f%%", state.ProgressPercent))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, status, subtleStyle.Render("   "+volume)))
	return playerBoxStyle.Render(b.String())
}
