package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midiplay/midi"
	"go-midiplay/player"
	"go-midiplay/theme"
	"go-midiplay/widgets"
)

const refreshRate = 50 * time.Millisecond

var keySections = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "p", Desc: "play/stop"},
		{Key: "l", Desc: "loop"},
		{Key: "h", Desc: "host sync"},
		{Key: "a", Desc: "autoplay"},
		{Key: "+/-", Desc: "tempo"},
	}},
	{Title: "Favorites", Keys: []widgets.KeyBinding{
		{Key: "f", Desc: "favorite"},
		{Key: "j/k", Desc: "select"},
		{Key: "enter", Desc: "open"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "help"},
		{Key: "q", Desc: "quit"},
	}},
}

type Model struct {
	Player  *player.Player
	Clock   *player.ManualClock // may be nil when the host clock is external
	Watcher *midi.Watcher       // may be nil without an output port
	Theme   *theme.Theme

	cursor   int
	status   string
	port     string
	width    int
	showHelp bool
	quitting bool
}

type UpdateMsg player.Update

type PortEventMsg midi.PortEvent

type refreshMsg time.Time

func NewModel(p *player.Player, clock *player.ManualClock, watcher *midi.Watcher, th *theme.Theme) Model {
	return Model{
		Player:  p,
		Clock:   clock,
		Watcher: watcher,
		Theme:   th,
		width:   60,
	}
}

func ListenForUpdates(p *player.Player) tea.Cmd {
	return func() tea.Msg {
		return UpdateMsg(<-p.Updates())
	}
}

func ListenForPorts(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(event)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Player), refresh()}
	if m.Watcher != nil {
		cmds = append(cmds, ListenForPorts(m.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case UpdateMsg:
		switch msg.Kind {
		case player.UpdateLoaded:
			m.status = "loaded " + filepath.Base(msg.Path)
		case player.UpdatePlaybackEnded:
			m.status = "end of " + filepath.Base(msg.Path)
		}
		return m, ListenForUpdates(m.Player)

	case PortEventMsg:
		m.port = ""
		if msg.Type == midi.PortConnected {
			m.port = msg.Name
		}
		m.status = fmt.Sprintf("port %s %s", msg.Name, msg.Type)
		return m, ListenForPorts(m.Watcher)

	case refreshMsg:
		return m, refresh()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.Player
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		p.Stop()
		if err := p.SaveSettings(); err != nil {
			m.status = err.Error()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp

	case "p", " ":
		p.Toggle()

	case "l":
		p.SetLoop(!p.Engine().Looping())

	case "h":
		p.SetSyncToHost(!p.Engine().SyncedToHost())

	case "a":
		p.SetAutoPlay(!p.AutoPlay())

	case "+", "=":
		if m.Clock != nil {
			m.Clock.Nudge(5)
		}

	case "-", "_":
		if m.Clock != nil {
			m.Clock.Nudge(-5)
		}

	case "f":
		if p.ToggleFavorite() {
			m.status = "added to favorites"
		} else if p.Path() != "" {
			m.status = "removed from favorites"
		}
		m.cursor = min(m.cursor, max(p.Favorites().Len()-1, 0))

	case "j", "down":
		if m.cursor < p.Favorites().Len()-1 {
			m.cursor++
		}

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "enter":
		favs := p.Favorites().List()
		if m.cursor < len(favs) {
			if err := p.Load(favs[m.cursor]); err != nil {
				m.status = err.Error()
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Player.Status()
	sym := m.Theme.Symbols

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	statusStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.Muted()).
		Padding(0, 1)

	playState := fmt.Sprintf("%c STOP", sym.Stop)
	if st.Playing {
		playState = fmt.Sprintf("%c PLAY", sym.Play)
	}
	source := "file"
	if st.Synced {
		source = "host"
	}

	indicator := func(on bool, symbol rune, label string) string {
		text := fmt.Sprintf("%c %s", symbol, label)
		if on {
			return activeStyle.Render(text)
		}
		return dimStyle.Render(text)
	}
	flags := strings.Join([]string{
		indicator(st.Looping, sym.Loop, "loop"),
		indicator(st.Synced, sym.Sync, "sync"),
		indicator(st.AutoPlay, 'A', "auto"),
	}, " ")

	name := "(no file)"
	if st.Path != "" {
		name = filepath.Base(st.Path)
	}
	star := sym.NotFavorite
	if st.Favorite {
		star = sym.Favorite
	}

	header := headerStyle.Render(fmt.Sprintf("go-midiplay  %s  %5.1fbpm (%s)", playState, st.Tempo, source))
	file := fmt.Sprintf("%c %s  %d tracks  %d ppqn", star, name, st.Tracks, st.Resolution)
	if m.port != "" {
		file += "  -> " + m.port
	}

	barWidth := max(m.width-20, 10)
	bar := m.Theme.ProgressBar(st.Position, barWidth) + dimStyle.Render(fmt.Sprintf(" %d/%d", st.Tick, st.MaxTick))

	var favs strings.Builder
	list := m.Player.Favorites().List()
	if len(list) == 0 {
		favs.WriteString(dimStyle.Render("  no favorites (f to add the current file)"))
	}
	for i, path := range list {
		line := "  " + filepath.Base(path)
		if i == m.cursor {
			line = cursorStyle.Render(fmt.Sprintf("%c %s", sym.Cursor, filepath.Base(path)))
		}
		favs.WriteString(line)
		if i < len(list)-1 {
			favs.WriteString("\n")
		}
	}

	help := dimStyle.Render(widgets.RenderShortHelp(keySections))
	body := favs.String()
	if m.showHelp {
		body = widgets.RenderKeyHelp(keySections) + "\n\n" + widgets.RenderLegend(m.legend())
	}

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("  ")
	out.WriteString(flags)
	out.WriteString("\n")
	out.WriteString(file)
	out.WriteString("\n\n")
	out.WriteString(bar)
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n\n")
	out.WriteString(help)

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}

	return out.String()
}

func (m Model) legend() []widgets.Legend {
	sym := m.Theme.Symbols
	return []widgets.Legend{
		{Symbol: sym.Play, Color: m.Theme.Accent(), Name: "play", Desc: "transport running"},
		{Symbol: sym.Loop, Color: m.Theme.Active(), Name: "loop", Desc: "wraps to the start at the end"},
		{Symbol: sym.Sync, Color: m.Theme.Active(), Name: "sync", Desc: "tempo follows the host clock"},
		{Symbol: sym.Favorite, Color: m.Theme.Success(), Name: "favorite", Desc: "kept in settings"},
	}
}
