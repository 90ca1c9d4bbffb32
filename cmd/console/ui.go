package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/mask-engine/internal/events"
	"github.com/jwebster45206/mask-engine/pkg/mask"
	"github.com/muesli/reflow/wordwrap"
)

// frameInterval drives dialogue reveal timers and scheduled auto-runs.
const frameInterval = 50 * time.Millisecond

const helpMarkdown = `# Mask controls

| Key | Action |
| --- | --- |
| tab | switch between inventory and sockets |
| up / down | move the cursor |
| 1-4 | put the selected fragment into that socket |
| enter | equip into the first free socket, or take out |
| x / backspace | take the fragment out of the selected socket |
| e | show the mask |
| space | continue the dialogue |
| r | re-enter the scene |
| ctrl+r | reset all progress |
| c | copy the mask summary |
| ? | toggle this help |
| q / ctrl+c | quit |

Build an **identity** from enough matching fragments and add the **emotions**
the scene asks for. The mask is judged when you enter a scene and whenever
you press ` + "`e`" + `.
`

type focusArea int

const (
	focusInventory focusArea = iota
	focusSockets
)

// ReloadFunc applies a changed content file to the session.
type ReloadFunc func(s *Session, path string) error

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	session *Session

	activityViewport viewport.Model
	ready            bool
	width            int
	height           int

	focus        focusArea
	invCursor    int
	socketCursor int

	status    string
	statusErr bool

	showHelp      bool
	help          string
	showQuitModal bool

	activitySeen int

	changes <-chan string
	reload  ReloadFunc
	events  <-chan events.Event
	lastAt  time.Time
}

type frameMsg time.Time

type contentChangedMsg struct {
	path string
}

type eventMsg struct {
	event events.Event
}

type clipboardMsg struct {
	err error
}

// channelClosedMsg ends the wait loop for a feed that has shut down.
type channelClosedMsg struct {
	feed string
}

var (
	panelStyle = lipgloss.NewStyle().
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	dialogueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	identityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	goalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

// NewConsoleUI wraps a session. changes and evts may be nil.
func NewConsoleUI(s *Session, changes <-chan string, reload ReloadFunc, evts <-chan events.Event) ConsoleUI {
	vp := viewport.New(40, 10)
	vp.MouseWheelEnabled = true
	return ConsoleUI{
		session:          s,
		activityViewport: vp,
		changes:          changes,
		reload:           reload,
		events:           evts,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(frame(), waitForChange(m.changes), waitForEvent(m.events))
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func waitForChange(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		path, ok := <-ch
		if !ok {
			return channelClosedMsg{feed: "watcher"}
		}
		return contentChangedMsg{path: path}
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelClosedMsg{feed: "events"}
		}
		return eventMsg{event: ev}
	}
}

func copySummary(summary string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{err: clipboard.WriteAll(summary)}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.activityViewport, cmd = m.activityViewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.activityViewport.Width = max(m.rightWidth()-4, 10)
		m.activityViewport.Height = max(m.height-14, 3)
		m.ready = true
		if m.showHelp {
			m.help = renderHelp(m.rightWidth())
		}
		m.writeActivity()
		return m, nil

	case frameMsg:
		now := time.Time(msg)
		dt := frameInterval
		if !m.lastAt.IsZero() {
			dt = now.Sub(m.lastAt)
		}
		m.lastAt = now
		m.session.Tick(dt)
		if m.session.ActivityCount() != m.activitySeen {
			m.writeActivity()
		}
		return m, frame()

	case contentChangedMsg:
		if m.reload != nil {
			if err := m.reload(m.session, msg.path); err != nil {
				m.setError(fmt.Errorf("reload failed: %w", err))
			} else {
				m.setStatus("Reloaded " + msg.path)
			}
			m.clampCursors()
			m.writeActivity()
		}
		return m, waitForChange(m.changes)

	case eventMsg:
		m.setStatus(fmt.Sprintf("event %s", msg.event.Type))
		return m, waitForEvent(m.events)

	case channelClosedMsg:
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("copy failed: %w", msg.err))
		} else {
			m.setStatus("Copied mask summary")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	m.activityViewport, cmd = m.activityViewport.Update(msg)
	return m, cmd
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "q", "esc":
		if m.showHelp && key == "esc" {
			m.showHelp = false
			return m, nil
		}
		m.showQuitModal = true
		return m, nil
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.help = renderHelp(m.rightWidth())
		}
		return m, nil
	case "tab":
		if m.focus == focusInventory {
			m.focus = focusSockets
		} else {
			m.focus = focusInventory
		}
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		socket := int(key[0] - '1')
		if id, ok := m.selectedFragment(); ok {
			m.report(m.session.Place(id, socket))
		}
	case "enter":
		if m.focus == focusSockets {
			m.session.Remove(m.socketCursor)
		} else if id, ok := m.selectedFragment(); ok {
			if at := m.session.SocketOf(id); at >= 0 {
				m.session.Remove(at)
			} else {
				m.report(m.session.PlaceFirstFree(id))
			}
		}
	case "x", "backspace", "delete":
		if m.focus == focusSockets {
			m.session.Remove(m.socketCursor)
		} else if id, ok := m.selectedFragment(); ok {
			if at := m.session.SocketOf(id); at >= 0 {
				m.session.Remove(at)
			}
		}
	case "e":
		if _, err := m.session.Evaluate(); err != nil {
			m.report(err)
		}
	case " ":
		m.session.Continue()
	case "r":
		m.report(m.session.ReenterScene())
	case "ctrl+r":
		m.report(m.session.ResetProgress())
	case "c":
		summary := m.session.Assembly().Summary()
		if summary == "" {
			m.setStatus("The mask is empty")
			return m, nil
		}
		return m, copySummary(summary)
	default:
		var cmd tea.Cmd
		m.activityViewport, cmd = m.activityViewport.Update(msg)
		return m, cmd
	}
	m.writeActivity()
	return m, nil
}

func (m *ConsoleUI) report(err error) {
	if err != nil {
		m.setError(err)
		return
	}
	m.status = ""
	m.statusErr = false
}

func (m *ConsoleUI) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *ConsoleUI) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func (m *ConsoleUI) moveCursor(delta int) {
	if m.focus == focusSockets {
		m.socketCursor = clamp(m.socketCursor+delta, 0, m.session.Assembly().Len()-1)
		return
	}
	m.invCursor = clamp(m.invCursor+delta, 0, len(m.session.Inventory())-1)
}

func (m *ConsoleUI) clampCursors() {
	m.socketCursor = clamp(m.socketCursor, 0, m.session.Assembly().Len()-1)
	m.invCursor = clamp(m.invCursor, 0, len(m.session.Inventory())-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

func (m ConsoleUI) selectedFragment() (mask.FragmentID, bool) {
	inv := m.session.Inventory()
	if m.invCursor < 0 || m.invCursor >= len(inv) {
		return "", false
	}
	return inv[m.invCursor], true
}

func (m *ConsoleUI) writeActivity() {
	width := max(m.activityViewport.Width, 10)
	var b strings.Builder
	for _, line := range m.session.Activity() {
		b.WriteString(wordwrap.String(line, width) + "\n")
	}
	m.activityViewport.SetContent(b.String())
	m.activityViewport.GotoBottom()
	m.activitySeen = m.session.ActivityCount()
}

func renderHelp(width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}

func (m ConsoleUI) leftWidth() int {
	return max(m.width/2, 30)
}

func (m ConsoleUI) rightWidth() int {
	return max(m.width-m.leftWidth(), 30)
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case frameMsg:
		// Keep the frame loop alive so it resumes after the modal closes.
		m.lastAt = time.Time(msg)
		return m, frame()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		case tea.KeyEsc:
			m.showQuitModal = false
			return m, nil
		default:
			switch msg.String() {
			case "y", "Y", "q":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Leave the scene? Progress is kept by the store.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderInventory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("FRAGMENTS") + "\n\n")
	inv := m.session.Inventory()
	if len(inv) == 0 {
		b.WriteString(promptStyle.Render("No fragments yet.") + "\n")
	}
	for i, id := range inv {
		label := string(id)
		if a, ok := m.session.Catalog().Lookup(id); ok {
			label = fmt.Sprintf("%-9s %s", a.Type, a.Label())
		}
		if at := m.session.SocketOf(id); at >= 0 {
			label += fmt.Sprintf(" [%d]", at+1)
		}
		if m.focus == focusInventory && i == m.invCursor {
			b.WriteString(selectedStyle.Render("▶ "+label) + "\n")
		} else {
			b.WriteString("  " + label + "\n")
		}
	}
	if id, ok := m.selectedFragment(); ok {
		if a, ok := m.session.Catalog().Lookup(id); ok {
			b.WriteString("\n" + promptStyle.Render(wordwrap.String(a.DisplayText(), m.leftWidth()-6)) + "\n")
		}
	}
	return b.String()
}

func (m ConsoleUI) renderMask() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MASK") + "\n\n")
	asm := m.session.Assembly()
	for i := 0; i < asm.Len(); i++ {
		spec, f, _ := asm.Socket(i)
		line := fmt.Sprintf("%d %-7s %s", i+1, spec.Name, labelOrEmpty(f))
		if m.focus == focusSockets && i == m.socketCursor {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	st := asm.State()
	b.WriteString("\nIdentity: " + identityStyle.Render(st.Identity.String()) + "\n")
	if st.Empty() {
		b.WriteString(promptStyle.Render("Nothing equipped.") + "\n")
	} else {
		b.WriteString(promptStyle.Render(wordwrap.String(st.Summary(), m.leftWidth()-6)) + "\n")
	}
	if asm.Complete() {
		b.WriteString(promptStyle.Render("Every socket is filled.") + "\n")
	}
	if m.session.GoalMatched() {
		b.WriteString(goalStyle.Render("The mask feels right.") + "\n")
	}
	return b.String()
}

func labelOrEmpty(f mask.Fragment) string {
	if f.IsZero() {
		return "(empty)"
	}
	return f.Def.Label()
}

func (m ConsoleUI) renderScene() string {
	var b strings.Builder
	t := m.session.Track()
	b.WriteString(titleStyle.Render(strings.ToUpper(m.session.trackName())) + "\n")

	progress, err := m.session.Progress()
	switch {
	case err != nil:
		b.WriteString(errorStyle.Render("progress unavailable: "+err.Error()) + "\n")
	case t.Finished(progress) && !t.Clamps():
		b.WriteString(promptStyle.Render("Scene finished.") + "\n")
	default:
		b.WriteString(promptStyle.Render(fmt.Sprintf("Stage %d of %d", min(progress+1, t.Len()), t.Len())) + "\n")
	}
	b.WriteString(separatorStyle.Render(strings.Repeat("─", max(m.rightWidth()-6, 4))) + "\n")

	dlg := m.session.Dialogue()
	if line, ok := dlg.Current(); ok {
		idx, total := dlg.Position()
		width := max(m.rightWidth()-6, 20)
		if name := line.SpeakerName(); name != "" {
			b.WriteString(speakerStyle.Render(name+":") + " ")
		}
		b.WriteString(dialogueStyle.Render(wordwrap.String(line.Content, width)) + "\n")
		hint := fmt.Sprintf("(%d/%d)", idx+1, total)
		if dlg.Ready() {
			hint += " press space ▸"
		}
		b.WriteString(promptStyle.Render(hint) + "\n")
	} else {
		b.WriteString(promptStyle.Render("Press e to show the mask.") + "\n")
	}
	return b.String()
}

func (m ConsoleUI) renderStatus() string {
	if m.status == "" {
		return promptStyle.Render("? help · tab switch · e show mask · q quit")
	}
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return promptStyle.Render(m.status)
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	left := panelStyle.Width(m.leftWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderInventory(),
			m.renderMask(),
		),
	)

	var right string
	if m.showHelp {
		right = panelStyle.Width(m.rightWidth()).Render(m.help)
	} else {
		right = panelStyle.Width(m.rightWidth()).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.renderScene(),
				titleStyle.Render("ACTIVITY"),
				m.activityViewport.View(),
			),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		" "+m.renderStatus(),
	)
}
