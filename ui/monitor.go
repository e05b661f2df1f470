// Package ui is the terminal monitor: a live status header over a scrolling
// G-code console, with slash commands for the typed operations.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"helixscreen/commands"
	"helixscreen/moonraker"
	"helixscreen/printer"
	"helixscreen/runloop"
)

var (
	headerStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Deps wires the monitor to the core.
type Deps struct {
	State    *printer.State
	Commands *commands.Controller
	Client   *moonraker.Client
	Loop     *runloop.Loop
	Version  string
}

// messenger forwards messages into the running program. Continuations fire
// on the UI loop before the program exists, so the send target is settable.
type messenger struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (m *messenger) Send(msg tea.Msg) {
	m.mu.Lock()
	send := m.send
	m.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

type logLineMsg string
type errLineMsg string

// statusMsg is a snapshot of the observable fields, taken on the UI loop.
type statusMsg struct {
	extruder, extruderTarget int
	bed, bedTarget           int
	jobState                 string
	filename                 string
	progress                 int
	connection               string
}

// Model is the bubbletea state machine.
type Model struct {
	deps Deps
	msgr *messenger

	content  string
	ready    bool
	viewport viewport.Model
	input    textinput.Model
	status   statusMsg
	history  []string
	histIdx  int
}

// NewMonitor builds the program and subscribes it to the core. Run blocks
// until quit.
func NewMonitor(deps Deps) *tea.Program {
	msgr := &messenger{}
	model := Model{
		deps:   deps,
		msgr:   msgr,
		status: statusMsg{connection: "connecting"},
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	msgr.mu.Lock()
	msgr.send = program.Send
	msgr.mu.Unlock()

	attach(deps, msgr)
	return program
}

// attach registers the core subscriptions on the UI loop. Every change
// forwards a fresh snapshot into the program.
func attach(deps Deps, msgr *messenger) {
	deps.Client.RegisterGcodeResponse(func(line string) {
		msgr.Send(logLineMsg(line))
	})
	deps.Loop.Post(func() {
		push := func() { msgr.Send(snapshot(deps.State)) }
		st := deps.State
		st.ExtruderTemp.Subscribe(func(int) { push() })
		st.ExtruderTarget.Subscribe(func(int) { push() })
		st.BedTemp.Subscribe(func(int) { push() })
		st.BedTarget.Subscribe(func(int) { push() })
		st.PrintJobState.Subscribe(func(printer.JobState) { push() })
		st.PrintFilename.Subscribe(func(string) { push() })
		st.Progress.Subscribe(func(int) { push() })
		st.Connection.Subscribe(func(printer.ConnectionState) { push() })
		push()
	})
}

func snapshot(st *printer.State) statusMsg {
	return statusMsg{
		extruder:       st.ExtruderTemp.Get(),
		extruderTarget: st.ExtruderTarget.Get(),
		bed:            st.BedTemp.Get(),
		bedTarget:      st.BedTarget.Get(),
		jobState:       st.PrintJobState.Get().String(),
		filename:       st.PrintFilename.Get(),
		progress:       st.Progress.Get(),
		connection:     st.Connection.Get().String(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m *Model) appendLog(line string) {
	m.content = m.content + "\n" + line
	if m.ready {
		m.viewport.SetContent(m.content)
		m.viewport.GotoBottom()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line != "" {
				m.appendLog("> " + line)
				m.dispatch(line)
				m.history = append(m.history, line)
			}
			m.histIdx = len(m.history)
			m.input.SetValue("")
		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
		case "down":
			if m.histIdx < len(m.history) {
				m.histIdx++
				if m.histIdx == len(m.history) {
					m.input.SetValue("")
				} else {
					m.input.SetValue(m.history[m.histIdx])
					m.input.CursorEnd()
				}
			}
		default:
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case logLineMsg:
		m.appendLog(string(msg))
	case errLineMsg:
		m.appendLog(errorStyle.Render("! " + string(msg)))
	case statusMsg:
		m.status = msg

	case tea.WindowSizeMsg:
		verticalMargin := 5
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)

			m.input = textinput.New()
			m.input.KeyMap.AcceptSuggestion = key.NewBinding(key.WithKeys("end"))
			m.input.Width = msg.Width - 4
			m.input.ShowSuggestions = true
			m.input.SetSuggestions(DefaultCompletions().All())
			m.input.Prompt = "> "
			m.input.Focus()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - verticalMargin
			m.input.Width = msg.Width - 4
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	default:
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// dispatch routes a typed line: slash commands go through the façade, and
// anything else is raw G-code.
func (m *Model) dispatch(line string) {
	onErr := func(err *moonraker.Error) {
		m.msgr.Send(errLineMsg(err.UserMessage + " (" + err.Message + ")"))
	}
	if !strings.HasPrefix(line, "/") {
		m.deps.Commands.RunGcode(line, nil, onErr)
		return
	}
	fields := strings.Fields(line)
	c := m.deps.Commands
	switch fields[0] {
	case "/home":
		axes := ""
		if len(fields) > 1 {
			axes = fields[1]
		}
		c.HomeAxes(axes, nil, onErr)
	case "/temp":
		if len(fields) != 3 {
			m.appendLog("usage: /temp <heater> <celsius>")
			return
		}
		target, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			m.appendLog("bad temperature: " + fields[2])
			return
		}
		c.SetHeaterTemperature(fields[1], target, nil, onErr)
	case "/fan":
		if len(fields) != 2 {
			m.appendLog("usage: /fan <percent>")
			return
		}
		percent, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			m.appendLog("bad percentage: " + fields[1])
			return
		}
		c.SetFanSpeed("fan", percent, nil, onErr)
	case "/print":
		if len(fields) != 2 {
			m.appendLog("usage: /print <filename>")
			return
		}
		c.StartPrint(fields[1], func() {
			m.deps.Client.FileMeta(fields[1], func(meta moonraker.FileMetadata) {
				m.msgr.Send(logLineMsg(fmt.Sprintf(
					"printing %s: sliced by %s, estimated %s",
					meta.Filename, meta.Slicer, formatDuration(meta.EstimatedTime))))
			}, nil)
		}, onErr)
	case "/pause":
		c.PausePrint(nil, onErr)
	case "/resume":
		c.ResumePrint(nil, onErr)
	case "/cancel":
		c.CancelPrint(nil, onErr)
	case "/estop":
		c.EmergencyStop(nil, onErr)
	case "/restart":
		c.FirmwareRestart(nil, onErr)
	default:
		m.appendLog("unknown command " + fields[0])
	}
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown time"
	}
	h := seconds / 3600
	min := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, min)
	}
	return fmt.Sprintf("%dm", min)
}

func (m Model) View() string {
	if !m.ready {
		return "\n  HelixScreen " + m.deps.Version + "\n  Connecting..."
	}

	header := headerStyle.Render(fmt.Sprintf(
		"%s | E %d/%d°C  B %d/%d°C | %s %s %d%%",
		m.status.connection,
		m.status.extruder, m.status.extruderTarget,
		m.status.bed, m.status.bedTarget,
		m.status.jobState, m.status.filename, m.status.progress,
	))

	b := lipgloss.RoundedBorder()
	b.BottomRight = "┤"
	b.BottomLeft = "├"
	vp := lipgloss.NewStyle().BorderStyle(b).Width(m.viewport.Width).Padding(0, 1).Render(m.viewport.View())
	inp := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Width(m.viewport.Width).Padding(0, 1).
		BorderLeft(true).BorderRight(true).BorderBottom(true).Render(m.input.View())
	return fmt.Sprintf("%s\n%s\n%s", header, vp, inp)
}
