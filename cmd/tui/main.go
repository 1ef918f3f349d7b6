// Command tui is the reference host: a Bubble Tea terminal front end that
// implements zmachine.IOProvider over a request/reply channel, since the
// engine's Dispatch call is synchronous but Bubble Tea's event loop is not.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davetcode/goz/selectstoryui"
	"github.com/davetcode/goz/zmachine"
	"github.com/muesli/reflow/wordwrap"
)

var romFilePath string

func init() {
	flag.StringVar(&romFilePath, "rom", "", "The path of a z-machine rom")
	flag.Parse()
}

// providerRequest carries one Dispatch call across to the Bubble Tea event
// loop and back; reply is buffered so Dispatch never blocks the program
// goroutine past the moment the UI has a value ready.
type providerRequest struct {
	cmd   zmachine.Command
	reply chan any
}

// ttyProvider is the IOProvider the engine's Run goroutine talks to. Every
// Dispatch call round-trips through requests/replies rather than touching
// Bubble Tea state directly, since Update only ever runs on the program's
// own goroutine.
type ttyProvider struct {
	requests chan providerRequest
	cols     int
	rows     int
}

func newTTYProvider() *ttyProvider {
	return &ttyProvider{requests: make(chan providerRequest), cols: 80, rows: 24}
}

func (p *ttyProvider) Dispatch(cmd zmachine.Command) any {
	reply := make(chan any, 1)
	p.requests <- providerRequest{cmd: cmd, reply: reply}
	return <-reply
}

func (p *ttyProvider) Flags1() uint8 {
	// Bit 0x10 = status line unavailable (we draw one), bit 0x20 = screen
	// splitting available, bit 0x04 = bold available, 0x08 = italic.
	return 0b0010_1100
}

func (p *ttyProvider) ScreenSize() (int, int) { return p.cols, p.rows }

type appState int

const (
	stateRunning appState = iota
	stateWaitingLine
	stateWaitingChar
)

type runStoryModel struct {
	provider    *ttyProvider
	zMachine    *zmachine.ZMachine
	romBytes    []byte
	romPath     string
	state       appState
	pendingLine *providerRequest
	pendingChar *providerRequest

	status           zmachine.StatusCommand
	lowerWindowText  strings.Builder
	upperWindowLines []string
	upperHeight      int
	currentWindow    int
	inputBox         textinput.Model
	width, height    int
	runtimeError     string

	textStyle  int
	background int
	foreground int
}

func newApplicationModel(romBytes []byte, romPath string) tea.Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 200
	ti.Prompt = ""

	provider := newTTYProvider()
	zMachine, err := zmachine.LoadRom(romBytes, provider)

	m := runStoryModel{
		provider: provider,
		zMachine: zMachine,
		romBytes: romBytes,
		romPath:  romPath,
		state:    stateRunning,
		inputBox: ti,
	}
	if err != nil {
		m.runtimeError = err.Error()
	}
	return m
}

func (m runStoryModel) Init() tea.Cmd {
	if m.runtimeError != "" {
		return nil
	}
	return tea.Batch(waitForProvider(m.provider), runInterpreter(m.zMachine), tea.WindowSize())
}

func runInterpreter(z *zmachine.ZMachine) tea.Cmd {
	return func() tea.Msg {
		if err := z.Run(); err != nil {
			return runtimeErrorMsg(err.Error())
		}
		return nil
	}
}

func waitForProvider(p *ttyProvider) tea.Cmd {
	return func() tea.Msg {
		return <-p.requests
	}
}

type runtimeErrorMsg string

func (m runStoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.provider.cols, m.provider.rows = msg.Width, msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.state {
		case stateWaitingChar:
			if m.pendingChar != nil {
				text := ""
				if len(msg.Runes) > 0 {
					text = string(msg.Runes[0])
				} else if msg.Type == tea.KeyEnter {
					text = "\r"
				}
				m.pendingChar.reply <- text
				m.pendingChar = nil
				m.state = stateRunning
				return m, waitForProvider(m.provider)
			}
		case stateWaitingLine:
			if msg.Type == tea.KeyEnter && m.pendingLine != nil {
				line := m.inputBox.Value()
				m.lowerWindowText.WriteString(line + "\n")
				m.inputBox.SetValue("")
				m.pendingLine.reply <- line
				m.pendingLine = nil
				m.state = stateRunning
				return m, waitForProvider(m.provider)
			}
			var cmd tea.Cmd
			m.inputBox, cmd = m.inputBox.Update(msg)
			return m, cmd
		}

	case providerRequest:
		return m.handleProviderRequest(msg)

	case runtimeErrorMsg:
		m.runtimeError = string(msg)
		return m, nil
	}

	return m, nil
}

func (m runStoryModel) handleProviderRequest(req providerRequest) (tea.Model, tea.Cmd) {
	switch cmd := req.cmd.(type) {
	case zmachine.PrintCommand:
		if cmd.Window == zmachine.TranscriptWindow {
			req.reply <- nil
			return m, waitForProvider(m.provider)
		}
		if cmd.Window == 0 {
			m.lowerWindowText.WriteString(cmd.Buffer)
		} else {
			m.appendUpper(cmd.Buffer)
		}
		req.reply <- nil

	case zmachine.SplitWindowCommand:
		m.upperHeight = cmd.Lines
		for len(m.upperWindowLines) < cmd.Lines {
			m.upperWindowLines = append(m.upperWindowLines, "")
		}
		req.reply <- nil

	case zmachine.SetWindowCommand:
		m.currentWindow = cmd.Window
		req.reply <- nil

	case zmachine.SetCursorCommand:
		req.reply <- nil

	case zmachine.GetCursorCommand:
		req.reply <- zmachine.Cursor{Row: 1, Column: 1}

	case zmachine.EraseLineCommand:
		req.reply <- nil

	case zmachine.ClearScreenCommand:
		switch cmd.WindowId {
		case -1, -2:
			m.lowerWindowText.Reset()
			m.upperWindowLines = make([]string, m.upperHeight)
		case 0:
			m.lowerWindowText.Reset()
		case 1:
			m.upperWindowLines = make([]string, m.upperHeight)
		}
		req.reply <- nil

	case zmachine.SetTextStyleCommand:
		m.textStyle = cmd.Style
		req.reply <- nil

	case zmachine.SetColourCommand:
		m.foreground, m.background = cmd.Foreground, cmd.Background
		req.reply <- nil

	case zmachine.SetTrueColourCommand:
		req.reply <- nil

	case zmachine.SetFontCommand:
		req.reply <- nil

	case zmachine.SoundEffectCommand:
		if cmd.Number == 1 || cmd.Number == 2 {
			fmt.Print("\a")
		}
		req.reply <- nil

	case zmachine.ReadCommand:
		m.state = stateWaitingLine
		m.pendingLine = &req
		return m, nil

	case zmachine.ReadCharCommand:
		m.state = stateWaitingChar
		m.pendingChar = &req
		return m, nil

	case zmachine.SaveCommand:
		filename := m.defaultSaveFilename()
		err := os.WriteFile(filename, cmd.FileData, 0644)
		req.reply <- err == nil

	case zmachine.RestoreCommand:
		data, err := os.ReadFile(m.defaultSaveFilename())
		if err != nil {
			req.reply <- []byte(nil)
		} else {
			req.reply <- data
		}

	case zmachine.StatusCommand:
		m.status = cmd
		req.reply <- nil

	case zmachine.PrintDebugCommand:
		fmt.Fprintln(os.Stderr, cmd.Message)
		req.reply <- nil

	case zmachine.QuitCommand:
		req.reply <- nil
		return m, tea.Quit

	case zmachine.InputStreamCommand:
		req.reply <- nil

	default:
		req.reply <- nil
	}

	return m, waitForProvider(m.provider)
}

func (m *runStoryModel) appendUpper(text string) {
	if len(m.upperWindowLines) == 0 {
		return
	}
	lines := strings.Split(text, "\n")
	m.upperWindowLines[0] += lines[0]
	for _, extra := range lines[1:] {
		m.upperWindowLines = append(m.upperWindowLines[1:], extra)
	}
}

func (m runStoryModel) defaultSaveFilename() string {
	base := m.romPath
	if base == "" {
		return "game.sav"
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base + ".sav"
}

func (m runStoryModel) View() string {
	if m.runtimeError != "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true).Render("Z-Machine Error: "+m.runtimeError) + "\n"
	}
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder
	if m.status.PlaceName != "" {
		statusStyle := lipgloss.NewStyle().Reverse(true).Width(m.width)
		right := fmt.Sprintf("Score: %d  Moves: %d", m.status.Score, m.status.Moves)
		if m.status.IsTimeBased {
			right = fmt.Sprintf("Time: %d:%02d", m.status.Score, m.status.Moves)
		}
		s.WriteString(statusStyle.Render(fmt.Sprintf("%-*s%s", m.width-len(right), m.status.PlaceName, right)))
		s.WriteString("\n")
	}

	for _, line := range m.upperWindowLines {
		s.WriteString(line + "\n")
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	s.WriteString(wordwrap.String(m.lowerWindowText.String(), width))
	if m.state == stateWaitingLine {
		s.WriteString(m.inputBox.View())
	}

	return s.String()
}

func main() {
	var model tea.Model

	if romFilePath != "" {
		romFileBytes, err := os.ReadFile(romFilePath)
		if err != nil {
			panic(err)
		}
		model = newApplicationModel(romFileBytes, romFilePath)
	} else {
		model = selectstoryui.NewUIModel(newApplicationModel, "")
	}

	program := tea.NewProgram(model)
	if _, err := program.Run(); err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}
