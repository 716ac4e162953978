package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// ProgressSpinner shows a spinner with a status line while a portal run is
// in progress. Without a terminal it prints status changes as plain lines.
type ProgressSpinner struct {
	message     string
	interactive bool
	out         io.Writer

	mu       sync.Mutex
	program  *tea.Program
	done     chan struct{}
	lastLine string
}

// NewProgressSpinner creates a new progress spinner
func NewProgressSpinner(message string, noColor bool) *ProgressSpinner {
	return &ProgressSpinner{
		message:     message,
		interactive: !noColor && os.Getenv("CI") == "" && isatty.IsTerminal(os.Stderr.Fd()),
		out:         os.Stderr,
	}
}

// Start begins rendering the spinner
func (p *ProgressSpinner) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.interactive {
		p.printLine(p.message)
		return
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	p.program = tea.NewProgram(&spinnerModel{
		spinner: s,
		message: p.message,
		style:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}, tea.WithOutput(p.out), tea.WithInput(nil))
	p.done = make(chan struct{})

	go func(program *tea.Program, done chan struct{}) {
		defer close(done)
		program.Run()
	}(p.program, p.done)
}

// SetMessage replaces the status text
func (p *ProgressSpinner) SetMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.message = message
	if p.program == nil {
		p.printLine(message)
		return
	}
	p.program.Send(messageMsg(message))
}

// Stop stops the spinner and waits for the terminal to be restored
func (p *ProgressSpinner) Stop() {
	p.mu.Lock()
	program, done := p.program, p.done
	p.program = nil
	p.mu.Unlock()

	if program == nil {
		return
	}
	program.Quit()
	<-done
}

func (p *ProgressSpinner) printLine(line string) {
	if line == p.lastLine {
		return
	}
	p.lastLine = line
	fmt.Fprintf(p.out, "%s...\n", line)
}

type messageMsg string

// spinnerModel implements tea.Model for the spinner
type spinnerModel struct {
	spinner spinner.Model
	message string
	style   lipgloss.Style
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case messageMsg:
		m.message = string(msg)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	return fmt.Sprintf("%s %s", m.spinner.View(), m.style.Render(m.message))
}
