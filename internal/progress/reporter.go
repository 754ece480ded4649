package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const pollInterval = 120 * time.Millisecond

var statLabel = lipgloss.NewStyle().Faint(true)

// TerminalReporter drives a small bubbletea program that polls a Sink
// and renders a spinner plus running counters to w, matching the
// tea.Tick poll-and-redraw idiom used for lighthouse status elsewhere
// in the teacher's UI code. The same program runs whether or not w is a
// terminal; there is no separate non-TTY mode. Stop prints a summary
// line and then the sink's log lines.
type TerminalReporter struct {
	w       io.Writer
	sink    *Sink
	program *tea.Program
	done    chan struct{}
}

// NewTerminalReporter constructs a reporter writing to w. Start/Stop
// bracket a pipeline run.
func NewTerminalReporter(w io.Writer, sink *Sink) *TerminalReporter {
	return &TerminalReporter{w: w, sink: sink}
}

// Start launches the animated reporter in the background. It does not
// check whether the writer is a terminal.
func (r *TerminalReporter) Start() {
	if r.sink == nil {
		return
	}
	m := reporterModel{sink: r.sink, spinner: newSpinner()}
	r.program = tea.NewProgram(m, tea.WithOutput(r.w))
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
}

// Stop ends the animation and prints a final summary line.
func (r *TerminalReporter) Stop() {
	if r.sink == nil || r.program == nil {
		return
	}
	r.program.Quit()
	<-r.done
	snap := r.sink.Snapshot()
	fmt.Fprintf(r.w, "indexed %d, skipped %d, deleted %d, errors %d\n",
		snap.Indexed, snap.Skipped, snap.Deleted, snap.Errors)
	for _, line := range r.sink.Logs() {
		fmt.Fprintln(r.w, line)
	}
}

type tickMsg time.Time

type reporterModel struct {
	sink    *Sink
	spinner spinner.Model
}

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return s
}

func (m reporterModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m reporterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m reporterModel) View() string {
	snap := m.sink.Snapshot()
	return fmt.Sprintf("%s scanning: %s\n",
		m.spinner.View(),
		statLabel.Render(fmt.Sprintf("scanned %d  indexed %d  skipped %d  errors %d",
			snap.Scanned, snap.Indexed, snap.Skipped, snap.Errors)))
}
