// Package progress shows that a long walk is still alive. On a terminal it
// draws a spinner with live counters; elsewhere it logs the counters
// periodically.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/eargollo/piifinder/internal/scan"
)

// Indicator runs alongside a walk. It only reads counters and stops when
// told; NotifyDone returns once the indicator has stopped drawing.
type Indicator interface {
	Start()
	NotifyDone()
}

// New returns a Spinner when out is a terminal and a Ticker otherwise.
func New(out *os.File, counts func() scan.Counts) Indicator {
	if term.IsTerminal(int(out.Fd())) {
		return NewSpinner(out, counts)
	}
	return NewTicker(slog.Default(), 10*time.Second, counts)
}

// ── Terminal spinner ──────────────────────────────────────────────────────────

type doneMsg struct{}

// logLineMsg is a log line to print above the spinner.
type logLineMsg string

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type model struct {
	spin   spinner.Model
	counts func() scan.Counts
	done   bool
}

func newModel(counts func() scan.Counts) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return model{spin: s, counts: counts}
}

func (m model) Init() tea.Cmd { return m.spin.Tick }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case logLineMsg:
		return m, tea.Println(string(msg))
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// The walk owns signal handling; just stop drawing.
			m.done = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}
	c := m.counts()
	return fmt.Sprintf("%s Scanning %s\n", m.spin.View(),
		mutedStyle.Render(fmt.Sprintf("files %d/%d  hits %d  errors %d",
			c.FilesProcessed, c.FilesDiscovered, c.Hits, c.Errors)))
}

// Spinner draws an animated status line on a terminal.
type Spinner struct {
	prog     *tea.Program
	finished chan struct{}
	once     sync.Once
}

// NewSpinner returns a Spinner drawing to out.
func NewSpinner(out io.Writer, counts func() scan.Counts) *Spinner {
	return &Spinner{
		prog:     tea.NewProgram(newModel(counts), tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()),
		finished: make(chan struct{}),
	}
}

// LogOutput returns the writer log output should use while ind runs. A
// Spinner owns the terminal, so lines are printed above it through the
// program; any other indicator leaves fallback in place.
func LogOutput(ind Indicator, fallback io.Writer) io.Writer {
	if s, ok := ind.(*Spinner); ok {
		return lineWriter{print: func(args ...any) {
			s.prog.Send(logLineMsg(fmt.Sprint(args...)))
		}}
	}
	return fallback
}

// lineWriter forwards each written line to print, which must not
// interleave with the spinner's redraw.
type lineWriter struct {
	print func(args ...any)
}

func (w lineWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		w.print(line)
	}
	return len(b), nil
}

// Start implements Indicator.
func (s *Spinner) Start() {
	go func() {
		defer close(s.finished)
		if _, err := s.prog.Run(); err != nil {
			slog.Debug("progress spinner stopped", "error", err)
		}
	}()
}

// NotifyDone implements Indicator.
func (s *Spinner) NotifyDone() {
	s.once.Do(func() {
		s.prog.Send(doneMsg{})
		<-s.finished
	})
}

// ── Log ticker ────────────────────────────────────────────────────────────────

// Ticker logs the counters at a fixed interval.
type Ticker struct {
	log      *slog.Logger
	interval time.Duration
	counts   func() scan.Counts

	stop     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// NewTicker returns a Ticker logging to log every interval.
func NewTicker(log *slog.Logger, interval time.Duration, counts func() scan.Counts) *Ticker {
	return &Ticker{
		log:      log,
		interval: interval,
		counts:   counts,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start implements Indicator.
func (t *Ticker) Start() {
	go func() {
		defer close(t.finished)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				c := t.counts()
				t.log.Info("scan progress",
					"files_discovered", c.FilesDiscovered,
					"files_processed", c.FilesProcessed,
					"hits", c.Hits,
					"errors", c.Errors,
					"bytes_read", c.BytesRead)
			case <-t.stop:
				return
			}
		}
	}()
}

// NotifyDone implements Indicator.
func (t *Ticker) NotifyDone() {
	t.once.Do(func() {
		close(t.stop)
		<-t.finished
	})
}
