package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/piifinder/internal/scan"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fixedCounts() scan.Counts {
	return scan.Counts{FilesDiscovered: 10, FilesProcessed: 7, Hits: 3, Errors: 1}
}

func TestTicker_LogsUntilDone(t *testing.T) {
	var out syncBuffer
	log := slog.New(slog.NewTextHandler(&out, nil))

	tk := NewTicker(log, 5*time.Millisecond, fixedCounts)
	tk.Start()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "scan progress")
	}, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		tk.NotifyDone()
		tk.NotifyDone()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyDone did not return")
	}

	assert.Contains(t, out.String(), "files_processed=7")
	assert.Contains(t, out.String(), "hits=3")
}

func TestModel_ViewShowsCounters(t *testing.T) {
	m := newModel(fixedCounts)
	view := m.View()
	assert.Contains(t, view, "Scanning")
	assert.Contains(t, view, "files 7/10")
	assert.Contains(t, view, "errors 1")
}

func TestModel_DoneClearsView(t *testing.T) {
	m := newModel(fixedCounts)
	next, cmd := m.Update(doneMsg{})
	require.NotNil(t, cmd)
	assert.Empty(t, next.View())
}

func TestModel_TickAdvancesSpinner(t *testing.T) {
	m := newModel(fixedCounts)
	next, cmd := m.Update(m.spin.Tick())
	assert.NotNil(t, cmd)
	_, ok := next.(model)
	assert.True(t, ok)
}

func TestLineWriter_SplitsLines(t *testing.T) {
	var got []string
	w := lineWriter{print: func(args ...any) {
		require.Len(t, args, 1)
		got = append(got, args[0].(string))
	}}

	msg := "level=WARN msg=\"scan error\" path=/a\nlevel=WARN msg=\"scan error\" path=/b\n"
	n, err := w.Write([]byte(msg))
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, []string{
		`level=WARN msg="scan error" path=/a`,
		`level=WARN msg="scan error" path=/b`,
	}, got)
}

func TestLogOutput(t *testing.T) {
	var fallback bytes.Buffer
	ticker := NewTicker(slog.Default(), time.Hour, fixedCounts)
	assert.Same(t, &fallback, LogOutput(ticker, &fallback))

	spinner := NewSpinner(&bytes.Buffer{}, fixedCounts)
	_, ok := LogOutput(spinner, &fallback).(lineWriter)
	assert.True(t, ok, "a spinner takes over log output")
}

func TestModel_LogLinePrintsAbove(t *testing.T) {
	m := newModel(fixedCounts)
	next, cmd := m.Update(logLineMsg("level=WARN msg=x"))
	require.NotNil(t, cmd)
	assert.NotEmpty(t, next.View(), "printing a line keeps the spinner drawing")
}
