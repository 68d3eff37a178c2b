package scan

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/piifinder/internal/fixtures"
)

func TestManager_RunsAndPersists(t *testing.T) {
	root := t.TempDir()
	fixtures.Write(t, filepath.Join(root, "a.txt"), []byte("a@b.no 123-45-6789"))
	db := mustOpenDB(t)

	var (
		mu       sync.Mutex
		finished *Result
	)
	m := NewManager(newTestScanner(DefaultConfig()), db, []string{root}, func(_ context.Context, res *Result) {
		mu.Lock()
		finished = res
		mu.Unlock()
	})

	active, err := m.Start(context.Background(), "manual")
	require.NoError(t, err)
	assert.NotEmpty(t, active.ID)
	assert.Equal(t, []string{root}, active.Roots)

	m.Wait()
	assert.Nil(t, m.ActiveScan())

	mu.Lock()
	require.NotNil(t, finished)
	assert.Equal(t, active.ID, finished.ID)
	assert.Equal(t, StatusCompleted, finished.Status)
	assert.Equal(t, 2, finished.Snapshot.Total())
	mu.Unlock()
	assert.Same(t, finished, m.LastResult())

	runs, err := ListRuns(context.Background(), db, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, active.ID, runs[0].ID)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.EqualValues(t, 2, runs[0].HitCount)
}

func TestManager_SingleActiveScan(t *testing.T) {
	root := t.TempDir()
	createSyntheticTree(t, root, 200)

	block := make(chan struct{})
	m := NewManager(newTestScanner(DefaultConfig()), nil, []string{root}, func(context.Context, *Result) {
		<-block
	})

	_, err := m.Start(context.Background(), "manual")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(block)
	m.Wait()

	_, err = m.Start(context.Background(), "schedule")
	require.NoError(t, err)
	m.Wait()
	assert.Equal(t, "schedule", m.LastResult().TriggeredBy)
}

func TestManager_Cancel(t *testing.T) {
	_, err := NewManager(newTestScanner(DefaultConfig()), nil, []string{t.TempDir()}, nil).Cancel()
	assert.ErrorIs(t, err, ErrNoActiveScan)

	root := t.TempDir()
	createSyntheticTree(t, root, 200)

	block := make(chan struct{})
	m := NewManager(newTestScanner(DefaultConfig()), nil, []string{root}, func(context.Context, *Result) {
		<-block
	})
	_, err = m.Start(context.Background(), "manual")
	require.NoError(t, err)

	snap, err := m.Cancel()
	require.NoError(t, err)
	assert.Equal(t, "manual", snap.TriggeredBy)

	close(block)
	m.Wait()
	assert.Contains(t, []string{StatusCancelled, StatusCompleted}, m.LastResult().Status)
}
