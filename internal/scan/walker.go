package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// FileInfo is a filesystem entry emitted by the walker.
type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
}

// dirQueue is an unbounded, concurrency-safe queue of directory paths.
// It tracks a pending counter so that Walk() knows when all work is done.
//
// Termination protocol:
//   - Push increments pending BEFORE enqueuing (caller must own the increment).
//   - Done decrements pending AFTER all children of a directory have been
//     pushed. When pending reaches 0, Done closes the queue and broadcasts.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	head    int // index of the next item to pop; avoids O(n) re-slicing
	pending atomic.Int64
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a directory. Must be called after incrementing pending.
func (q *dirQueue) Push(dir string) {
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed.
// Returns ("", false) when the queue is closed and empty.
func (q *dirQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head >= len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head >= len(q.items) {
		return "", false
	}
	item := q.items[q.head]
	q.items[q.head] = "" // release string reference so GC can collect it
	q.head++
	// Compact once at least 1 000 items were consumed and head has passed
	// the midpoint, so the backing array stays bounded.
	if q.head >= 1000 && q.head >= len(q.items)/2 {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return item, true
}

// Done must be called once per directory after all its child-directories have
// been pushed. Decrements pending; if pending reaches 0, closes the queue.
func (q *dirQueue) Done() {
	if q.pending.Add(-1) == 0 {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	}
}

// Walk traverses roots concurrently using numWorkers goroutines and sends
// every regular file it finds to out. Walk closes out when done.
// Symlinks to regular files are emitted under the link's own path; symlinks
// to directories are not followed. Paths listed in excludePaths are skipped.
// report is called for any filesystem errors encountered during traversal.
func Walk(ctx context.Context, roots []string, excludePaths map[string]struct{}, numWorkers int, out chan<- FileInfo, report ErrorReporter) {
	defer close(out)

	if numWorkers < 1 {
		numWorkers = 1
	}
	q := newDirQueue()

	// Seed the queue with root directories.
	for _, root := range roots {
		q.pending.Add(1)
		q.Push(filepath.Clean(root))
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			walkerWorker(ctx, q, excludePaths, out, report)
		}()
	}
	wg.Wait()
}

// walkerWorker pops directories from q, reads their entries, enqueues
// sub-directories (incrementing pending first), sends files to out, then
// calls q.Done() to decrement pending.
func walkerWorker(ctx context.Context, q *dirQueue, excludePaths map[string]struct{}, out chan<- FileInfo, report ErrorReporter) {
	for {
		select {
		case <-ctx.Done():
			// Keep draining so pending reaches zero and the other workers wake.
			if _, ok := q.Pop(); !ok {
				return
			}
			q.Done()
			continue
		default:
		}

		dir, ok := q.Pop()
		if !ok {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			report(dir, "walk", err.Error())
			q.Done()
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if _, excluded := excludePaths[path]; excluded {
				continue
			}

			if entry.IsDir() {
				// Increment BEFORE pushing so pending is never zero prematurely.
				q.pending.Add(1)
				q.Push(path)
				continue
			}

			fi, ok := fileInfo(path, entry, report)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
			case out <- fi:
			}
		}

		q.Done()
	}
}

// fileInfo resolves entry to a FileInfo. Links are followed with os.Stat; a
// link whose target is not a regular file is skipped silently, a dangling
// link is reported.
func fileInfo(path string, entry fs.DirEntry, report ErrorReporter) (FileInfo, bool) {
	var (
		info fs.FileInfo
		err  error
	)
	switch {
	case entry.Type()&fs.ModeSymlink != 0:
		info, err = os.Stat(path)
	case entry.Type().IsRegular():
		info, err = entry.Info()
	default:
		return FileInfo{}, false
	}
	if err != nil {
		report(path, "walk", err.Error())
		return FileInfo{}, false
	}
	if !info.Mode().IsRegular() {
		return FileInfo{}, false
	}
	return FileInfo{Path: path, Size: info.Size(), MTime: info.ModTime()}, true
}
