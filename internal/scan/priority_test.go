package scan

import (
	"container/heap"
	"context"
	"fmt"
	"testing"
	"time"
)

// TestPriorityQueueDispatchesSmallBeforeLarge verifies the heap-ordering
// contract: items that are smaller than any concurrently-queued item are
// dispatched first.
//
// The queue's contract is "dispatch the minimum item currently in the heap",
// not a global sort. To test this deterministically we use two clearly
// separated size buckets loaded in FIFO order so that small items enter the
// heap before large ones. Because the channel is FIFO and all smalls precede
// all larges, the heap minimum is always 1 until every small is dispatched.
func TestPriorityQueueDispatchesSmallBeforeLarge(t *testing.T) {
	const (
		nSmall = 50
		nLarge = 50
		small  = int64(1)
		large  = int64(1_000_000)
	)
	ctx := context.Background()
	total := nSmall + nLarge
	in := make(chan FileInfo, total)
	out := make(chan FileInfo, total)

	// Load smalls first, then larges (FIFO guarantees smalls enter heap first).
	for i := 0; i < nSmall; i++ {
		in <- FileInfo{Path: fmt.Sprintf("s%d", i), Size: small}
	}
	for i := 0; i < nLarge; i++ {
		in <- FileInfo{Path: fmt.Sprintf("l%d", i), Size: large}
	}
	close(in)

	RunCostPriorityQueue(ctx, in, out)

	var got []int64
	for fi := range out {
		got = append(got, fi.Size)
	}
	if len(got) != total {
		t.Fatalf("delivered %d items, want %d", len(got), total)
	}

	// No large item may appear before all small items are dispatched.
	firstLarge := -1
	for i, s := range got {
		if s == large {
			firstLarge = i
			break
		}
	}
	if firstLarge != -1 {
		for i := firstLarge; i < len(got); i++ {
			if got[i] == small {
				t.Errorf("small item at index %d appears after first large item at index %d: output=%v",
					i, firstLarge, got)
				return
			}
		}
	}
}

// TestPriorityQueueDeliversAllItems verifies no items are lost.
func TestPriorityQueueDeliversAllItems(t *testing.T) {
	const n = 2000
	ctx := context.Background()
	in := make(chan FileInfo, n)
	out := make(chan FileInfo, n)

	RunCostPriorityQueue(ctx, in, out)

	want := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("file%04d", i)
		want[p] = struct{}{}
		in <- FileInfo{Path: p, Size: int64(n - i)}
	}
	close(in)

	got := make(map[string]struct{}, n)
	for fi := range out {
		got[fi.Path] = struct{}{}
	}
	if len(got) != n {
		t.Fatalf("delivered %d items, want %d", len(got), n)
	}
	for p := range want {
		if _, ok := got[p]; !ok {
			t.Errorf("item %q was lost", p)
		}
	}
}

// TestPriorityQueueEmptyInput verifies a clean close with no items.
func TestPriorityQueueEmptyInput(t *testing.T) {
	ctx := context.Background()
	in := make(chan FileInfo)
	out := make(chan FileInfo, 1)

	RunCostPriorityQueue(ctx, in, out)
	close(in)

	var count int
	for range out {
		count++
	}
	if count != 0 {
		t.Errorf("expected 0 items from empty input, got %d", count)
	}
}

// TestPriorityQueueCancellationNoDeadlock verifies context cancel doesn't hang.
func TestPriorityQueueCancellationNoDeadlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan FileInfo)  // unbuffered: sends would block
	out := make(chan FileInfo) // unbuffered: receives would block

	RunCostPriorityQueue(ctx, in, out)
	cancel()

	done := make(chan struct{})
	go func() {
		for range out {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("priority queue did not shut down after context cancel (deadlock?)")
	}
}

func TestExtractCost(t *testing.T) {
	tests := []struct {
		path string
		size int64
		want int64
	}{
		{"notes.txt", 1000, 1000},
		{"noext", 1000, 1000},
		{"IMG_0001.JPG", 8 << 20, imageCost},
		{"tiny.png", 100, 100},
		{"report.pdf", 1000, 4000},
		{"crm.sqlite", 1000, 4000},
	}
	for _, tt := range tests {
		if got := extractCost(FileInfo{Path: tt.path, Size: tt.size}); got != tt.want {
			t.Errorf("extractCost(%s, %d) = %d, want %d", tt.path, tt.size, got, tt.want)
		}
	}
}

// TestCostHeapOrder checks that a large photo is dispatched before a
// mid-sized workbook and that equal costs fall back to path order.
func TestCostHeapOrder(t *testing.T) {
	files := []FileInfo{
		{Path: "/b/staff.xlsx", Size: 100 << 10},
		{Path: "/a/photo.jpg", Size: 12 << 20},
		{Path: "/c/b.txt", Size: 10},
		{Path: "/c/a.txt", Size: 10},
		{Path: "/d/big.txt", Size: 200 << 10},
	}
	h := &costHeap{}
	for _, f := range files {
		heap.Push(h, pending{FileInfo: f, cost: extractCost(f)})
	}

	var got []string
	for h.Len() > 0 {
		got = append(got, heap.Pop(h).(pending).Path)
	}
	want := []string{"/c/a.txt", "/c/b.txt", "/a/photo.jpg", "/d/big.txt", "/b/staff.xlsx"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}
