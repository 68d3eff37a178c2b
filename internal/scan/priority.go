package scan

import (
	"container/heap"
	"context"
	"path/filepath"
	"strings"
)

// imageCost is the estimated cost of any image: only the metadata block at
// the head of the file is read, whatever its size.
const imageCost = 64 << 10

// Extension hints used for scheduling only. Classification itself never
// looks at the name.
var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".tif": true,
		".tiff": true, ".heic": true, ".webp": true, ".bmp": true,
	}
	// Formats that are parsed or decompressed, not just scanned.
	containerExts = map[string]bool{
		".pdf": true, ".docx": true, ".xlsx": true, ".db": true,
		".sqlite": true, ".sqlite3": true,
	}
)

// extractCost estimates the work needed to extract f, in byte-equivalents.
func extractCost(f FileInfo) int64 {
	ext := strings.ToLower(filepath.Ext(f.Path))
	switch {
	case imageExts[ext]:
		return min(f.Size, imageCost)
	case containerExts[ext]:
		return f.Size * 4
	default:
		return f.Size
	}
}

type pending struct {
	FileInfo
	cost int64
}

// costHeap is a min-heap of files ordered by estimated extraction cost,
// then path.
type costHeap []pending

func (h costHeap) Len() int { return len(h) }
func (h costHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].Path < h[j].Path
}
func (h costHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *costHeap) Push(x any) { *h = append(*h, x.(pending)) }
func (h *costHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// RunCostPriorityQueue sits between the size gate and the file workers. It
// buffers incoming files in a min-heap keyed by extractCost and dispatches
// the cheapest first, so hits from plain files and photos arrive before the
// workers settle into large PDFs, workbooks and databases.
//
// out is closed when in is exhausted or ctx is cancelled.
func RunCostPriorityQueue(ctx context.Context, in <-chan FileInfo, out chan<- FileInfo) {
	go func() {
		defer close(out)

		h := &costHeap{}
		push := func(f FileInfo) { heap.Push(h, pending{FileInfo: f, cost: extractCost(f)}) }

		for {
			if h.Len() > 0 {
				// Accept a new file, or dispatch the cheapest one, whichever
				// is ready first.
				select {
				case f, ok := <-in:
					if !ok {
						for h.Len() > 0 {
							next := heap.Pop(h).(pending)
							select {
							case out <- next.FileInfo:
							case <-ctx.Done():
								return
							}
						}
						return
					}
					push(f)
				case out <- (*h)[0].FileInfo:
					heap.Pop(h)
				case <-ctx.Done():
					return
				}
			} else {
				select {
				case f, ok := <-in:
					if !ok {
						return
					}
					push(f)
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}
