package scan

import "sync/atomic"

// Progress holds live counters updated by the walker and the file workers.
// All fields are atomic so they can be written from worker goroutines and
// read by the progress indicator and the HTTP handler without locks.
type Progress struct {
	FilesDiscovered atomic.Int64
	FilesProcessed  atomic.Int64
	Hits            atomic.Int64 // distinct hits added to the store
	Errors          atomic.Int64
	BytesRead       atomic.Int64
}

// Counts is a point-in-time copy of Progress.
type Counts struct {
	FilesDiscovered int64 `json:"files_discovered"`
	FilesProcessed  int64 `json:"files_processed"`
	Hits            int64 `json:"hits"`
	Errors          int64 `json:"errors"`
	BytesRead       int64 `json:"bytes_read"`
}

// Load returns the current counter values.
func (p *Progress) Load() Counts {
	return Counts{
		FilesDiscovered: p.FilesDiscovered.Load(),
		FilesProcessed:  p.FilesProcessed.Load(),
		Hits:            p.Hits.Load(),
		Errors:          p.Errors.Load(),
		BytesRead:       p.BytesRead.Load(),
	}
}

// ErrorReporter records a per-file error: increments the error counter,
// emits a structured warning log and adds an ErrorRecord to the run's store.
// stage is one of "walk", "classify", "extract" or "scan".
type ErrorReporter func(path, stage, errMsg string)
