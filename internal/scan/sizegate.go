package scan

import (
	"context"
	"fmt"
)

// RunSizeGate reads all FileInfo from in, counting every file as
// "discovered". Files larger than maxSize are reported once and dropped;
// everything else is forwarded to out. A maxSize of 0 forwards every file.
// out is closed when in is exhausted or ctx is cancelled.
func RunSizeGate(ctx context.Context, progress *Progress, maxSize int64, report ErrorReporter, in <-chan FileInfo, out chan<- FileInfo) {
	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case fi, ok := <-in:
				if !ok {
					return
				}
				progress.FilesDiscovered.Add(1)

				if maxSize > 0 && fi.Size > maxSize {
					report(fi.Path, ErrExtract.Error(), fmt.Sprintf("%v: %d bytes", ErrFileTooLarge, fi.Size))
					continue
				}

				select {
				case out <- fi:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}
