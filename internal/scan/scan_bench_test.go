package scan

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eargollo/piifinder/internal/hits"
)

// BenchmarkPipeline measures end-to-end scan throughput over 300 small text
// files at different worker counts.
// Run with: go test -bench=BenchmarkPipeline -benchtime=3x ./internal/scan/
func BenchmarkPipeline(b *testing.B) {
	root := b.TempDir()
	const numFiles = 300
	createSyntheticTree(b, root, numFiles)

	for _, workers := range []int{1, 4} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		s := newTestScanner(cfg)

		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				p := &Progress{}
				start := time.Now()
				if err := s.Run(context.Background(), []string{root}, hits.NewStore(), p); err != nil {
					b.Fatalf("scan failed: %v", err)
				}
				elapsed := time.Since(start)

				b.ReportMetric(float64(numFiles)/elapsed.Seconds(), "files/s")
				b.ReportMetric(float64(p.BytesRead.Load()), "bytes/op")
			}
		})
	}
}
