package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/piifinder/internal/scan"
)

type fakeStarter struct {
	calls []string
	err   error
}

func (f *fakeStarter) Start(_ context.Context, triggeredBy string) (*scan.ActiveScan, error) {
	f.calls = append(f.calls, triggeredBy)
	if f.err != nil {
		return nil, f.err
	}
	return &scan.ActiveScan{ID: "run-1", TriggeredBy: triggeredBy}, nil
}

func TestSetJob_InvalidExpression(t *testing.T) {
	s := New()
	require.NoError(t, s.SetJob("0 2 * * 0", func() {}))

	err := s.SetJob("not a cron", func() {})
	require.Error(t, err)
	assert.Equal(t, "0 2 * * 0", s.CronExpr(), "a bad expression keeps the previous job")
}

func TestNextRunAt(t *testing.T) {
	s := New()
	assert.Nil(t, s.NextRunAt())

	require.NoError(t, s.SetJob("0 2 * * 0", func() {}))
	s.Start()
	defer s.Stop()

	next := s.NextRunAt()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 2, next.Hour())
}

func TestTrigger(t *testing.T) {
	s := New()
	f := &fakeStarter{}

	s.trigger(context.Background(), f)
	assert.Equal(t, []string{"schedule"}, f.calls)

	s.SetPaused(true)
	s.trigger(context.Background(), f)
	assert.Len(t, f.calls, 1, "paused scheduler must not start scans")

	s.SetPaused(false)
	f.err = scan.ErrAlreadyRunning
	s.trigger(context.Background(), f)
	f.err = errors.New("disk full")
	s.trigger(context.Background(), f)
	assert.Len(t, f.calls, 3)
}

type signalStarter struct {
	fakeStarter
	fired chan struct{}
}

func (s *signalStarter) Start(ctx context.Context, triggeredBy string) (*scan.ActiveScan, error) {
	a, err := s.fakeStarter.Start(ctx, triggeredBy)
	select {
	case s.fired <- struct{}{}:
	default:
	}
	return a, err
}

func TestSetScanJob_Fires(t *testing.T) {
	s := New()
	starter := &signalStarter{fired: make(chan struct{}, 1)}
	require.NoError(t, s.SetScanJob(context.Background(), "@every 1s", starter))
	assert.Equal(t, "@every 1s", s.CronExpr())
	s.Start()

	select {
	case <-starter.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
	s.Stop()
	assert.Contains(t, starter.calls, "schedule")
}
