package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

type fakeMarker struct {
	cutoffs []string
	n       int64
	err     error
}

func (f *fakeMarker) MarkOffline(cutoff string) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func TestSweeper_CutoffBeforeNow(t *testing.T) {
	marker := &fakeMarker{n: 2}
	sw := NewSweeper(marker, 10*time.Minute, time.Minute, zap.NewNop())

	sw.Sweep()

	require.Len(t, marker.cutoffs, 1)
	// 规范格式按字典序可比：截止点必须早于当前时刻
	assert.Less(t, marker.cutoffs[0], telemetry.CanonicalNow())
}

func TestSweeper_ErrorAbsorbed(t *testing.T) {
	marker := &fakeMarker{err: errors.New("db closed")}
	sw := NewSweeper(marker, 10*time.Minute, time.Minute, zap.NewNop())

	assert.NotPanics(t, func() { sw.Sweep() })
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	marker := &fakeMarker{}
	sw := NewSweeper(marker, 10*time.Minute, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	assert.NotEmpty(t, marker.cutoffs)
}
