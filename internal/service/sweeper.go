package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Miraitowa2001/sms-web/internal/telemetry"
)

type offlineMarker interface {
	MarkOffline(cutoff string) (int64, error)
}

// Sweeper 离线巡检
// 周期性把超时未上报的在线设备批量置为离线，与上报写入共用同一套存储访问，
// 并发下 last-write-wins
type Sweeper struct {
	devices  offlineMarker
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper 创建巡检器
func NewSweeper(devices offlineMarker, timeout, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		devices:  devices,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// Run 周期巡检，直到上下文取消
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep 执行一轮巡检
func (s *Sweeper) Sweep() {
	cutoff := telemetry.Canonical(time.Now().Add(-s.timeout))

	n, err := s.devices.MarkOffline(cutoff)
	if err != nil {
		s.logger.Error("Offline sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Marked devices offline",
			zap.Int64("count", n),
			zap.String("cutoff", cutoff),
		)
	}
}
