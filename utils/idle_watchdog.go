package utils

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/pdb-debugger/utils/gosync"
)

// IdleWatchdog 空闲计时器
// 在timeout时间内没有调用Touch，就会执行onIdle，且只执行一次
type IdleWatchdog struct {
	timeout time.Duration
	onIdle  func()
	touch   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// NewIdleWatchdog timeout <= 0 时返回的计时器永远不会触发
func NewIdleWatchdog(timeout time.Duration, onIdle func()) *IdleWatchdog {
	return &IdleWatchdog{
		timeout: timeout,
		onIdle:  onIdle,
		touch:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Start 开始计时
func (w *IdleWatchdog) Start(ctx context.Context) {
	if w.timeout <= 0 {
		return
	}
	gosync.Go(ctx, func(ctx context.Context) {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				logrus.Infof("[IdleWatchdog] idle for %s", w.timeout)
				w.onIdle()
				return
			case <-w.touch:
				timer.Reset(w.timeout)
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	})
}

// Touch 重置计时器，不会阻塞
func (w *IdleWatchdog) Touch() {
	select {
	case w.touch <- struct{}{}:
	default:
	}
}

// Stop 取消计时，可重复调用
func (w *IdleWatchdog) Stop() {
	w.once.Do(func() { close(w.stop) })
}
