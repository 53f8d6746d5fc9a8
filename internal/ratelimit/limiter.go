package ratelimit

import (
	"sync"
	"time"
)

// Limiter 限流判定接口。
//
// 返回 true 表示放行。实现可以是进程内滑动窗口，也可以是共享
// 计数存储（见 RedisLimiter），调用方不感知差异。
type Limiter interface {
	Allow(source string) bool
}

// Config 滑动窗口限流配置
type Config struct {
	Window      time.Duration // 窗口长度
	MaxRequests int           // 窗口内允许的最大请求数
}

// SlidingWindow 进程内滑动窗口限流器。
//
// 每个来源维护窗口内的请求时间戳序列；判定时先剪掉过期时间戳
// 再比较阈值。拒绝的请求不写入时间戳，不额外占用后续配额。
// 状态仅存在于本进程，多实例部署时各实例独立计数。
type SlidingWindow struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	max    int

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewSlidingWindow 创建滑动窗口限流器并启动后台清理。
//
// 清理周期为 min(窗口, 60s)，丢弃过期时间戳并移除空来源，
// 内存占用只与活跃来源数相关。
func NewSlidingWindow(cfg Config) *SlidingWindow {
	limiter := &SlidingWindow{
		hits:   make(map[string][]time.Time),
		window: cfg.Window,
		max:    cfg.MaxRequests,
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	interval := cfg.Window
	if interval > time.Minute {
		interval = time.Minute
	}
	go limiter.sweepLoop(interval)

	return limiter
}

// Allow 判定来源的本次请求是否放行。
func (l *SlidingWindow) Allow(source string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := prune(l.hits[source], now, l.window)

	if len(recent) >= l.max {
		// 拒绝不追加时间戳
		if len(recent) == 0 {
			delete(l.hits, source)
		} else {
			l.hits[source] = recent
		}
		return false
	}

	l.hits[source] = append(recent, now)
	return true
}

// Stop 停止后台清理协程。
func (l *SlidingWindow) Stop() {
	l.once.Do(func() {
		close(l.stop)
	})
}

func (l *SlidingWindow) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep 清理所有来源的过期时间戳，空来源整体移除。
func (l *SlidingWindow) sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for source, timestamps := range l.hits {
		recent := prune(timestamps, now, l.window)
		if len(recent) == 0 {
			delete(l.hits, source)
			continue
		}
		l.hits[source] = recent
	}
}

// prune 返回窗口内的时间戳。序列按时间递增，找到首个未过期
// 元素即可截断。
func prune(timestamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	for i, ts := range timestamps {
		if ts.After(cutoff) {
			return timestamps[i:]
		}
	}
	return nil
}
