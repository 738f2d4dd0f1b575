package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// rateWindow 速率窗口的秒数
const rateWindow = 60

// ============================================================================
//                              RateMeter - 速率计算器
// ============================================================================

// RateMeter 基于 60 个 1 秒桶的滑动窗口速率
type RateMeter struct {
	clock clock.Clock

	mu       sync.Mutex
	buckets  [rateWindow]int64
	idx      int
	lastTime time.Time
}

// NewRateMeter 创建速率计算器，clk 为 nil 时使用系统时钟
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{
		clock:    clk,
		lastTime: clk.Now(),
	}
}

// Add 把 n 字节计入当前桶
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance()
	r.buckets[r.idx] += n
}

// Rate 返回窗口内的平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance()
	var total int64
	for _, v := range r.buckets {
		total += v
	}
	return float64(total) / rateWindow
}

// LastUpdate 返回最近一次推进窗口的时间
func (r *RateMeter) LastUpdate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTime
}

// Reset 清空窗口
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buckets = [rateWindow]int64{}
	r.idx = 0
	r.lastTime = r.clock.Now()
}

// advance 按经过的整秒数推进窗口，调用方持有锁
func (r *RateMeter) advance() {
	now := r.clock.Now()
	seconds := int(now.Sub(r.lastTime) / time.Second)
	if seconds <= 0 {
		return
	}

	if seconds >= rateWindow {
		r.buckets = [rateWindow]int64{}
		r.idx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.idx = (r.idx + 1) % rateWindow
			r.buckets[r.idx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}
