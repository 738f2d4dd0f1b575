package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bolt8/pkg/types"
)

// ============================================================================
//                              BandwidthCounter
// ============================================================================

// BandwidthCounter 统计加密帧的收发字节数（全局与按节点）
type BandwidthCounter struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64
	rateIn   *RateMeter
	rateOut  *RateMeter

	mu    sync.RWMutex
	nodes map[types.NodeID]*nodeCounter
}

type nodeCounter struct {
	in      atomic.Int64
	out     atomic.Int64
	rateIn  *RateMeter
	rateOut *RateMeter
}

// NewBandwidthCounter 创建带宽计数器，clk 为 nil 时使用系统时钟
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:   clk,
		rateIn:  NewRateMeter(clk),
		rateOut: NewRateMeter(clk),
		nodes:   make(map[types.NodeID]*nodeCounter),
	}
}

// LogSent 记录发往 id 的字节数
func (b *BandwidthCounter) LogSent(id types.NodeID, n int64) {
	b.totalOut.Add(n)
	b.rateOut.Add(n)

	c := b.node(id)
	c.out.Add(n)
	c.rateOut.Add(n)
}

// LogRecv 记录来自 id 的字节数
func (b *BandwidthCounter) LogRecv(id types.NodeID, n int64) {
	b.totalIn.Add(n)
	b.rateIn.Add(n)

	c := b.node(id)
	c.in.Add(n)
	c.rateIn.Add(n)
}

// Totals 返回全局统计
func (b *BandwidthCounter) Totals() Stats {
	return Stats{
		TotalIn:  b.totalIn.Load(),
		TotalOut: b.totalOut.Load(),
		RateIn:   b.rateIn.Rate(),
		RateOut:  b.rateOut.Rate(),
	}
}

// ForNode 返回单个节点的统计，未知节点返回零值
func (b *BandwidthCounter) ForNode(id types.NodeID) Stats {
	b.mu.RLock()
	c := b.nodes[id]
	b.mu.RUnlock()

	if c == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  c.in.Load(),
		TotalOut: c.out.Load(),
		RateIn:   c.rateIn.Rate(),
		RateOut:  c.rateOut.Rate(),
	}
}

// Nodes 返回有统计记录的节点数
func (b *BandwidthCounter) Nodes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// Forget 删除节点的统计（连接关闭时调用）
func (b *BandwidthCounter) Forget(id types.NodeID) {
	b.mu.Lock()
	delete(b.nodes, id)
	b.mu.Unlock()
}

// Reset 清空全部统计
func (b *BandwidthCounter) Reset() {
	b.totalIn.Store(0)
	b.totalOut.Store(0)
	b.rateIn.Reset()
	b.rateOut.Reset()

	b.mu.Lock()
	b.nodes = make(map[types.NodeID]*nodeCounter)
	b.mu.Unlock()
}

func (b *BandwidthCounter) node(id types.NodeID) *nodeCounter {
	b.mu.RLock()
	c := b.nodes[id]
	b.mu.RUnlock()
	if c != nil {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c = b.nodes[id]; c == nil {
		c = &nodeCounter{
			rateIn:  NewRateMeter(b.clock),
			rateOut: NewRateMeter(b.clock),
		}
		b.nodes[id] = c
	}
	return c
}
