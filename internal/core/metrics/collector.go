package metrics

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bolt8/pkg/types"
)

// Namespace Prometheus 指标前缀
const Namespace = "bolt8"

// 握手结果标签
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// 方向标签
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// ============================================================================
//                              Collector
// ============================================================================

// Collector 以 Prometheus 指标实现 Reporter
type Collector struct {
	handshakes *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pending    *prometheus.GaugeVec
	active     *prometheus.GaugeVec
	messages   *prometheus.CounterVec
	bytes      *prometheus.CounterVec

	bandwidth *BandwidthCounter
}

var _ Reporter = (*Collector)(nil)

// NewCollector 创建并注册指标
//
// reg 为 nil 时不注册（指标仍可通过 Collector 本身读取）。
func NewCollector(reg prometheus.Registerer, clk clock.Clock) (*Collector, error) {
	c := &Collector{
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Completed handshake attempts by role and result.",
		}, []string{"role", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "failures_total",
			Help:      "Failed handshakes by role and reason.",
		}, []string{"role", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Time to complete the three-act handshake.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"role"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "in_progress",
			Help:      "Handshakes currently running.",
		}, []string{"role"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "connections_active",
			Help:      "Established encrypted connections.",
		}, []string{"role"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "messages_total",
			Help:      "Encrypted messages by direction.",
		}, []string{"direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "bytes_total",
			Help:      "Wire bytes (header, payload and tags) by direction.",
		}, []string{"direction"}),
		bandwidth: NewBandwidthCounter(clk),
	}

	if reg != nil {
		var errs error
		for _, col := range c.collectors() {
			errs = multierr.Append(errs, reg.Register(col))
		}
		if errs != nil {
			return nil, errs
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.handshakes, c.failures, c.duration, c.pending, c.active, c.messages, c.bytes}
}

// Unregister 从 reg 中注销全部指标
func (c *Collector) Unregister(reg prometheus.Registerer) {
	for _, col := range c.collectors() {
		reg.Unregister(col)
	}
}

// Bandwidth 返回进程内带宽计数器
func (c *Collector) Bandwidth() *BandwidthCounter {
	return c.bandwidth
}

// HandshakeStarted 实现 Reporter
func (c *Collector) HandshakeStarted(role types.Role) {
	c.pending.WithLabelValues(role.String()).Inc()
}

// HandshakeCompleted 实现 Reporter
func (c *Collector) HandshakeCompleted(role types.Role, elapsed time.Duration) {
	c.pending.WithLabelValues(role.String()).Dec()
	c.handshakes.WithLabelValues(role.String(), ResultSuccess).Inc()
	c.duration.WithLabelValues(role.String()).Observe(elapsed.Seconds())
	c.active.WithLabelValues(role.String()).Inc()
}

// HandshakeFailed 实现 Reporter
func (c *Collector) HandshakeFailed(role types.Role, reason string) {
	c.pending.WithLabelValues(role.String()).Dec()
	c.handshakes.WithLabelValues(role.String(), ResultFailure).Inc()
	c.failures.WithLabelValues(role.String(), reason).Inc()
}

// ConnectionClosed 实现 Reporter
func (c *Collector) ConnectionClosed(role types.Role, id types.NodeID) {
	c.active.WithLabelValues(role.String()).Dec()
	c.bandwidth.Forget(id)
}

// LogSentMessage 实现 Reporter
func (c *Collector) LogSentMessage(id types.NodeID, size int64) {
	c.messages.WithLabelValues(DirectionOut).Inc()
	c.bytes.WithLabelValues(DirectionOut).Add(float64(size))
	c.bandwidth.LogSent(id, size)
}

// LogRecvMessage 实现 Reporter
func (c *Collector) LogRecvMessage(id types.NodeID, size int64) {
	c.messages.WithLabelValues(DirectionIn).Inc()
	c.bytes.WithLabelValues(DirectionIn).Add(float64(size))
	c.bandwidth.LogRecv(id, size)
}
