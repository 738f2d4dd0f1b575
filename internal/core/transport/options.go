package transport

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bolt8/config"
	"github.com/dep2p/go-bolt8/internal/core/metrics"
	"github.com/dep2p/go-bolt8/internal/core/security/noise"
)

// Option 配置 Service
type Option func(*options)

type options struct {
	handshakeTimeout time.Duration
	clock            clock.Clock
	reporter         metrics.Reporter
	messageBuffer    int
	parent           context.Context
	noiseOpts        []noise.Option
}

func defaultOptions() options {
	tc := config.DefaultTransportConfig()
	return options{
		handshakeTimeout: tc.HandshakeTimeout.Duration(),
		clock:            clock.New(),
		reporter:         metrics.Nop(),
		messageBuffer:    tc.MessageBuffer,
		parent:           context.Background(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithHandshakeTimeout 设置每个握手 Act 的读写超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

// WithClock 替换时钟（测试中使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithReporter 设置指标上报器
func WithReporter(r metrics.Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithMessageBuffer 设置入站消息通道容量
func WithMessageBuffer(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.messageBuffer = n
		}
	}
}

// WithContext 设置服务生命周期的父 context
//
// 父 context 结束等同于调用 Close。
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.parent = ctx
		}
	}
}

// WithNoiseOptions 透传握手状态选项（如固定临时密钥）
func WithNoiseOptions(opts ...noise.Option) Option {
	return func(o *options) {
		o.noiseOpts = append(o.noiseOpts, opts...)
	}
}

// FromConfig 把传输配置转换为选项
func FromConfig(cfg config.TransportConfig) []Option {
	return []Option{
		WithHandshakeTimeout(cfg.HandshakeTimeout.Duration()),
		WithMessageBuffer(cfg.MessageBuffer),
	}
}
