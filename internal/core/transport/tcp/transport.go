package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-bolt8/config"
)

// ============================================================================
//                              配置
// ============================================================================

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时
	DialTimeout time.Duration

	// KeepAlive TCP keepalive 周期，0 表示使用系统默认
	KeepAlive time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout: config.DefaultTransportConfig().DialTimeout.Duration(),
		KeepAlive:   30 * time.Second,
	}
}

// ConfigFrom 从统一配置生成 TCP 配置
func ConfigFrom(cfg config.TransportConfig) Config {
	c := DefaultConfig()
	if cfg.DialTimeout > 0 {
		c.DialTimeout = cfg.DialTimeout.Duration()
	}
	return c
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输
type Transport struct {
	config Config

	listeners   map[string]*Listener
	listenersMu sync.RWMutex

	closed atomic.Bool
}

// NewTransport 创建 TCP 传输
func NewTransport(cfg Config) *Transport {
	return &Transport{
		config:    cfg,
		listeners: make(map[string]*Listener),
	}
}

// Dial 建立出站 TCP 连接
func (t *Transport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	dialer := &net.Dialer{
		Timeout:   t.config.DialTimeout,
		KeepAlive: t.config.KeepAlive,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := tune(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Listen 在 addr 上监听，端口为 0 时由系统分配
func (t *Transport) Listen(addr string) (*Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	lc := net.ListenConfig{KeepAlive: t.config.KeepAlive}
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	tl, ok := l.(*net.TCPListener)
	if !ok {
		_ = l.Close()
		return nil, ErrNotTCP
	}

	listener := newListener(tl, t)

	t.listenersMu.Lock()
	t.listeners[listener.Addr().String()] = listener
	t.listenersMu.Unlock()

	return listener, nil
}

// Close 关闭传输和所有监听器
//
// 已建立的连接由各自的持有者关闭。
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenersMu.Lock()
	listeners := t.listeners
	t.listeners = make(map[string]*Listener)
	t.listenersMu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	return err
}

// ============================================================================
//                              辅助方法
// ============================================================================

// removeListener 移除监听器记录
func (t *Transport) removeListener(addr string) {
	t.listenersMu.Lock()
	delete(t.listeners, addr)
	t.listenersMu.Unlock()
}

// ListenerCount 返回监听器数量
func (t *Transport) ListenerCount() int {
	t.listenersMu.RLock()
	defer t.listenersMu.RUnlock()
	return len(t.listeners)
}

// IsClosed 检查是否已关闭
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// tune 设置 NoDelay，BOLT8 帧较小，不应等待 Nagle 合并
func tune(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return ErrNotTCP
	}
	return tc.SetNoDelay(true)
}
