package tcp

import (
	"errors"
	"net"
	"sync/atomic"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener TCP 监听器
type Listener struct {
	listener *net.TCPListener
	owner    *Transport
	closed   atomic.Bool
}

func newListener(l *net.TCPListener, owner *Transport) *Listener {
	return &Listener{listener: l, owner: owner}
}

// Accept 接受一个入站连接
//
// 监听器关闭后返回 ErrListenerClosed。
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, ErrListenerClosed
		}
		return nil, err
	}

	if err := tune(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Addr 返回实际监听地址
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if l.owner != nil {
		l.owner.removeListener(l.Addr().String())
	}
	return l.listener.Close()
}

// IsClosed 检查监听器是否已关闭
func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}
