package tcp

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport closed")

	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("listener closed")

	// ErrNotTCP 底层不是 TCP 连接
	ErrNotTCP = errors.New("not a tcp connection")
)
