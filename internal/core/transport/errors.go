package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrHandshakeTimeout 握手某个 Act 超时
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = errors.New("transport service closed")

	// ErrNotInitialized 握手尚未完成
	ErrNotInitialized = errors.New("transport service not initialized")

	// ErrAlreadyInitialized 重复调用 Initialize
	ErrAlreadyInitialized = errors.New("transport service already initialized")

	// ErrUpgraderClosed Upgrader 已关闭
	ErrUpgraderClosed = errors.New("upgrader closed")

	// ErrNilConn 连接为空
	ErrNilConn = errors.New("nil connection")
)

// HandshakeTimeoutError 描述超时发生在哪个 Act 的哪个方向
type HandshakeTimeoutError struct {
	// Act 1..3
	Act int

	// Op "read" 或 "write"
	Op string

	// Limit 单步超时
	Limit time.Duration
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("handshake timeout: act %d %s after %s", e.Act, e.Op, e.Limit)
}

// Is 使 errors.Is(err, ErrHandshakeTimeout) 成立
func (e *HandshakeTimeoutError) Is(target error) bool {
	return target == ErrHandshakeTimeout
}

// Timeout 满足 net.Error 风格的超时判断
func (e *HandshakeTimeoutError) Timeout() bool { return true }
