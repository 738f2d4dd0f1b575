package metrics

import (
	"time"

	"github.com/dep2p/go-bolt8/pkg/types"
)

// Reporter 传输层上报指标的接口
type Reporter interface {
	// HandshakeStarted 开始一次握手
	HandshakeStarted(role types.Role)

	// HandshakeCompleted 握手成功及其耗时
	HandshakeCompleted(role types.Role, elapsed time.Duration)

	// HandshakeFailed 握手失败，reason 为低基数的分类标签
	HandshakeFailed(role types.Role, reason string)

	// ConnectionClosed 已建立的加密连接关闭
	ConnectionClosed(role types.Role, id types.NodeID)

	// LogSentMessage 发出一条消息，size 为线上字节数
	LogSentMessage(id types.NodeID, size int64)

	// LogRecvMessage 收到一条消息，size 为线上字节数
	LogRecvMessage(id types.NodeID, size int64)
}

// Nop 返回丢弃所有指标的 Reporter
func Nop() Reporter {
	return nopReporter{}
}

type nopReporter struct{}

func (nopReporter) HandshakeStarted(types.Role)                  {}
func (nopReporter) HandshakeCompleted(types.Role, time.Duration) {}
func (nopReporter) HandshakeFailed(types.Role, string)           {}
func (nopReporter) ConnectionClosed(types.Role, types.NodeID)    {}
func (nopReporter) LogSentMessage(types.NodeID, int64)           {}
func (nopReporter) LogRecvMessage(types.NodeID, int64)           {}
