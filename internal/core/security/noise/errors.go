package noise

import "errors"

// 握手错误
var (
	// ErrAuthenticationFailure AEAD 认证标签校验失败（致命，不重试）
	ErrAuthenticationFailure = errors.New("noise: authentication failure")

	// ErrProtocolVersionMismatch 握手消息版本字节不匹配
	ErrProtocolVersionMismatch = errors.New("noise: protocol version mismatch")

	// ErrMalformedMessage 消息长度或格式与当前模式不符
	ErrMalformedMessage = errors.New("noise: malformed message")

	// ErrOutOfTurn 未轮到本方读/写
	ErrOutOfTurn = errors.New("noise: out of turn")

	// ErrHandshakeComplete 握手已完成或状态已销毁
	ErrHandshakeComplete = errors.New("noise: handshake already complete")

	// ErrNoMoreSteps 握手步骤已全部执行
	ErrNoMoreSteps = errors.New("noise: no more handshake steps")

	// ErrInvalidKey 本地或远端静态密钥无效
	ErrInvalidKey = errors.New("noise: invalid key")

	// ErrInvalidPayloadSize 握手 payload 长度与约定不符
	ErrInvalidPayloadSize = errors.New("noise: invalid handshake payload size")
)

// 加密错误
var (
	// ErrNonceOverflow nonce 已到达保留的最大值
	ErrNonceOverflow = errors.New("noise: nonce overflow")

	// ErrMessageTooLarge 消息超过最大长度
	ErrMessageTooLarge = errors.New("noise: message too large")

	// ErrTransportClosed 传输密钥已清除
	ErrTransportClosed = errors.New("noise: transport closed")
)
