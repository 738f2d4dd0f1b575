package config

import (
	"fmt"
	"net"
	"time"
)

// TransportConfig BOLT8 传输配置
type TransportConfig struct {
	// ListenAddr TCP 监听地址，为空表示不监听
	ListenAddr string `json:"listen_addr"`

	// HandshakeTimeout 每个握手步骤（单次读或写）的超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// DialTimeout 出站连接的 TCP 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// MessageBuffer 读循环投递通道的容量
	MessageBuffer int `json:"message_buffer"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddr:       "",
		HandshakeTimeout: Duration(10 * time.Second),
		DialTimeout:      Duration(15 * time.Second),
		MessageBuffer:    64,
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout: %w", ErrInvalidTimeout)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout: %w", ErrInvalidTimeout)
	}
	if c.MessageBuffer <= 0 {
		return ErrInvalidBuffer
	}
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return fmt.Errorf("listen_addr: %w: %v", ErrInvalidAddress, err)
		}
	}
	return nil
}
