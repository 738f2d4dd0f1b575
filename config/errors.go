package config

import "errors"

var (
	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("config is nil")

	// ErrInvalidTimeout 超时必须为正数
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrInvalidBuffer 消息缓冲必须为正数
	ErrInvalidBuffer = errors.New("message buffer must be positive")

	// ErrInvalidAddress 地址格式错误
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidLogLevel 未知日志级别
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrMissingKeyFile 关闭自动生成时必须提供密钥文件
	ErrMissingKeyFile = errors.New("key file required when auto generate is disabled")
)
