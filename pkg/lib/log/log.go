// Package log 提供 BOLT8 节点的统一日志接口
//
// 基于 log/slog，组件通过 Logger("core/transport") 获取 LazyLogger。
// 级别由全局 LevelVar 控制，可在运行时调整而无需重建 logger。
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// 日志级别（从 slog 导出）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// EnvLogLevel 启动时读取的日志级别环境变量
const EnvLogLevel = "BOLT8_LOG_LEVEL"

// level 全局日志级别
var level = new(slog.LevelVar)

// ParseLevel 解析日志级别名称（不区分大小写）
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel 调整全局日志级别
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel 返回当前日志级别
func GetLevel() slog.Level {
	return level.Level()
}

// SetOutput 把默认 logger 的输出重定向到 w
//
// 示例：
//
//	file, _ := os.OpenFile("bolt8.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutput(file)
func SetOutput(w io.Writer) {
	slog.SetDefault(New(w))
}

// SetOutputWithLevel 同时设置输出目标和级别
func SetOutputWithLevel(w io.Writer, l slog.Level) {
	SetLevel(l)
	SetOutput(w)
}

// New 创建使用全局级别的文本 logger
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON 创建使用全局级别的 JSON logger
func NewJSON(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup 按级别名称和可选日志文件配置默认 logger
//
// file 为空时输出到 stderr。返回的关闭函数用于关闭日志文件。
func Setup(levelName, file string) (func() error, error) {
	l, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	if file == "" {
		SetOutputWithLevel(os.Stderr, l)
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // 用户指定的日志文件
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetOutputWithLevel(f, l)
	return f.Close, nil
}

// ============================================================================
//                              快捷方法
// ============================================================================

// Debug 输出 Debug 级别日志
func Debug(msg string, args ...any) { slog.Default().Debug(msg, args...) }

// Info 输出 Info 级别日志
func Info(msg string, args ...any) { slog.Default().Info(msg, args...) }

// Warn 输出 Warn 级别日志
func Warn(msg string, args ...any) { slog.Default().Warn(msg, args...) }

// Error 输出 Error 级别日志
func Error(msg string, args ...any) { slog.Default().Error(msg, args...) }

// InfoContext 带 context 的 Info 日志
func InfoContext(ctx context.Context, msg string, args ...any) {
	slog.Default().InfoContext(ctx, msg, args...)
}

// TruncateID 截取 ID 前 maxLen 个字符用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func init() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		if l, err := ParseLevel(v); err == nil {
			level.Set(l)
		}
	}
	slog.SetDefault(New(os.Stderr))
}
