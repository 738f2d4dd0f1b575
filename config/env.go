package config

import (
	"os"
	"strings"
)

// 环境变量（均使用 BOLT8_ 前缀）
const (
	EnvPrefix = "BOLT8_"

	EnvListenAddr       = "LISTEN_ADDR"
	EnvKeyFile          = "KEY_FILE"
	EnvKeyPassword      = "KEY_PASSWORD"
	EnvHandshakeTimeout = "HANDSHAKE_TIMEOUT"
	EnvMetricsAddr      = "METRICS_ADDR"
	EnvMetricsEnabled   = "METRICS_ENABLED"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFile          = "LOG_FILE"
)

// ApplyEnv 用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// 无法解析的值被忽略，保留原配置。
func ApplyEnv(cfg *Config) {
	applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvListenAddr); ok {
		cfg.Transport.ListenAddr = v
	}
	if v, ok := get(EnvKeyFile); ok {
		cfg.Identity.KeyFile = v
	}
	if v, ok := lookup(EnvPrefix + EnvKeyPassword); ok {
		cfg.Identity.Password = v
	}
	if v, ok := get(EnvHandshakeTimeout); ok {
		var d Duration
		if err := d.UnmarshalText([]byte(v)); err == nil {
			cfg.Transport.HandshakeTimeout = d
		}
	}
	if v, ok := get(EnvMetricsAddr); ok {
		cfg.Metrics.ListenAddr = v
	}
	if v, ok := get(EnvMetricsEnabled); ok {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := get(EnvLogFile); ok {
		cfg.Log.File = v
	}
}

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
