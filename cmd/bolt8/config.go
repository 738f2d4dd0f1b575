package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/dep2p/go-bolt8/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// loadConfig 按优先级合成配置
//
// 优先级（从高到低）：命令行参数 → BOLT8_* 环境变量 → 配置文件 → 默认值。
func loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	config.ApplyEnv(cfg)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags 只覆盖显式设置的命令行参数
func applyFlags(cfg *config.Config) {
	if isFlagSet("listen") {
		cfg.Transport.ListenAddr = *listenAddr
	}
	if isFlagSet("key") {
		cfg.Identity = cfg.Identity.WithKeyFile(*keyFile)
	}
	if isFlagSet("handshake-timeout") {
		cfg.Transport.HandshakeTimeout = config.Duration(*handshakeTimeout)
	}
	if isFlagSet("metrics") {
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if isFlagSet("log-level") {
		cfg.Log.Level = *logLevel
	}
	if isFlagSet("log") {
		cfg.Log.File = *logFile
	}
}

// isFlagSet 检查参数是否在命令行中显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// defaultHandshakeTimeout 命令行显示用的默认值
func defaultHandshakeTimeout() time.Duration {
	return config.DefaultTransportConfig().HandshakeTimeout.Duration()
}
