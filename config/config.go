// Package config 提供 BOLT8 节点的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义。
// 加载优先级（从低到高）：默认值 → JSON 文件 → 环境变量 → 命令行参数。
//
// 使用示例：
//
//	cfg, err := config.LoadFile("bolt8.json")
//	if err != nil {
//	    return err
//	}
//	config.ApplyEnv(cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Config BOLT8 节点完整配置
//
//   - Identity: 节点密钥
//   - Transport: 监听地址、握手超时、消息缓冲
//   - Metrics: Prometheus 指标
//   - Log: 日志级别与输出
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Transport 传输配置
	Transport TransportConfig `json:"transport"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证全部子配置，返回所有错误的合并结果
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	return multierr.Combine(
		c.Identity.Validate(),
		c.Transport.Validate(),
		c.Metrics.Validate(),
		c.Log.Validate(),
	)
}

// FromJSON 在默认配置之上解析 JSON
//
// JSON 中缺省的字段保留默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// SaveFile 把配置以 JSON 写入文件
func (c *Config) SaveFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}
