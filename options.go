package bolt8

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bolt8/config"
	"github.com/dep2p/go-bolt8/internal/core/transport"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
)

// defaultMaxPendingHandshakes 同时进行的入站握手上限
const defaultMaxPendingHandshakes = 64

// Option 用户配置选项函数
//
// 选项按顺序应用，WithConfig 会整体替换之前设置的配置字段。
type Option func(*nodeConfig) error

// InboundHandler 处理握手成功的入站连接
//
// 处理函数在独立的 goroutine 中调用，连接由节点跟踪，Stop 时统一关闭。
type InboundHandler func(svc *transport.Service)

// nodeConfig 内部选项结构
type nodeConfig struct {
	config *config.Config

	// 直接注入的私钥，优先于密钥文件
	privateKey *crypto.PrivateKey

	clock      clock.Clock
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	inbound              InboundHandler
	maxPendingHandshakes int

	fxOptions []fx.Option
}

// newNodeConfig 创建默认选项
//
// 默认使用节点私有的 Prometheus 注册表，避免同一进程内多个节点冲突。
func newNodeConfig() *nodeConfig {
	reg := prometheus.NewRegistry()
	return &nodeConfig{
		config:               config.NewConfig(),
		registerer:           reg,
		gatherer:             reg,
		maxPendingHandshakes: defaultMaxPendingHandshakes,
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
func WithConfig(cfg *config.Config) Option {
	return func(c *nodeConfig) error {
		if cfg == nil {
			return config.ErrNilConfig
		}
		cp := *cfg
		c.config = &cp
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置，并叠加 BOLT8_* 环境变量
func WithConfigFile(path string) Option {
	return func(c *nodeConfig) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		config.ApplyEnv(cfg)
		c.config = cfg
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              身份
// ════════════════════════════════════════════════════════════════════════════

// WithPrivateKey 直接使用给定私钥
//
// 私钥归调用方所有；节点停止时会被清零。
func WithPrivateKey(key *crypto.PrivateKey) Option {
	return func(c *nodeConfig) error {
		if key == nil {
			return errors.New("nil private key")
		}
		c.privateKey = key
		return nil
	}
}

// WithKeyFile 从密钥文件加载身份，不存在时自动生成
func WithKeyFile(path string) Option {
	return func(c *nodeConfig) error {
		c.config.Identity = c.config.Identity.WithKeyFile(path)
		c.config.Identity.AutoGenerate = true
		return nil
	}
}

// WithKeyPassword 设置密钥文件口令
func WithKeyPassword(password string) Option {
	return func(c *nodeConfig) error {
		c.config.Identity.Password = password
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输
// ════════════════════════════════════════════════════════════════════════════

// WithListenAddr 设置 TCP 监听地址，如 "0.0.0.0:9735"
func WithListenAddr(addr string) Option {
	return func(c *nodeConfig) error {
		c.config.Transport.ListenAddr = addr
		return nil
	}
}

// WithHandshakeTimeout 设置每个握手 Act 的超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *nodeConfig) error {
		c.config.Transport.HandshakeTimeout = config.Duration(d)
		return nil
	}
}

// WithDialTimeout 设置 TCP 拨号超时
func WithDialTimeout(d time.Duration) Option {
	return func(c *nodeConfig) error {
		c.config.Transport.DialTimeout = config.Duration(d)
		return nil
	}
}

// WithInboundHandler 设置入站连接处理函数
func WithInboundHandler(h InboundHandler) Option {
	return func(c *nodeConfig) error {
		c.inbound = h
		return nil
	}
}

// WithMaxPendingHandshakes 限制同时进行的入站握手数量
func WithMaxPendingHandshakes(n int) Option {
	return func(c *nodeConfig) error {
		if n <= 0 {
			return errors.New("max pending handshakes must be positive")
		}
		c.maxPendingHandshakes = n
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              指标与测试
// ════════════════════════════════════════════════════════════════════════════

// WithMetrics 启用或关闭 Prometheus 指标
func WithMetrics(enabled bool) Option {
	return func(c *nodeConfig) error {
		c.config.Metrics.Enabled = enabled
		return nil
	}
}

// WithRegisterer 把指标注册到外部 Registerer
//
// 若 reg 同时实现 prometheus.Gatherer，Node.Gatherer 返回它。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *nodeConfig) error {
		c.registerer = reg
		c.gatherer, _ = reg.(prometheus.Gatherer)
		return nil
	}
}

// WithClock 替换时钟（测试使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(c *nodeConfig) error {
		c.clock = clk
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(c *nodeConfig) error {
		c.fxOptions = append(c.fxOptions, opts...)
		return nil
	}
}
