package transport

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bolt8/config"
	"github.com/dep2p/go-bolt8/internal/core/identity"
	"github.com/dep2p/go-bolt8/internal/core/metrics"
	"github.com/dep2p/go-bolt8/internal/core/transport/tcp"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Identity *identity.Identity

	// Config 配置（可选，使用默认配置）
	Config *config.Config `optional:"true"`

	// Reporter 指标上报（可选）
	Reporter metrics.Reporter `optional:"true"`

	// Clock 时钟（可选，测试时注入 mock）
	Clock clock.Clock `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Upgrader *Upgrader
	TCP      *tcp.Transport
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	tc := config.DefaultTransportConfig()
	if input.Config != nil {
		tc = input.Config.Transport
	}

	opts := FromConfig(tc)
	opts = append(opts, WithReporter(input.Reporter), WithClock(input.Clock))

	return ModuleOutput{
		Upgrader: NewUpgrader(input.Identity, opts...),
		TCP:      tcp.NewTransport(tcp.ConfigFrom(tc)),
	}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC       fx.Lifecycle
	Upgrader *Upgrader
	TCP      *tcp.Transport
}

// registerLifecycle 停止时关闭监听器与所有加密连接
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Debug("关闭传输模块", "services", input.Upgrader.Count())
			return multierr.Combine(
				input.TCP.Close(),
				input.Upgrader.Close(),
			)
		},
	})
}
