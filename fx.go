package bolt8

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-bolt8/internal/core/identity"
	"github.com/dep2p/go-bolt8/internal/core/metrics"
	"github.com/dep2p/go-bolt8/internal/core/transport"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：Identity → Metrics → Transport。
// 停止时按相反顺序执行 OnStop：先关闭连接和监听器，最后清零私钥。
func buildFxApp(cfg *nodeConfig, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 配置与可选依赖注入
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg.config),
	}
	if cfg.privateKey != nil {
		modules = append(modules, fx.Supply(cfg.privateKey))
	}
	if cfg.registerer != nil {
		reg := cfg.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}
	if cfg.clock != nil {
		clk := cfg.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		identity.Module(),  // 节点身份
		metrics.Module,     // 握手与流量指标
		transport.Module(), // TCP 与 BOLT8 升级器
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展与组件导出
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, cfg.fxOptions...)
	modules = append(modules,
		fx.Populate(&node.identity, &node.upgrader, &node.tcp, &node.reporter),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return app, nil
}
