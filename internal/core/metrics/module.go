package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bolt8/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Config     *config.Config         `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
}

// Result Metrics 模块输出
type Result struct {
	fx.Out

	Reporter Reporter
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(NewFromParams),
)

// NewFromParams 根据配置创建 Reporter
//
// 配置关闭指标时返回 Nop()。
func NewFromParams(p Params) (Result, error) {
	enabled := config.DefaultMetricsConfig().Enabled
	if p.Config != nil {
		enabled = p.Config.Metrics.Enabled
	}
	if !enabled {
		return Result{Reporter: Nop()}, nil
	}

	c, err := NewCollector(p.Registerer, p.Clock)
	if err != nil {
		return Result{}, err
	}
	return Result{Reporter: c}, nil
}
