// Package metrics 收集 BOLT8 传输层指标
//
// 两层统计：
//   - BandwidthCounter: 进程内的字节累计与 60 秒滑动窗口速率（全局 / 按节点）
//   - Collector: 导出到 Prometheus 的握手、消息和字节计数
//
// 传输层只依赖 Reporter 接口；关闭指标时使用 Nop()。
//
// # Fx 模块
//
//	app := fx.New(
//	    fx.Supply(fx.Annotate(prometheus.NewRegistry(), fx.As(new(prometheus.Registerer)))),
//	    metrics.Module,
//	    fx.Invoke(func(r metrics.Reporter) {
//	        r.LogSentMessage(id, 1024)
//	    }),
//	)
//
// # 并发安全
//
// 所有方法都是并发安全的。
package metrics
