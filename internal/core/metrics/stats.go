package metrics

// Stats 带宽统计快照
type Stats struct {
	TotalIn  int64   // 累计入站字节
	TotalOut int64   // 累计出站字节
	RateIn   float64 // 入站速率（字节/秒）
	RateOut  float64 // 出站速率（字节/秒）
}
