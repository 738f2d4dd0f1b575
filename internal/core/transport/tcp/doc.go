// Package tcp 提供 BOLT8 使用的原始 TCP 连接
//
// 这里只负责建立字节流：拨号、监听、设置 NoDelay 与 KeepAlive。
// 加密由上层 transport.Upgrader 完成。
//
// # 地址格式
//
//	127.0.0.1:9735
//	[::1]:9735
//	node.example.com:9735
//
// # 使用示例
//
//	t := tcp.NewTransport(tcp.DefaultConfig())
//	defer t.Close()
//
//	l, _ := t.Listen("127.0.0.1:0")
//	conn, _ := t.Dial(ctx, l.Addr().String())
package tcp
