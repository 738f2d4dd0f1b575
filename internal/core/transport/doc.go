// Package transport 在原始字节流上驱动 BOLT8 加密传输
//
// Service 接管一个 net.Conn：先按角色执行三个握手 Act，
// 然后启动读循环，按序投递解密后的消息，并串行化所有写入。
//
// # 核心职责
//
//   - 握手编排：每个 Act 的读写都受握手超时约束
//   - 读循环：头部(18) → 长度 → 消息体(N+16) → 明文
//   - 发送：加密与写入在同一把锁内完成，保持 nonce 与线路顺序一致
//   - 取消：单一取消信号中断所有阻塞 I/O、停止读循环并清零密钥
//
// # 使用示例
//
//	svc := transport.NewInitiator(conn, localKey, remotePub,
//	    transport.WithHandshakeTimeout(10*time.Second))
//	if err := svc.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	_ = svc.Send(ctx, []byte("hello"))
//	for msg := range svc.Messages() {
//	    handle(msg)
//	}
//
// Upgrader 为监听器与拨号器产生的连接批量创建 Service，
// 并在停止时统一关闭。
//
// # 依赖
//
//   - internal/core/security/noise: 握手与传输密码
//   - internal/core/metrics: 握手与流量上报
//   - internal/core/identity: 本地静态私钥
package transport
