// Package noise 实现 BOLT8 握手与传输加密
//
// 协议为 Noise_XK_secp256k1_ChaChaPoly_SHA256，prologue 为 "lightning"：
//   - XK: 发起者预先知道响应者的静态公钥（节点 ID）
//   - secp256k1: ECDH 结果为 SHA256(压缩点)
//   - ChaChaPoly: ChaCha20-Poly1305，nonce 为 4 字节零 + 8 字节小端计数
//   - SHA256: 转录哈希与 HKDF
//
// # 握手流程
//
//	<- s
//	...
//	-> e, es        Act1  50 字节
//	<- e, ee        Act2  50 字节
//	-> s, se        Act3  66 字节
//
// 每条消息以 1 字节版本号（0）开头。
//
// # 分层
//
//	HandshakeService   每方两个步骤
//	  HandshakeState   XK 状态机，单次使用
//	    SymmetricState ck / h
//	      CipherState  AEAD + nonce
//	Transport          握手完成后的长度头 + 正文加密，每 1000 个 nonce 轮换密钥
//
// # 使用示例
//
//	hs, err := noise.NewHandshakeState(types.RoleInitiator, localKey, remoteKey)
//	if err != nil {
//	    return err
//	}
//	svc := noise.NewHandshakeService(hs)
//	n, err := svc.PerformStep(nil, act1[:])
//	// ... 发送 act1，读取 act2 ...
//	n, err = svc.PerformStep(act2[:], act3[:])
//	t := svc.Transport()
//	frame, err := t.WriteMessage([]byte("hello"))
package noise
