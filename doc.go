// Package bolt8 实现 Lightning BOLT #8 加密传输节点
//
// BOLT8 使用 Noise_XK_secp256k1_ChaChaPoly_SHA256：发起方预先知道
// 响应方的静态公钥，三次握手之后双方获得方向独立的 ChaCha20-Poly1305 密钥，
// 每 1000 次加密轮换一次。
//
// # 快速开始
//
//	node, err := bolt8.Start(ctx,
//	    bolt8.WithListenAddr("127.0.0.1:9735"),
//	    bolt8.WithKeyFile("node.key"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	fmt.Println(node.Address())
//
//	conn, err := node.ConnectString(ctx, "02a1...@10.0.0.2:9735")
//	if err != nil {
//	    return err
//	}
//	_ = conn.Send(ctx, []byte("hello"))
//
// # 层次结构
//
//	┌──────────────────────────────────────────────┐
//	│  Node          bolt8.New() / bolt8.Start()   │
//	├──────────────────────────────────────────────┤
//	│  transport     Service / Upgrader / tcp      │
//	├──────────────────────────────────────────────┤
//	│  noise         HandshakeState / Transport    │
//	├──────────────────────────────────────────────┤
//	│  identity · metrics · config · log           │
//	└──────────────────────────────────────────────┘
//
// 组件通过 Fx 装配，Start/Stop 驱动各模块的生命周期钩子。
package bolt8
