// Package crypto 提供 BOLT8 节点使用的密码学原语
//
// 本包只覆盖 Lightning 传输层需要的部分：
//
//   - secp256k1 私钥/公钥（33 字节压缩格式），构造函数负责校验长度和曲线有效性
//   - BOLT8 ECDH：SHA256(压缩格式的共享点)
//   - 节点密钥文件（可选 Argon2id + AES-GCM 加密）
//   - 敏感数据清零
//
// # 快速开始
//
//	priv, err := crypto.GeneratePrivateKey(rand.Reader)
//	pub := priv.PublicKey()
//
//	// 与对端公钥计算共享密钥
//	secret := priv.ECDH(remotePub)
//	defer crypto.Zero(secret[:])
//
// # 密钥文件
//
//	err := crypto.SaveKeyFile("node.key", priv, password)
//	priv, err := crypto.LoadKeyFile("node.key", password)
//
// 所有字节类型都没有隐式转换：只能通过 *FromBytes / *FromHex 构造，
// Bytes() 总是返回副本。
package crypto
