// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - crypto: secp256k1 密钥、BOLT8 ECDH、密钥文件、敏感数据清零
//   - log: 基于 slog 的日志封装
//
// # 与 pkg/ 其他目录的关系
//
//   - types/: 公共类型定义（NodeID、NodeAddress、Role）
//   - lib/: 基础设施工具库（本目录）
//
// lib/ 下的包只依赖 types/ 与第三方库，不依赖 internal/。
package lib
