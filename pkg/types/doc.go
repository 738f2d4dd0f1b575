// Package types 定义 BOLT8 节点的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go     - NodeID（33 字节压缩公钥）
//   - address.go - NodeAddress（"<node_id>@host:port"）
//   - enums.go   - Role（握手角色）
//   - errors.go  - 公共错误定义
package types
