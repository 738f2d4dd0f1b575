// Package types 定义 BOLT8 节点的公共数据结构
package types

// ============================================================================
//                              Role - 握手角色
// ============================================================================

// Role 握手角色
type Role int

const (
	// RoleInitiator 发起者：主动连接已知节点
	RoleInitiator Role = iota
	// RoleResponder 响应者：接受入站连接，从握手中得知对端身份
	RoleResponder
)

// String 返回角色名称
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}
