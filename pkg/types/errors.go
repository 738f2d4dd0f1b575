// Package types 定义 BOLT8 节点的公共数据结构
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              ID 相关错误
// ============================================================================

var (
	// ErrEmptyNodeID 空节点 ID
	ErrEmptyNodeID = errors.New("empty node ID")

	// ErrInvalidNodeID 无效的节点 ID
	ErrInvalidNodeID = errors.New("invalid node ID: must be 33-byte compressed public key in hex")
)

// ============================================================================
//                              地址相关错误
// ============================================================================

var (
	// ErrInvalidNodeAddress 无效的节点地址
	ErrInvalidNodeAddress = errors.New("invalid node address: expected <node_id>@<host>:<port>")
)
