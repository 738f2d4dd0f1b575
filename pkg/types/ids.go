// Package types 定义 BOLT8 节点的公共数据结构
package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ============================================================================
//                              NodeID - 节点标识
// ============================================================================

// NodeIDSize 节点 ID 大小（压缩 secp256k1 公钥）
const NodeIDSize = 33

// NodeID Lightning 节点标识符
//
// 即节点静态公钥的 33 字节压缩格式，外部表示为 66 个十六进制字符。
// 本类型只校验长度和前缀，曲线校验由 pkg/lib/crypto 完成。
type NodeID [NodeIDSize]byte

// EmptyNodeID 空节点 ID
var EmptyNodeID NodeID

// String 返回十六进制表示
func (id NodeID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

// ShortString 返回日志用的短标识（前 8 个十六进制字符）
func (id NodeID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回字节副本
func (id NodeID) Bytes() []byte {
	out := make([]byte, NodeIDSize)
	copy(out, id[:])
	return out
}

// IsEmpty 检查是否为空
func (id NodeID) IsEmpty() bool {
	return id == EmptyNodeID
}

// MarshalText 实现 encoding.TextMarshaler
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NodeIDFromBytes 从 33 字节创建 NodeID
func NodeIDFromBytes(b []byte) (NodeID, error) {
	if len(b) != NodeIDSize {
		return EmptyNodeID, fmt.Errorf("%w: got %d bytes", ErrInvalidNodeID, len(b))
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return EmptyNodeID, fmt.Errorf("%w: bad prefix 0x%02x", ErrInvalidNodeID, b[0])
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// ParseNodeID 从十六进制字符串解析 NodeID
func ParseNodeID(s string) (NodeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EmptyNodeID, ErrEmptyNodeID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return EmptyNodeID, fmt.Errorf("%w: %v", ErrInvalidNodeID, err)
	}
	return NodeIDFromBytes(b)
}
