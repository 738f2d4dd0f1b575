// Package types 定义 BOLT8 节点的公共数据结构
package types

import (
	"fmt"
	"net"
	"strings"
)

// DefaultPort Lightning 默认端口
const DefaultPort = "9735"

// NodeAddress 节点地址
//
// 字符串格式：<node_id>@<host>[:<port>]，省略端口时使用 9735。
type NodeAddress struct {
	// ID 节点身份
	ID NodeID

	// Addr 网络地址（host:port）
	Addr string
}

// String 返回 <node_id>@<host>:<port> 格式
func (a NodeAddress) String() string {
	return a.ID.String() + "@" + a.Addr
}

// ParseNodeAddress 解析节点地址
//
// 示例：
//
//	addr, err := types.ParseNodeAddress("028d7500dd4c...c7f7@127.0.0.1:9735")
func ParseNodeAddress(s string) (NodeAddress, error) {
	idPart, hostPart, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || idPart == "" || hostPart == "" {
		return NodeAddress{}, ErrInvalidNodeAddress
	}

	id, err := ParseNodeID(idPart)
	if err != nil {
		return NodeAddress{}, fmt.Errorf("%w: %w", ErrInvalidNodeAddress, err)
	}

	host, port, err := net.SplitHostPort(hostPart)
	if err != nil {
		// 没有端口
		host, port = strings.Trim(hostPart, "[]"), DefaultPort
	}
	if host == "" {
		return NodeAddress{}, ErrInvalidNodeAddress
	}

	return NodeAddress{
		ID:   id,
		Addr: net.JoinHostPort(host, port),
	}, nil
}
