package bolt8

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bolt8/internal/core/identity"
	"github.com/dep2p/go-bolt8/internal/core/metrics"
	"github.com/dep2p/go-bolt8/internal/core/transport"
	"github.com/dep2p/go-bolt8/internal/core/transport/tcp"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/lib/log"
	"github.com/dep2p/go-bolt8/pkg/types"
)

var logger = log.Logger("bolt8")

const (
	// stopTimeout Close 使用的停止超时
	stopTimeout = 10 * time.Second

	// acceptBackoff Accept 出现非关闭错误后的等待时间
	acceptBackoff = 50 * time.Millisecond
)

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 已创建，未启动
	StateIdle NodeState = iota

	// StateRunning 运行中
	StateRunning

	// StateStopped 已停止（私钥已清零，不可重新启动）
	StateStopped
)

// String 返回状态名称
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node BOLT8 节点
//
// 节点持有一个 secp256k1 静态身份，可以监听入站 TCP 连接，
// 也可以按 <node_id>@<host>:<port> 主动连接其它节点。
// 所有连接在握手完成后以 *transport.Service 的形式交给调用方。
type Node struct {
	mu     sync.Mutex
	config *nodeConfig
	app    *fx.App
	state  NodeState

	// 由 Fx 注入
	identity *identity.Identity
	upgrader *transport.Upgrader
	tcp      *tcp.Transport
	reporter metrics.Reporter

	listener     *tcp.Listener
	acceptCancel context.CancelFunc
	acceptDone   chan struct{}
}

// New 创建节点（不启动）
//
// 身份在此时加载，NodeID 立即可用。
func New(opts ...Option) (*Node, error) {
	cfg := newNodeConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	node := &Node{config: cfg}

	var err error
	node.app, err = buildFxApp(cfg, node)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Start 快捷启动函数
//
// 等价于 New() + Start()。
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// NodeID 返回节点 ID（压缩公钥）
func (n *Node) NodeID() types.NodeID {
	return n.identity.NodeID()
}

// PublicKey 返回节点静态公钥
func (n *Node) PublicKey() *crypto.PublicKey {
	return n.identity.PublicKey()
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// ListenAddr 返回实际监听地址，未监听时返回 nil
func (n *Node) ListenAddr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// Address 返回可分享的 <node_id>@<host>:<port> 地址
func (n *Node) Address() (types.NodeAddress, error) {
	addr := n.ListenAddr()
	if addr == nil {
		return types.NodeAddress{}, ErrNotListening
	}
	return types.NodeAddress{ID: n.NodeID(), Addr: addr.String()}, nil
}

// Connections 返回当前存活的加密连接
func (n *Node) Connections() []*transport.Service {
	return n.upgrader.Services()
}

// Gatherer 返回指标采集器，用于 promhttp 暴露
//
// 使用外部 Registerer 且其不是 Gatherer 时返回 nil。
func (n *Node) Gatherer() prometheus.Gatherer {
	return n.config.gatherer
}

// Bandwidth 返回按节点统计的带宽，指标关闭时返回 nil
func (n *Node) Bandwidth() *metrics.BandwidthCounter {
	if c, ok := n.reporter.(*metrics.Collector); ok {
		return c.Bandwidth()
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 启动 Fx 应用；配置了监听地址时开始接受入站连接。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	switch n.state {
	case StateRunning:
		n.mu.Unlock()
		return ErrAlreadyStarted
	case StateStopped:
		n.mu.Unlock()
		return ErrNodeClosed
	}

	if err := n.app.Start(ctx); err != nil {
		n.mu.Unlock()
		logger.Error("节点启动失败", "error", err)
		return fmt.Errorf("start fx app: %w", err)
	}
	n.state = StateRunning
	n.mu.Unlock()

	if addr := n.config.config.Transport.ListenAddr; addr != "" {
		if err := n.Listen(addr); err != nil {
			_ = n.Stop(ctx)
			return err
		}
	}

	logger.Info("节点已启动", "node", n.NodeID().ShortString())
	return nil
}

// Stop 停止节点
//
// 停止接受新连接，关闭所有加密连接并清零私钥。停止后的节点不能再启动。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.state != StateRunning {
		st := n.state
		n.mu.Unlock()
		if st == StateStopped {
			return ErrNodeClosed
		}
		return ErrNotStarted
	}
	n.state = StateStopped
	cancel, done, l := n.acceptCancel, n.acceptDone, n.listener
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = l.Close()
		<-done
	}

	if err := n.app.Stop(ctx); err != nil {
		logger.Error("停止节点失败", "error", err)
		return fmt.Errorf("stop fx app: %w", err)
	}
	logger.Info("节点已停止")
	return nil
}

// Close 停止节点并释放所有资源
//
// 可重复调用；未启动的节点直接清零私钥。
func (n *Node) Close() error {
	n.mu.Lock()
	st := n.state
	if st == StateIdle {
		n.state = StateStopped
	}
	n.mu.Unlock()

	switch st {
	case StateIdle:
		return n.identity.Close()
	case StateStopped:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := n.Stop(ctx); err != nil && !errors.Is(err, ErrNodeClosed) {
		return err
	}
	return nil
}
