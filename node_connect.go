package bolt8

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bolt8/internal/core/transport"
	"github.com/dep2p/go-bolt8/internal/core/transport/tcp"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/lib/log"
	"github.com/dep2p/go-bolt8/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              出站连接
// ════════════════════════════════════════════════════════════════════════════

// Connect 拨号并以发起方身份完成握手
//
// addr.ID 即对端静态公钥，握手在 Act2 校验对端持有对应私钥。
func (n *Node) Connect(ctx context.Context, addr types.NodeAddress) (*transport.Service, error) {
	if err := n.checkRunning(); err != nil {
		return nil, err
	}
	if addr.ID == n.NodeID() {
		return nil, ErrSelfConnect
	}

	remote, err := crypto.PublicKeyFromNodeID(addr.ID)
	if err != nil {
		return nil, fmt.Errorf("remote node id: %w", err)
	}

	conn, err := n.tcp.Dial(ctx, addr.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	svc, err := n.upgrader.UpgradeOutbound(ctx, conn, remote)
	if err != nil {
		return nil, fmt.Errorf("%w: handshake with %s: %w", ErrConnectionFailed, addr.ID.ShortString(), err)
	}

	logger.Info("出站连接已建立", "peer", addr.ID.ShortString(), "addr", addr.Addr)
	return svc, nil
}

// ConnectString 解析 <node_id>@<host>[:<port>] 后连接
func (n *Node) ConnectString(ctx context.Context, s string) (*transport.Service, error) {
	addr, err := types.ParseNodeAddress(s)
	if err != nil {
		return nil, err
	}
	return n.Connect(ctx, addr)
}

// DialConn 在调用方提供的连接上以发起方身份握手
func (n *Node) DialConn(ctx context.Context, conn net.Conn, remote types.NodeID) (*transport.Service, error) {
	if err := n.checkRunning(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	pub, err := crypto.PublicKeyFromNodeID(remote)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("remote node id: %w", err)
	}
	return n.upgrader.UpgradeOutbound(ctx, conn, pub)
}

// AcceptConn 在调用方提供的连接上以响应方身份握手
func (n *Node) AcceptConn(ctx context.Context, conn net.Conn) (*transport.Service, error) {
	if err := n.checkRunning(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return n.upgrader.UpgradeInbound(ctx, conn)
}

func (n *Node) checkRunning() error {
	switch n.State() {
	case StateIdle:
		return ErrNotStarted
	case StateStopped:
		return ErrNodeClosed
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              入站连接
// ════════════════════════════════════════════════════════════════════════════

// Listen 在 addr 上接受入站连接
//
// 每个节点只维护一个监听器。
func (n *Node) Listen(addr string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case n.state == StateIdle:
		return ErrNotStarted
	case n.state == StateStopped:
		return ErrNodeClosed
	case n.listener != nil:
		return fmt.Errorf("already listening on %s", n.listener.Addr())
	}

	l, err := n.tcp.Listen(addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n.listener, n.acceptCancel, n.acceptDone = l, cancel, done

	go func() {
		defer close(done)
		n.serve(ctx, l)
	}()

	logger.Info("开始监听", "addr", l.Addr().String(), "node", n.NodeID().ShortString())
	return nil
}

// serve 接受连接，在有限的并发内执行入站握手
func (n *Node) serve(ctx context.Context, l *tcp.Listener) {
	var g errgroup.Group
	g.SetLimit(n.config.maxPendingHandshakes)

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, tcp.ErrListenerClosed) || ctx.Err() != nil {
				break
			}
			logger.Warn("接受连接失败", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}

		// 达到上限时阻塞，形成对 Accept 的背压
		g.Go(func() error {
			n.handleInbound(ctx, conn)
			return nil
		})
	}

	_ = g.Wait()
}

func (n *Node) handleInbound(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr()
	svc, err := n.upgrader.UpgradeInbound(ctx, conn)
	if err != nil {
		logger.Debug("入站握手失败", "addr", remoteAddr, "error", err)
		return
	}
	logger.Info("入站连接已建立", "peer", svc.RemoteNodeID().ShortString(), "addr", remoteAddr)

	if h := n.config.inbound; h != nil {
		go h(svc)
		return
	}
	go discard(svc)
}

// discard 未设置处理函数时丢弃入站消息，保持读循环不阻塞
func discard(svc *transport.Service) {
	peer := log.TruncateID(svc.RemoteNodeID().String(), 16)
	for msg := range svc.Messages() {
		logger.Debug("丢弃入站消息", "peer", peer, "size", len(msg))
	}
}
