package transport

import (
	"context"
	"net"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-bolt8/internal/core/identity"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
)

// ============================================================================
//                              Upgrader
// ============================================================================

// Upgrader 把原始连接升级为加密的 Service
//
// 它持有本地身份和公共选项，跟踪所有存活的服务，
// Close 时统一关闭。
type Upgrader struct {
	identity *identity.Identity
	opts     []Option

	mu       sync.Mutex
	services map[string]*Service
	closed   bool
}

// NewUpgrader 创建 Upgrader
func NewUpgrader(id *identity.Identity, opts ...Option) *Upgrader {
	return &Upgrader{
		identity: id,
		opts:     opts,
		services: make(map[string]*Service),
	}
}

// UpgradeOutbound 以发起方身份握手
//
// 失败时 conn 已被关闭。
func (u *Upgrader) UpgradeOutbound(ctx context.Context, conn net.Conn, remote *crypto.PublicKey, opts ...Option) (*Service, error) {
	key, err := u.localKey(conn)
	if err != nil {
		return nil, err
	}
	return u.upgrade(ctx, NewInitiator(conn, key, remote, u.merge(opts)...))
}

// UpgradeInbound 以响应方身份握手
//
// 失败时 conn 已被关闭。
func (u *Upgrader) UpgradeInbound(ctx context.Context, conn net.Conn, opts ...Option) (*Service, error) {
	key, err := u.localKey(conn)
	if err != nil {
		return nil, err
	}
	return u.upgrade(ctx, NewResponder(conn, key, u.merge(opts)...))
}

// localKey 取出本地私钥，失败时关闭 conn
func (u *Upgrader) localKey(conn net.Conn) (*crypto.PrivateKey, error) {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		_ = conn.Close()
		return nil, ErrUpgraderClosed
	}

	key, err := u.identity.PrivateKey()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return key, nil
}

func (u *Upgrader) merge(opts []Option) []Option {
	all := make([]Option, 0, len(u.opts)+len(opts))
	all = append(all, u.opts...)
	return append(all, opts...)
}

func (u *Upgrader) upgrade(ctx context.Context, svc *Service) (*Service, error) {
	if !u.track(svc) {
		_ = svc.Close()
		return nil, ErrUpgraderClosed
	}

	if err := svc.Initialize(ctx); err != nil {
		u.untrack(svc)
		return nil, err
	}

	go func() {
		<-svc.Done()
		u.untrack(svc)
	}()
	return svc, nil
}

func (u *Upgrader) track(svc *Service) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return false
	}
	u.services[svc.ID()] = svc
	return true
}

func (u *Upgrader) untrack(svc *Service) {
	u.mu.Lock()
	delete(u.services, svc.ID())
	u.mu.Unlock()
}

// Services 返回当前存活的服务快照
func (u *Upgrader) Services() []*Service {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Service, 0, len(u.services))
	for _, s := range u.services {
		out = append(out, s)
	}
	return out
}

// Count 返回存活服务数量
func (u *Upgrader) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.services)
}

// Close 关闭所有服务，之后的升级请求返回 ErrUpgraderClosed
func (u *Upgrader) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	services := make([]*Service, 0, len(u.services))
	for _, s := range u.services {
		services = append(services, s)
	}
	u.mu.Unlock()

	var err error
	for _, s := range services {
		err = multierr.Append(err, s.Close())
	}
	return err
}
