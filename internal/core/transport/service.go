package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-bolt8/internal/core/security/noise"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/lib/log"
	"github.com/dep2p/go-bolt8/pkg/types"
)

var logger = log.Logger("core/transport")

// aLongTimeAgo 用于立即打断阻塞中的 I/O
var aLongTimeAgo = time.Unix(1, 0)

type serviceState int

const (
	stateNew serviceState = iota
	stateHandshaking
	stateEstablished
	stateClosed
)

// ============================================================================
//                              Service
// ============================================================================

// Service 在一条字节流上运行 BOLT8 握手和加密消息收发
//
// 生命周期：New → Initialize → (Send / Messages) → Close。
// 读循环是唯一的读者；所有写入经 writeMu 串行化，
// 因此发送 nonce 的递增顺序与线路上的帧顺序一致。
type Service struct {
	id    string
	conn  net.Conn
	role  types.Role
	local *crypto.PrivateKey
	opts  options
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         serviceState
	closing       bool
	err           error
	transport     *noise.Transport
	remote        *crypto.PublicKey
	remoteID      types.NodeID
	handshakeHash []byte

	writeMu sync.Mutex

	msgs     chan []byte
	loopDone chan struct{}
	done     chan struct{}
	closeErr error
}

// NewInitiator 创建发起方服务，remote 为预先知道的对端静态公钥
func NewInitiator(conn net.Conn, local *crypto.PrivateKey, remote *crypto.PublicKey, opts ...Option) *Service {
	s := newService(conn, types.RoleInitiator, local, opts)
	s.remote = remote
	return s
}

// NewResponder 创建响应方服务，对端身份在 Act3 之后获知
func NewResponder(conn net.Conn, local *crypto.PrivateKey, opts ...Option) *Service {
	return newService(conn, types.RoleResponder, local, opts)
}

func newService(conn net.Conn, role types.Role, local *crypto.PrivateKey, opts []Option) *Service {
	o := applyOptions(opts)
	ctx, cancel := context.WithCancel(o.parent)
	id := uuid.NewString()

	return &Service{
		id:       id,
		conn:     conn,
		role:     role,
		local:    local,
		opts:     o,
		log:      logger.With("conn", id[:8], "role", role.String()),
		ctx:      ctx,
		cancel:   cancel,
		msgs:     make(chan []byte, o.messageBuffer),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID 返回服务的唯一标识
func (s *Service) ID() string { return s.id }

// Role 返回本地角色
func (s *Service) Role() types.Role { return s.role }

// LocalAddr 返回底层连接的本地地址
func (s *Service) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr 返回底层连接的远端地址
func (s *Service) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// RemoteStatic 返回对端静态公钥
//
// 发起方在构造时即已知；响应方在握手完成前返回 nil。
func (s *Service) RemoteStatic() *crypto.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// RemoteNodeID 返回对端节点 ID，握手完成前为空
func (s *Service) RemoteNodeID() types.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// HandshakeHash 返回握手转录哈希的副本
func (s *Service) HandshakeHash() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshakeHash == nil {
		return nil
	}
	return append([]byte(nil), s.handshakeHash...)
}

// Messages 返回按序投递的入站明文
//
// 读循环退出后通道关闭。
func (s *Service) Messages() <-chan []byte { return s.msgs }

// Done 服务完全停止后关闭
func (s *Service) Done() <-chan struct{} { return s.done }

// Err 返回导致服务停止的错误；本地 Close 返回 nil
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ============================================================================
//                              握手
// ============================================================================

// Initialize 执行握手并启动读循环
//
// 每个 Act 的单次读或写都受握手超时约束，超时返回 *HandshakeTimeoutError。
// 失败时连接被关闭，服务进入终止状态。
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateNew:
		s.state = stateHandshaking
	case stateClosed:
		s.mu.Unlock()
		return ErrServiceClosed
	default:
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.mu.Unlock()

	if s.conn == nil {
		err := ErrNilConn
		s.abort(err)
		return err
	}

	// Close 与调用方 ctx 都能中止握手
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopLife := context.AfterFunc(s.ctx, cancel)
	defer stopLife()

	start := s.opts.clock.Now()
	s.opts.reporter.HandshakeStarted(s.role)
	s.log.Debug("开始握手", "remote", s.conn.RemoteAddr())

	t, hh, err := s.handshake(hctx)
	if err != nil {
		if s.ctx.Err() != nil && !errors.Is(err, ErrHandshakeTimeout) {
			err = fmt.Errorf("%w: %w", ErrServiceClosed, err)
		}
		s.opts.reporter.HandshakeFailed(s.role, failureReason(err))
		s.log.Debug("握手失败", "err", err)
		s.abort(err)
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		t.Zero()
		s.opts.reporter.HandshakeFailed(s.role, failureReason(ErrServiceClosed))
		s.abort(ErrServiceClosed)
		return ErrServiceClosed
	}
	s.transport = t
	s.remote = t.RemoteStatic()
	s.remoteID = s.remote.NodeID()
	s.handshakeHash = hh
	s.state = stateEstablished
	s.mu.Unlock()

	s.opts.reporter.HandshakeCompleted(s.role, s.opts.clock.Since(start))
	s.log.Debug("握手完成", "peer", log.TruncateID(s.remoteID.String(), 8))

	go s.readLoop()
	go s.reap()
	return nil
}

// handshake 通过 HandshakeService 依次完成三个 Act
func (s *Service) handshake(ctx context.Context) (*noise.Transport, []byte, error) {
	var remote *crypto.PublicKey
	if s.role == types.RoleInitiator {
		remote = s.remote
	}
	hs, err := noise.NewHandshakeState(s.role, s.local, remote, s.opts.noiseOpts...)
	if err != nil {
		return nil, nil, err
	}
	svc := noise.NewHandshakeService(hs)
	defer svc.Close()

	act := 1
	for svc.Step() < noise.HandshakeSteps {
		inSize, outSize := svc.StepSizes()
		in, out := make([]byte, inSize), make([]byte, outSize)

		// 读入的 Act 出错时按该 Act 报告
		stepAct := act
		if inSize > 0 {
			if err := s.step(ctx, act, "read", func() error {
				_, err := io.ReadFull(s.conn, in)
				return err
			}); err != nil {
				return nil, nil, err
			}
			act++
		}

		n, err := svc.PerformStep(in, out)
		if err != nil {
			return nil, nil, fmt.Errorf("act %d: %w", stepAct, err)
		}

		if n > 0 {
			msg := out[:n]
			if err := s.step(ctx, act, "write", func() error {
				_, err := s.conn.Write(msg)
				return err
			}); err != nil {
				return nil, nil, err
			}
			act++
		}
	}

	return svc.Transport(), svc.HandshakeHash(), nil
}

// step 在握手超时内执行一次 I/O
func (s *Service) step(ctx context.Context, act int, op string, fn func() error) error {
	stepCtx, cancel := s.opts.clock.WithTimeout(ctx, s.opts.handshakeTimeout)
	defer cancel()

	fired, err := interruptible(stepCtx, s.conn.SetDeadline, fn)
	if fired && err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("act %d %s: %w", act, op, ctx.Err())
		}
		return &HandshakeTimeoutError{Act: act, Op: op, Limit: s.opts.handshakeTimeout}
	}
	if err != nil {
		return fmt.Errorf("act %d %s: %w", act, op, err)
	}
	return nil
}

// interruptible 执行 fn，ctx 结束时把截止时间设为过去以打断阻塞 I/O
//
// fired 表示 ctx 在 fn 返回前已经结束。返回时截止时间总是被恢复。
func interruptible(ctx context.Context, setDeadline func(time.Time) error, fn func() error) (fired bool, err error) {
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = setDeadline(aLongTimeAgo)
		close(interrupted)
	})

	err = fn()
	if stop() {
		return false, err
	}
	<-interrupted
	_ = setDeadline(time.Time{})
	return true, err
}

// abort 在握手阶段终止服务
func (s *Service) abort(cause error) {
	s.mu.Lock()
	s.state = stateClosed
	if s.err == nil && !s.closing {
		s.err = cause
	}
	s.mu.Unlock()

	s.cancel()
	if s.conn != nil {
		s.closeErr = ignoreClosed(s.conn.Close())
	}
	close(s.msgs)
	close(s.loopDone)
	close(s.done)
}

// ============================================================================
//                              消息收发
// ============================================================================

// Send 加密并发送一条消息
//
// 加密与写入在同一把锁内完成。写入失败会使服务终止，
// 因为部分写出的帧无法恢复流同步。ctx 在写入中途结束同样视为写入失败。
func (s *Service) Send(ctx context.Context, msg []byte) error {
	if len(msg) > noise.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", noise.ErrMessageTooLarge, len(msg))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.established()
	if err != nil {
		return err
	}

	frame, err := t.WriteMessage(msg)
	if err != nil {
		s.fail(err)
		return err
	}

	_, err = interruptible(ctx, s.conn.SetWriteDeadline, func() error {
		_, err := s.conn.Write(frame)
		return err
	})
	if err != nil {
		err = fmt.Errorf("write: %w", err)
		s.fail(err)
		return err
	}

	s.opts.reporter.LogSentMessage(s.remoteID, int64(len(frame)))
	return nil
}

// established 返回可用的 Transport
func (s *Service) established() (*noise.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == stateNew || s.state == stateHandshaking:
		return nil, ErrNotInitialized
	case s.state == stateClosed || s.ctx.Err() != nil:
		return nil, ErrServiceClosed
	}
	return s.transport, nil
}

// readLoop 是连接上唯一的读者
func (s *Service) readLoop() {
	defer close(s.loopDone)
	defer close(s.msgs)

	var header [noise.EncryptedHeaderSize]byte
	for {
		if _, err := io.ReadFull(s.conn, header[:]); err != nil {
			s.fail(fmt.Errorf("read header: %w", err))
			return
		}
		n, err := s.transport.ReadMessageLength(header[:])
		if err != nil {
			s.fail(err)
			return
		}

		body := make([]byte, n+noise.TagSize)
		if _, err := io.ReadFull(s.conn, body); err != nil {
			s.fail(fmt.Errorf("read body: %w", err))
			return
		}
		msg, err := s.transport.ReadMessagePayload(body)
		if err != nil {
			s.fail(err)
			return
		}
		s.opts.reporter.LogRecvMessage(s.remoteID, int64(len(header)+len(body)))

		// 已取消时不再投递
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		select {
		case s.msgs <- msg:
		case <-s.ctx.Done():
			return
		}
	}
}

// fail 记录第一个致命错误并触发关闭
func (s *Service) fail(cause error) {
	s.mu.Lock()
	if s.err == nil && !s.closing && s.ctx.Err() == nil {
		s.err = cause
	}
	s.mu.Unlock()
	s.cancel()
}

// reap 等待取消信号并释放所有资源
func (s *Service) reap() {
	<-s.ctx.Done()

	s.mu.Lock()
	s.state = stateClosed
	err := s.err
	s.mu.Unlock()

	s.closeErr = ignoreClosed(s.conn.Close())
	<-s.loopDone

	s.writeMu.Lock()
	s.transport.Zero()
	s.writeMu.Unlock()

	s.opts.reporter.ConnectionClosed(s.role, s.remoteID)
	if err != nil {
		s.log.Debug("连接终止", "err", err)
	} else {
		s.log.Debug("连接关闭")
	}
	close(s.done)
}

// Close 取消服务并等待读循环与写入者退出
//
// 可重复调用。返回关闭底层连接时的错误。
func (s *Service) Close() error {
	s.mu.Lock()
	s.closing = true
	st := s.state
	if st == stateNew {
		s.state = stateClosed
	}
	s.mu.Unlock()

	if st == stateNew {
		s.cancel()
		if s.conn != nil {
			s.closeErr = ignoreClosed(s.conn.Close())
		}
		close(s.msgs)
		close(s.loopDone)
		close(s.done)
		return s.closeErr
	}

	s.cancel()
	<-s.done
	return s.closeErr
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
