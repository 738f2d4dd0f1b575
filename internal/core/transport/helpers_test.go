package transport

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bolt8/internal/core/security/noise"
	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/types"
)

const testTimeout = 5 * time.Second

func newKey(t testing.TB) *crypto.PrivateKey {
	t.Helper()
	k, err := crypto.GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	return k
}

// connectedPair 在 net.Pipe 上完成握手，返回 (发起方, 响应方)
func connectedPair(t *testing.T, opts ...Option) (*Service, *Service) {
	t.Helper()
	initKey, respKey := newKey(t), newKey(t)
	a, b := net.Pipe()

	initiator := NewInitiator(a, initKey, respKey.PublicKey(), opts...)
	responder := NewResponder(b, respKey, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- responder.Initialize(context.Background()) }()
	require.NoError(t, initiator.Initialize(context.Background()))
	require.NoError(t, <-errCh)

	t.Cleanup(func() {
		_ = initiator.Close()
		_ = responder.Close()
	})
	return initiator, responder
}

// recv 读取一条消息，超时则失败
func recv(t *testing.T, s *Service) []byte {
	t.Helper()
	select {
	case msg, ok := <-s.Messages():
		require.True(t, ok, "消息通道已关闭")
		return msg
	case <-time.After(testTimeout):
		t.Fatal("接收超时")
		return nil
	}
}

// waitDone 等待服务终止
func waitDone(t *testing.T, s *Service) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("服务未终止")
	}
}

// advanceUntil 不断推进 mock 时钟直到 errCh 产生结果
func advanceUntil(t *testing.T, mock *clock.Mock, step time.Duration, errCh <-chan error) error {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case err := <-errCh:
			return err
		case <-deadline:
			t.Fatal("等待超时错误失败")
			return nil
		default:
			mock.Add(step)
			time.Sleep(time.Millisecond)
		}
	}
}

// rawPeer 直接使用 noise 包扮演对端，便于构造异常流量
type rawPeer struct {
	conn net.Conn
	hs   *noise.HandshakeService
	t    *noise.Transport
}

func newRawPeer(t *testing.T, conn net.Conn, role types.Role, local *crypto.PrivateKey, remote *crypto.PublicKey) *rawPeer {
	t.Helper()
	hs, err := noise.NewHandshakeState(role, local, remote)
	require.NoError(t, err)
	return &rawPeer{conn: conn, hs: noise.NewHandshakeService(hs)}
}

// step 执行一个握手步骤：读入 in 字节，写出结果
func (p *rawPeer) step(t *testing.T) {
	t.Helper()
	inSize, outSize := p.hs.StepSizes()
	in := make([]byte, inSize)
	if inSize > 0 {
		_, err := io.ReadFull(p.conn, in)
		require.NoError(t, err)
	}
	out := make([]byte, outSize)
	n, err := p.hs.PerformStep(in, out)
	require.NoError(t, err)
	if n > 0 {
		_, err = p.conn.Write(out[:n])
		require.NoError(t, err)
	}
	if p.hs.Done() {
		p.t = p.hs.Transport()
	}
}

// recordingReporter 记录上报事件
type recordingReporter struct {
	mu        sync.Mutex
	started   int
	completed int
	failed    []string
	closed    int
	sent      int64
	recv      int64
}

func (r *recordingReporter) HandshakeStarted(types.Role) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

func (r *recordingReporter) HandshakeCompleted(types.Role, time.Duration) {
	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
}

func (r *recordingReporter) HandshakeFailed(_ types.Role, reason string) {
	r.mu.Lock()
	r.failed = append(r.failed, reason)
	r.mu.Unlock()
}

func (r *recordingReporter) ConnectionClosed(types.Role, types.NodeID) {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
}

func (r *recordingReporter) LogSentMessage(_ types.NodeID, n int64) {
	r.mu.Lock()
	r.sent += n
	r.mu.Unlock()
}

func (r *recordingReporter) LogRecvMessage(_ types.NodeID, n int64) {
	r.mu.Lock()
	r.recv += n
	r.mu.Unlock()
}

type reporterSnapshot struct {
	started   int
	completed int
	failed    []string
	closed    int
	sent      int64
	recv      int64
}

func (r *recordingReporter) snapshot() reporterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return reporterSnapshot{
		started:   r.started,
		completed: r.completed,
		failed:    append([]string(nil), r.failed...),
		closed:    r.closed,
		sent:      r.sent,
		recv:      r.recv,
	}
}
