package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bolt8/internal/core/security/noise"
	"github.com/dep2p/go-bolt8/pkg/types"
)

// ============================================================================
//                              握手与收发
// ============================================================================

func TestService_HandshakeAndExchange(t *testing.T) {
	initiator, responder := connectedPair(t)

	assert.Equal(t, types.RoleInitiator, initiator.Role())
	assert.Equal(t, types.RoleResponder, responder.Role())
	assert.NotEqual(t, initiator.ID(), responder.ID())

	// 双方转录哈希一致
	require.Len(t, initiator.HandshakeHash(), 32)
	assert.Equal(t, initiator.HandshakeHash(), responder.HandshakeHash())

	// 响应方从 Act3 学到发起方身份
	assert.False(t, responder.RemoteNodeID().IsEmpty())
	assert.False(t, initiator.RemoteNodeID().IsEmpty())
	assert.NotEqual(t, initiator.RemoteNodeID(), responder.RemoteNodeID())
	assert.Equal(t, responder.RemoteNodeID(), responder.RemoteStatic().NodeID())

	ctx := context.Background()
	require.NoError(t, initiator.Send(ctx, []byte("hello")))
	assert.Equal(t, []byte("hello"), recv(t, responder))

	require.NoError(t, responder.Send(ctx, []byte("world")))
	assert.Equal(t, []byte("world"), recv(t, initiator))

	// 空消息也是合法帧
	require.NoError(t, initiator.Send(ctx, nil))
	assert.Empty(t, recv(t, responder))

	t.Log("✅ 握手与双向收发测试通过")
}

func TestService_OrderedDeliveryAcrossRotation(t *testing.T) {
	initiator, responder := connectedPair(t, WithMessageBuffer(8))

	const count = noise.KeyRotationInterval + 10
	ctx := context.Background()

	sendErr := make(chan error, 1)
	go func() {
		for i := 0; i < count; i++ {
			if err := initiator.Send(ctx, []byte(fmt.Sprintf("msg-%d", i))); err != nil {
				sendErr <- err
				return
			}
		}
		sendErr <- nil
	}()

	// 每条消息占用长度和消息体两个 nonce，跨越多次密钥轮换
	for i := 0; i < count; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), string(recv(t, responder)))
	}
	require.NoError(t, <-sendErr)
}

func TestService_MaxSizeMessage(t *testing.T) {
	initiator, responder := connectedPair(t)
	ctx := context.Background()

	big := bytes.Repeat([]byte{0x5a}, noise.MaxMessageSize)
	go func() { _ = initiator.Send(ctx, big) }()
	assert.Equal(t, big, recv(t, responder))

	err := initiator.Send(ctx, make([]byte, noise.MaxMessageSize+1))
	assert.ErrorIs(t, err, noise.ErrMessageTooLarge)

	// 超长消息在加密前被拒绝，连接仍可用
	go func() { _ = initiator.Send(ctx, []byte("still ok")) }()
	assert.Equal(t, []byte("still ok"), recv(t, responder))
}

func TestService_ConcurrentSend(t *testing.T) {
	initiator, responder := connectedPair(t)

	const writers, perWriter = 8, 25
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, initiator.Send(ctx, []byte(fmt.Sprintf("%d:%d", w, i))))
			}
		}(w)
	}

	// 每个写入者内部保持顺序，所有帧都能解密
	next := make([]int, writers)
	for n := 0; n < writers*perWriter; n++ {
		var w, i int
		_, err := fmt.Sscanf(string(recv(t, responder)), "%d:%d", &w, &i)
		require.NoError(t, err)
		assert.Equal(t, next[w], i)
		next[w]++
	}
	wg.Wait()

	assert.Nil(t, responder.Err())
	t.Log("✅ 并发发送测试通过")
}

// ============================================================================
//                              握手超时
// ============================================================================

func TestService_InitiatorTimeoutAct1Write(t *testing.T) {
	mock := clock.NewMock()
	a, _ := net.Pipe()
	svc := NewInitiator(a, newKey(t), newKey(t).PublicKey(),
		WithClock(mock), WithHandshakeTimeout(time.Second))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	// 对端从不读取，Act1 写入阻塞
	err := advanceUntil(t, mock, time.Second, errCh)

	var te *HandshakeTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Act)
	assert.Equal(t, "write", te.Op)
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
	waitDone(t, svc)
}

func TestService_InitiatorTimeoutAct2Read(t *testing.T) {
	mock := clock.NewMock()
	a, b := net.Pipe()
	defer b.Close()

	svc := NewInitiator(a, newKey(t), newKey(t).PublicKey(),
		WithClock(mock), WithHandshakeTimeout(time.Second))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	// 对端读走 Act1 后沉默
	act1 := make([]byte, noise.ActOneSize)
	_, err := io.ReadFull(b, act1)
	require.NoError(t, err)

	err = advanceUntil(t, mock, time.Second, errCh)

	var te *HandshakeTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Act)
	assert.Equal(t, "read", te.Op)
}

func TestService_ResponderTimeoutAct1Read(t *testing.T) {
	mock := clock.NewMock()
	rep := &recordingReporter{}
	_, b := net.Pipe()

	svc := NewResponder(b, newKey(t),
		WithClock(mock), WithHandshakeTimeout(time.Second), WithReporter(rep))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	err := advanceUntil(t, mock, time.Second, errCh)

	var te *HandshakeTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Act)
	assert.Equal(t, "read", te.Op)

	waitDone(t, svc)
	snap := rep.snapshot()
	assert.Equal(t, 1, snap.started)
	assert.Equal(t, []string{ReasonTimeout}, snap.failed)
	assert.Equal(t, 0, snap.completed)
}

func TestService_ResponderTimeoutAct3Read(t *testing.T) {
	mock := clock.NewMock()
	initKey, respKey := newKey(t), newKey(t)
	a, b := net.Pipe()
	defer a.Close()

	svc := NewResponder(b, respKey, WithClock(mock), WithHandshakeTimeout(time.Second))
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	// 对端发送 Act1、读取 Act2，然后不再发送 Act3
	peer := newRawPeer(t, a, types.RoleInitiator, initKey, respKey.PublicKey())
	peer.step(t)
	act2 := make([]byte, noise.ActTwoSize)
	_, err := io.ReadFull(a, act2)
	require.NoError(t, err)

	err = advanceUntil(t, mock, time.Second, errCh)

	var te *HandshakeTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Act)
	assert.Equal(t, "read", te.Op)
}

func TestService_HandshakeWithinTimeout(t *testing.T) {
	// 推进时钟之前完成的握手不受影响
	mock := clock.NewMock()
	initiator, responder := connectedPair(t, WithClock(mock), WithHandshakeTimeout(time.Second))

	mock.Add(time.Hour)
	go func() { _ = initiator.Send(context.Background(), []byte("after")) }()
	assert.Equal(t, []byte("after"), recv(t, responder))
}

// ============================================================================
//                              失败与关闭
// ============================================================================

func TestService_WrongRemoteKey(t *testing.T) {
	rep := &recordingReporter{}
	initKey, respKey := newKey(t), newKey(t)
	a, b := net.Pipe()

	initiator := NewInitiator(a, initKey, newKey(t).PublicKey(), WithReporter(rep))
	responder := NewResponder(b, respKey, WithReporter(rep))

	respErr := make(chan error, 1)
	go func() { respErr <- responder.Initialize(context.Background()) }()

	initErr := initiator.Initialize(context.Background())
	require.Error(t, initErr)

	err := <-respErr
	assert.ErrorIs(t, err, noise.ErrAuthenticationFailure)
	assert.ErrorIs(t, responder.Err(), noise.ErrAuthenticationFailure)

	waitDone(t, initiator)
	waitDone(t, responder)

	_, ok := <-responder.Messages()
	assert.False(t, ok, "失败后消息通道关闭")

	snap := rep.snapshot()
	assert.Equal(t, 2, snap.started)
	assert.Contains(t, snap.failed, ReasonAuthentication)
	assert.Equal(t, 0, snap.closed)
}

func TestService_VersionMismatch(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()

	svc := NewResponder(b, newKey(t))
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	act1 := make([]byte, noise.ActOneSize)
	act1[0] = 1
	_, err := a.Write(act1)
	require.NoError(t, err)

	assert.ErrorIs(t, <-errCh, noise.ErrProtocolVersionMismatch)
	assert.Equal(t, ReasonVersion, failureReason(svc.Err()))
}

func TestService_TamperedFrame(t *testing.T) {
	initKey, respKey := newKey(t), newKey(t)
	a, b := net.Pipe()
	defer a.Close()

	svc := NewResponder(b, respKey)
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	peer := newRawPeer(t, a, types.RoleInitiator, initKey, respKey.PublicKey())
	peer.step(t)
	peer.step(t)
	require.NoError(t, <-errCh)
	require.NotNil(t, peer.t)

	frame, err := peer.t.WriteMessage([]byte("tampered"))
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0x01
	_, err = a.Write(frame)
	require.NoError(t, err)

	waitDone(t, svc)
	assert.ErrorIs(t, svc.Err(), noise.ErrAuthenticationFailure)

	// 不会投递任何被篡改的数据
	_, ok := <-svc.Messages()
	assert.False(t, ok)
}

func TestService_HandshakePayloadSize(t *testing.T) {
	for _, size := range []int{4, 20, 1000} {
		t.Run(fmt.Sprintf("payload=%d", size), func(t *testing.T) {
			initiator, responder := connectedPair(t, WithNoiseOptions(noise.WithPayloadSize(size)))
			assert.Equal(t, initiator.HandshakeHash(), responder.HandshakeHash())

			ctx := context.Background()
			require.NoError(t, initiator.Send(ctx, []byte("hello")))
			assert.Equal(t, []byte("hello"), recv(t, responder))
		})
	}
}

func TestService_MalformedAct2ReportsAct2(t *testing.T) {
	initKey, respKey := newKey(t), newKey(t)
	a, b := net.Pipe()
	defer a.Close()

	svc := NewInitiator(b, initKey, respKey.PublicKey())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	act1 := make([]byte, noise.ActOneSize)
	_, err := io.ReadFull(a, act1)
	require.NoError(t, err)

	// 版本正确，但临时公钥前缀无效
	act2 := make([]byte, noise.ActTwoSize)
	act2[1] = 0x05
	_, err = a.Write(act2)
	require.NoError(t, err)

	err = <-errCh
	require.ErrorIs(t, err, noise.ErrMalformedMessage)
	assert.Contains(t, err.Error(), "act 2:")
	assert.NotContains(t, err.Error(), "act 3")
}

func TestService_NoDeliveryAfterClose(t *testing.T) {
	initiator, responder := connectedPair(t, WithMessageBuffer(1))
	ctx := context.Background()

	// 第一条占满通道，第二条解密后阻塞在投递
	require.NoError(t, initiator.Send(ctx, []byte("first")))
	require.Eventually(t, func() bool { return len(responder.Messages()) == 1 }, testTimeout, time.Millisecond)
	require.NoError(t, initiator.Send(ctx, []byte("second")))

	require.NoError(t, responder.Close())
	assert.NoError(t, responder.Err())

	var got [][]byte
	for msg := range responder.Messages() {
		got = append(got, msg)
	}
	assert.Equal(t, [][]byte{[]byte("first")}, got)
}

func TestService_PeerEOF(t *testing.T) {
	initiator, responder := connectedPair(t)

	// 直接关闭发起方连接，响应方读循环收到 EOF
	require.NoError(t, initiator.conn.Close())

	waitDone(t, responder)
	err := responder.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe), "err = %v", err)

	assert.ErrorIs(t, responder.Send(context.Background(), []byte("x")), ErrServiceClosed)
}

func TestService_CloseIdempotent(t *testing.T) {
	rep := &recordingReporter{}
	initiator, responder := connectedPair(t, WithReporter(rep))

	require.NoError(t, initiator.Close())
	require.NoError(t, initiator.Close())
	waitDone(t, initiator)
	assert.NoError(t, initiator.Err(), "本地关闭不记录错误")

	_, ok := <-initiator.Messages()
	assert.False(t, ok)

	assert.ErrorIs(t, initiator.Send(context.Background(), []byte("x")), ErrServiceClosed)

	// 对端随之终止
	waitDone(t, responder)
	assert.Equal(t, 2, rep.snapshot().closed)

	t.Log("✅ 重复关闭测试通过")
}

func TestService_ParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	initiator, responder := connectedPair(t, WithContext(ctx))

	cancel()
	waitDone(t, initiator)
	waitDone(t, responder)
	assert.NoError(t, initiator.Err())
	assert.ErrorIs(t, initiator.Send(context.Background(), []byte("x")), ErrServiceClosed)
}

func TestService_StateErrors(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	svc := NewResponder(a, newKey(t))
	assert.ErrorIs(t, svc.Send(context.Background(), []byte("x")), ErrNotInitialized)
	assert.Nil(t, svc.HandshakeHash())
	assert.True(t, svc.RemoteNodeID().IsEmpty())

	require.NoError(t, svc.Close())
	assert.ErrorIs(t, svc.Initialize(context.Background()), ErrServiceClosed)
	waitDone(t, svc)

	initiator, _ := connectedPair(t)
	assert.ErrorIs(t, initiator.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestService_CloseDuringHandshake(t *testing.T) {
	_, b := net.Pipe()
	svc := NewResponder(b, newKey(t))

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Initialize(context.Background()) }()

	// 等待握手进入阻塞读
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, svc.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrServiceClosed)
	case <-time.After(testTimeout):
		t.Fatal("Initialize 未返回")
	}
	assert.NoError(t, svc.Err())
}

func TestService_InitializeContextCanceled(t *testing.T) {
	_, b := net.Pipe()
	svc := NewResponder(b, newKey(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Initialize(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	waitDone(t, svc)
}

func TestService_SendCanceledContext(t *testing.T) {
	initiator, responder := connectedPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, initiator.Send(ctx, []byte("x")), context.Canceled)

	// 取消的发送不消耗 nonce，后续消息仍可解密
	go func() { _ = initiator.Send(context.Background(), []byte("next")) }()
	assert.Equal(t, []byte("next"), recv(t, responder))
}

func TestService_Reporter(t *testing.T) {
	rep := &recordingReporter{}
	initiator, responder := connectedPair(t, WithReporter(rep))

	require.NoError(t, initiator.Send(context.Background(), []byte("abc")))
	recv(t, responder)

	snap := rep.snapshot()
	assert.Equal(t, 2, snap.started)
	assert.Equal(t, 2, snap.completed)
	assert.Empty(t, snap.failed)
	assert.Equal(t, int64(noise.EncryptedHeaderSize+3+noise.TagSize), snap.sent)
	assert.Equal(t, snap.sent, snap.recv)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&HandshakeTimeoutError{Act: 2, Op: "read"}, ReasonTimeout},
		{fmt.Errorf("act 2: %w", noise.ErrAuthenticationFailure), ReasonAuthentication},
		{noise.ErrProtocolVersionMismatch, ReasonVersion},
		{noise.ErrMalformedMessage, ReasonMalformed},
		{noise.ErrInvalidKey, ReasonInvalidKey},
		{fmt.Errorf("%w: x", ErrServiceClosed), ReasonCanceled},
		{fmt.Errorf("act 1 read: %w", io.EOF), ReasonEOF},
		{errors.New("boom"), ReasonIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureReason(tt.err), "%v", tt.err)
	}
}

func TestHandshakeTimeoutError(t *testing.T) {
	err := &HandshakeTimeoutError{Act: 3, Op: "read", Limit: time.Second}
	assert.Equal(t, "handshake timeout: act 3 read after 1s", err.Error())
	assert.True(t, err.Timeout())
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", err), ErrHandshakeTimeout)
}
