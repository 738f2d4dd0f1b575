package noise

import (
	"fmt"
	"io"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/types"
)

// HandshakeSteps 每一方执行 PerformStep 的次数
const HandshakeSteps = 2

// ============================================================================
//                              HandshakeService
// ============================================================================

// HandshakeService 把三条 Act 映射为每方两个步骤
//
//	发起者: 写 Act1 → {读 Act2, 写 Act3}
//	响应者: {读 Act1, 写 Act2} → 读 Act3
//
// 任一步骤失败都会清除握手状态，之后的调用返回错误。
type HandshakeService struct {
	hs   *HandshakeState
	step int

	payload  []byte
	received [][]byte

	transport     *Transport
	handshakeHash []byte
}

// NewHandshakeService 包装一个新建的 HandshakeState
func NewHandshakeService(hs *HandshakeState) *HandshakeService {
	return &HandshakeService{hs: hs}
}

// Role 返回握手角色
func (s *HandshakeService) Role() types.Role {
	return s.hs.Role()
}

// Step 返回已完成的步骤数
func (s *HandshakeService) Step() int {
	return s.step
}

// Done 握手是否已完成
func (s *HandshakeService) Done() bool {
	return s.transport != nil
}

// Transport 返回握手产生的 Transport，未完成时返回 nil
func (s *HandshakeService) Transport() *Transport {
	return s.transport
}

// HandshakeHash 返回最终转录哈希，未完成时返回 nil
func (s *HandshakeService) HandshakeHash() []byte {
	return s.handshakeHash
}

// RemoteStatic 返回对端静态公钥（响应者在最后一步之后才可用）
func (s *HandshakeService) RemoteStatic() *crypto.PublicKey {
	return s.hs.RemoteStatic()
}

// SetPayload 设置之后每条写出 Act 携带的 payload
//
// 长度必须等于 WithPayloadSize 的约定；未设置时写出全零 payload。
func (s *HandshakeService) SetPayload(p []byte) {
	s.payload = append([]byte{}, p...)
}

// RemotePayloads 返回已读取的对端 Act payload（按到达顺序，空 payload 不记录）
func (s *HandshakeService) RemotePayloads() [][]byte {
	return s.received
}

// StepSizes 返回当前步骤期望读取的字节数和将写出的字节数
func (s *HandshakeService) StepSizes() (in, out int) {
	if s.step >= HandshakeSteps {
		return 0, 0
	}
	i := s.hs.index
	if s.hs.Role() == types.RoleInitiator {
		if s.step == 0 {
			return 0, s.hs.messageSize(i)
		}
		return s.hs.messageSize(i), s.hs.messageSize(i + 1)
	}
	if s.step == 0 {
		return s.hs.messageSize(i), s.hs.messageSize(i + 1)
	}
	return s.hs.messageSize(i), 0
}

// PerformStep 执行下一个握手步骤
//
// 参数：
//   - in: 本步骤需要读取的对端消息（发起者第一步忽略）
//   - out: 写出消息的缓冲区，容量不足时在改变任何状态之前返回 io.ErrShortBuffer
//
// 返回：
//   - int: 写入 out 的字节数
//   - error: 第三次调用返回 ErrNoMoreSteps
func (s *HandshakeService) PerformStep(in, out []byte) (int, error) {
	if s.step >= HandshakeSteps {
		return 0, ErrNoMoreSteps
	}

	_, outSize := s.StepSizes()
	if len(out) < outSize {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", io.ErrShortBuffer, outSize, len(out))
	}

	n, err := s.perform(in, out)
	if err != nil {
		s.hs.Zero()
		return 0, err
	}
	s.step++
	return n, nil
}

func (s *HandshakeService) perform(in, out []byte) (int, error) {
	initiator := s.hs.Role() == types.RoleInitiator

	switch {
	case initiator && s.step == 0:
		return s.write(out)
	case initiator && s.step == 1:
		if err := s.read(in); err != nil {
			return 0, err
		}
		return s.write(out)
	case !initiator && s.step == 0:
		if err := s.read(in); err != nil {
			return 0, err
		}
		return s.write(out)
	default:
		return 0, s.read(in)
	}
}

func (s *HandshakeService) write(out []byte) (int, error) {
	payload := s.payload
	if payload == nil {
		payload = make([]byte, s.hs.payloadSize)
	}
	msg, hh, t, err := s.hs.WriteMessage(out[:0], payload)
	if err != nil {
		return 0, err
	}
	s.complete(hh, t)
	return len(msg), nil
}

func (s *HandshakeService) read(in []byte) error {
	payload, hh, t, err := s.hs.ReadMessage(nil, in)
	if err != nil {
		return err
	}
	if len(payload) > 0 {
		s.received = append(s.received, payload)
	}
	s.complete(hh, t)
	return nil
}

func (s *HandshakeService) complete(hh []byte, t *Transport) {
	if t != nil {
		s.transport = t
		s.handshakeHash = hh
	}
}

// Close 清除尚未完成的握手状态
//
// 已产生的 Transport 归调用方所有，不受影响。
func (s *HandshakeService) Close() {
	s.hs.Zero()
}
