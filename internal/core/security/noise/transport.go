package noise

import (
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
)

const (
	// LengthSize 明文长度字段大小
	LengthSize = 2

	// EncryptedHeaderSize 加密长度头：2 字节长度 + 16 字节标签
	EncryptedHeaderSize = LengthSize + TagSize

	// MaxMessageSize 单条消息的最大明文长度
	MaxMessageSize = 65535

	// KeyRotationInterval 每个方向的密钥在使用这么多次 nonce 后轮换
	KeyRotationInterval = 1000
)

// ============================================================================
//                              Transport
// ============================================================================

// Transport 握手完成后的消息加密层
//
// 两个方向各有独立的 CipherState 和链式密钥副本，互不共享 nonce。
// 每条消息消耗两个 nonce：一个用于长度头，一个用于正文。
//
// Transport 不是并发安全的：写方向和读方向可以分别由一个 goroutine
// 使用，同一方向的调用由持有者串行化。
type Transport struct {
	send cipherDirection
	recv cipherDirection

	initiator     bool
	handshakeHash [HashSize]byte
	remoteStatic  *crypto.PublicKey
	closed        bool
}

// cipherDirection 单个方向的加密状态
type cipherDirection struct {
	cs CipherState
	ck [HashSize]byte
}

// newTransport 由 Split 的输出构造 Transport
//
// c1 用于发起者→响应者，c2 用于响应者→发起者。
func newTransport(initiator bool, c1, c2 *CipherState, ck [HashSize]byte, hh []byte, remoteStatic *crypto.PublicKey) *Transport {
	t := &Transport{
		initiator:    initiator,
		remoteStatic: remoteStatic,
	}
	copy(t.handshakeHash[:], hh)

	if initiator {
		t.send.cs, t.recv.cs = *c1, *c2
	} else {
		t.send.cs, t.recv.cs = *c2, *c1
	}
	t.send.ck, t.recv.ck = ck, ck

	c1.Zero()
	c2.Zero()
	return t
}

// IsInitiator 本方是否为握手发起者
func (t *Transport) IsInitiator() bool {
	return t.initiator
}

// HandshakeHash 返回握手最终转录哈希（可用于通道绑定）
func (t *Transport) HandshakeHash() []byte {
	out := make([]byte, HashSize)
	copy(out, t.handshakeHash[:])
	return out
}

// RemoteStatic 返回已认证的对端静态公钥
func (t *Transport) RemoteStatic() *crypto.PublicKey {
	return t.remoteStatic
}

// SendNonce 返回发送方向下一次使用的 nonce
func (t *Transport) SendNonce() uint64 {
	return t.send.cs.Nonce()
}

// RecvNonce 返回接收方向下一次使用的 nonce
func (t *Transport) RecvNonce() uint64 {
	return t.recv.cs.Nonce()
}

// ============================================================================
//                              加密
// ============================================================================

// WriteMessage 加密一条消息
//
// 输出格式：
//
//	encrypted_length(2) || tag(16) || encrypted_payload(N) || tag(16)
func (t *Transport) WriteMessage(plaintext []byte) ([]byte, error) {
	if t.closed {
		return nil, ErrTransportClosed
	}
	if len(plaintext) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(plaintext))
	}

	var length [LengthSize]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(plaintext)))

	header, err := t.send.encrypt(length[:])
	if err != nil {
		return nil, fmt.Errorf("encrypt length: %w", err)
	}
	body, err := t.send.encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	frame := make([]byte, 0, len(header)+len(body))
	frame = append(frame, header...)
	return append(frame, body...), nil
}

// ============================================================================
//                              解密
// ============================================================================

// ReadMessageLength 解密 18 字节长度头，返回正文明文长度
//
// 调用方随后应读取 length+TagSize 字节交给 ReadMessagePayload。
func (t *Transport) ReadMessageLength(header []byte) (int, error) {
	if t.closed {
		return 0, ErrTransportClosed
	}
	if len(header) != EncryptedHeaderSize {
		return 0, fmt.Errorf("%w: header is %d bytes, want %d", ErrMalformedMessage, len(header), EncryptedHeaderSize)
	}

	length, err := t.recv.decrypt(header)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(length)), nil
}

// ReadMessagePayload 解密消息正文
func (t *Transport) ReadMessagePayload(body []byte) ([]byte, error) {
	if t.closed {
		return nil, ErrTransportClosed
	}
	if len(body) < TagSize {
		return nil, fmt.Errorf("%w: body is %d bytes", ErrMalformedMessage, len(body))
	}
	return t.recv.decrypt(body)
}

// ReadMessage 解密一条完整消息（长度头 + 正文）
func (t *Transport) ReadMessage(frame []byte) ([]byte, error) {
	if len(frame) < EncryptedHeaderSize {
		return nil, fmt.Errorf("%w: frame is %d bytes", ErrMalformedMessage, len(frame))
	}

	n, err := t.ReadMessageLength(frame[:EncryptedHeaderSize])
	if err != nil {
		return nil, err
	}
	body := frame[EncryptedHeaderSize:]
	if len(body) != n+TagSize {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrMalformedMessage, len(body), n+TagSize)
	}
	return t.ReadMessagePayload(body)
}

// Zero 清除两个方向的密钥，此后所有操作返回 ErrTransportClosed
func (t *Transport) Zero() {
	t.send.zero()
	t.recv.zero()
	crypto.Zero32(&t.handshakeHash)
	t.closed = true
}

// ============================================================================
//                              密钥轮换
// ============================================================================

func (d *cipherDirection) encrypt(plaintext []byte) ([]byte, error) {
	ciphertext, err := d.cs.EncryptWithAd(nil, plaintext)
	if err != nil {
		return nil, err
	}
	d.maybeRotate()
	return ciphertext, nil
}

func (d *cipherDirection) decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := d.cs.DecryptWithAd(nil, ciphertext)
	if err != nil {
		return nil, err
	}
	d.maybeRotate()
	return plaintext, nil
}

// maybeRotate nonce 到达 KeyRotationInterval 时轮换密钥
//
//	ck', k' = HKDF(ck, k)
func (d *cipherDirection) maybeRotate() {
	if d.cs.Nonce() < KeyRotationInterval {
		return
	}
	ck, key := rotateKey(d.ck, d.cs.key)
	d.ck = ck
	d.cs.InitializeKey(key)
	crypto.Zero32(&ck)
	crypto.Zero32(&key)
}

// rotateKey 由当前链式密钥和密钥派生下一组（纯函数）
func rotateKey(ck, key [HashSize]byte) ([HashSize]byte, [KeySize]byte) {
	next, nextKey := hkdf2(ck, key[:])
	crypto.Zero32(&key)
	return next, nextKey
}

func (d *cipherDirection) zero() {
	d.cs.Zero()
	crypto.Zero32(&d.ck)
}
