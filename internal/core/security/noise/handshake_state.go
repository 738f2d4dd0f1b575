package noise

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/types"
)

// ============================================================================
//                              Stage - 握手阶段
// ============================================================================

// Stage 握手进度
type Stage int

const (
	// StageAwaitingOurFirstAction 尚未交换任何消息
	StageAwaitingOurFirstAction Stage = iota
	// StageAwaitingSecondAction Act1 已完成
	StageAwaitingSecondAction
	// StageAwaitingThirdAction Act2 已完成
	StageAwaitingThirdAction
	// StageComplete 握手结束，状态已销毁
	StageComplete
)

// String 返回阶段名称
func (s Stage) String() string {
	switch s {
	case StageAwaitingOurFirstAction:
		return "awaiting-first-action"
	case StageAwaitingSecondAction:
		return "awaiting-second-action"
	case StageAwaitingThirdAction:
		return "awaiting-third-action"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              选项
// ============================================================================

// EphemeralGenerator 生成握手临时密钥
type EphemeralGenerator func() (*crypto.PrivateKey, error)

// Option HandshakeState 选项
type Option func(*HandshakeState)

// WithEphemeralGenerator 指定临时密钥生成函数
//
// 每次调用必须返回新的密钥对象，握手结束后该对象会被清零。
// 仅用于测试向量等需要确定性临时密钥的场景。
func WithEphemeralGenerator(gen EphemeralGenerator) Option {
	return func(hs *HandshakeState) {
		if gen != nil {
			hs.genEphemeral = gen
		}
	}
}

// WithRandom 指定生成临时密钥的随机源
func WithRandom(r io.Reader) Option {
	return func(hs *HandshakeState) {
		if r != nil {
			hs.genEphemeral = func() (*crypto.PrivateKey, error) {
				return crypto.GeneratePrivateKey(r)
			}
		}
	}
}

// WithPayloadSize 指定每条握手消息携带的 payload 长度
//
// Lightning 握手 payload 为空（默认 0）。双方必须一致，
// 否则读取方会因长度不符返回 ErrMalformedMessage。
func WithPayloadSize(n int) Option {
	return func(hs *HandshakeState) {
		if n >= 0 {
			hs.payloadSize = n
		}
	}
}

// ============================================================================
//                              HandshakeState
// ============================================================================

// HandshakeState BOLT8 Noise_XK 握手状态机
//
// 每个连接尝试创建一个实例，只能使用一次。ReadMessage / WriteMessage
// 在副本上处理消息，成功后才提交，失败时状态保持不变。
// 最后一条消息处理完毕后返回 Transport，并清除全部握手密钥。
//
// 本地静态私钥由调用方持有，HandshakeState 不会清零它。
type HandshakeState struct {
	ss   SymmetricState
	role types.Role

	s  *crypto.PrivateKey // 本地静态密钥
	e  *crypto.PrivateKey // 本地临时密钥
	rs *crypto.PublicKey  // 远端静态公钥
	re *crypto.PublicKey  // 远端临时公钥

	patterns    []messagePattern
	index       int
	payloadSize int

	genEphemeral EphemeralGenerator
}

// NewHandshakeState 创建握手状态
//
// 参数：
//   - role: 发起者或响应者
//   - localStatic: 本地节点私钥
//   - remoteStatic: 发起者必须提供对端节点公钥；响应者必须为 nil，
//     对端身份在 Act3 中获得
//
// 双方都以 prologue 和响应者静态公钥初始化转录哈希。
func NewHandshakeState(role types.Role, localStatic *crypto.PrivateKey, remoteStatic *crypto.PublicKey, opts ...Option) (*HandshakeState, error) {
	if localStatic == nil {
		return nil, fmt.Errorf("%w: local static key is nil", ErrInvalidKey)
	}

	var responderStatic *crypto.PublicKey
	switch role {
	case types.RoleInitiator:
		if remoteStatic == nil {
			return nil, fmt.Errorf("%w: initiator requires remote static key", ErrInvalidKey)
		}
		responderStatic = remoteStatic
	case types.RoleResponder:
		if remoteStatic != nil {
			return nil, fmt.Errorf("%w: responder learns remote static key from the handshake", ErrInvalidKey)
		}
		responderStatic = localStatic.PublicKey()
	default:
		return nil, fmt.Errorf("%w: unknown role %d", ErrInvalidKey, role)
	}

	hs := &HandshakeState{
		role:     role,
		s:        localStatic,
		rs:       remoteStatic,
		patterns: patternXK,
		genEphemeral: func() (*crypto.PrivateKey, error) {
			return crypto.GeneratePrivateKey(rand.Reader)
		},
	}
	for _, opt := range opts {
		opt(hs)
	}

	hs.ss.InitializeSymmetric([]byte(ProtocolName))
	hs.ss.MixHash([]byte(Prologue))
	hs.ss.MixHash(responderStatic.Bytes())

	return hs, nil
}

// NewHandshakeStateFromBytes 以原始字节构造握手状态
//
// localStatic 必须为 32 字节，remoteStatic 为 33 字节压缩公钥
// （响应者传 nil）。长度或曲线校验失败时返回 ErrInvalidKey。
func NewHandshakeStateFromBytes(role types.Role, localStatic, remoteStatic []byte, opts ...Option) (*HandshakeState, error) {
	local, err := crypto.PrivateKeyFromBytes(localStatic)
	if err != nil {
		return nil, fmt.Errorf("%w: local static: %v", ErrInvalidKey, err)
	}

	var remote *crypto.PublicKey
	if remoteStatic != nil {
		remote, err = crypto.PublicKeyFromBytes(remoteStatic)
		if err != nil {
			local.Zero()
			return nil, fmt.Errorf("%w: remote static: %v", ErrInvalidKey, err)
		}
	}

	hs, err := NewHandshakeState(role, local, remote, opts...)
	if err != nil {
		local.Zero()
		return nil, err
	}
	return hs, nil
}

// Role 返回握手角色
func (hs *HandshakeState) Role() types.Role {
	return hs.role
}

// Stage 返回当前阶段
func (hs *HandshakeState) Stage() Stage {
	if hs.index >= len(hs.patterns) {
		return StageComplete
	}
	return Stage(hs.index)
}

// RemoteStatic 返回对端静态公钥
//
// 响应者在读取 Act3 之前返回 nil。
func (hs *HandshakeState) RemoteStatic() *crypto.PublicKey {
	return hs.rs
}

// HandshakeHash 返回当前转录哈希
func (hs *HandshakeState) HandshakeHash() []byte {
	return hs.ss.HandshakeHash()
}

// NextMessageSize 返回下一条消息的长度，握手结束时返回 0
func (hs *HandshakeState) NextMessageSize() int {
	return hs.messageSize(hs.index)
}

// messageSize 计算第 i 条消息的长度
func (hs *HandshakeState) messageSize(i int) int {
	if i < 0 || i >= len(hs.patterns) {
		return 0
	}
	keyed := false
	for _, p := range hs.patterns[:i] {
		for _, tok := range p.tokens {
			if tok.isDH() {
				keyed = true
			}
		}
	}
	return hs.patterns[i].size(keyed, hs.payloadSize)
}

// isOurTurn 第 i 条消息是否由本方写出
func (hs *HandshakeState) isOurTurn(i int) bool {
	return hs.patterns[i].initiator == (hs.role == types.RoleInitiator)
}

// next 返回下一条消息模式
func (hs *HandshakeState) next(write bool) (messagePattern, error) {
	if hs.index >= len(hs.patterns) {
		return messagePattern{}, ErrHandshakeComplete
	}
	if hs.isOurTurn(hs.index) != write {
		return messagePattern{}, ErrOutOfTurn
	}
	return hs.patterns[hs.index], nil
}

// ============================================================================
//                              写消息
// ============================================================================

// WriteMessage 生成下一条握手消息并追加到 out
//
// 返回：
//   - msg: 追加消息后的切片
//   - handshakeHash: 仅在握手完成时非 nil
//   - transport: 仅在握手完成时非 nil
//   - error: ErrOutOfTurn / ErrHandshakeComplete / ErrInvalidPayloadSize 等
func (hs *HandshakeState) WriteMessage(out, payload []byte) ([]byte, []byte, *Transport, error) {
	pattern, err := hs.next(true)
	if err != nil {
		return out, nil, nil, err
	}
	if len(payload) != hs.payloadSize {
		return out, nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidPayloadSize, len(payload), hs.payloadSize)
	}
	if size := pattern.size(hs.ss.HasKey(), len(payload)); size > MaxHandshakeMessageSize {
		return out, nil, nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	scratch := *hs
	msg, err := scratch.writeTokens(out, pattern, payload)
	if err != nil {
		scratch.ss.Zero()
		if scratch.e != hs.e {
			scratch.e.Zero()
		}
		return out, nil, nil, err
	}

	hs.commit(&scratch)
	if hs.index < len(hs.patterns) {
		return msg, nil, nil, nil
	}
	hh, t := hs.finish()
	return msg, hh, t, nil
}

func (hs *HandshakeState) writeTokens(out []byte, pattern messagePattern, payload []byte) ([]byte, error) {
	out = append(out, HandshakeVersion)

	for _, tok := range pattern.tokens {
		switch tok {
		case tokenE:
			e, err := hs.genEphemeral()
			if err != nil {
				return nil, fmt.Errorf("generate ephemeral key: %w", err)
			}
			hs.e = e
			pub := e.PublicKey().Bytes()
			out = append(out, pub...)
			hs.ss.MixHash(pub)

		case tokenS:
			ciphertext, err := hs.ss.EncryptAndHash(hs.s.PublicKey().Bytes())
			if err != nil {
				return nil, err
			}
			out = append(out, ciphertext...)

		default:
			if err := hs.mixDH(tok); err != nil {
				return nil, err
			}
		}
	}

	ciphertext, err := hs.ss.EncryptAndHash(payload)
	if err != nil {
		return nil, err
	}
	return append(out, ciphertext...), nil
}

// ============================================================================
//                              读消息
// ============================================================================

// ReadMessage 处理对端的握手消息，把解密出的 payload 追加到 out
//
// 依次校验版本字节、消息长度和 AEAD 标签。任一校验失败时
// 返回错误且状态不变。
func (hs *HandshakeState) ReadMessage(out, message []byte) ([]byte, []byte, *Transport, error) {
	pattern, err := hs.next(false)
	if err != nil {
		return out, nil, nil, err
	}
	if len(message) == 0 {
		return out, nil, nil, fmt.Errorf("%w: empty message", ErrMalformedMessage)
	}
	if message[0] != HandshakeVersion {
		return out, nil, nil, fmt.Errorf("%w: got %d, want %d", ErrProtocolVersionMismatch, message[0], HandshakeVersion)
	}
	if want := pattern.size(hs.ss.HasKey(), hs.payloadSize); len(message) != want {
		return out, nil, nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedMessage, len(message), want)
	}

	scratch := *hs
	payload, err := scratch.readTokens(pattern, message[1:])
	if err != nil {
		scratch.ss.Zero()
		return out, nil, nil, err
	}

	hs.commit(&scratch)
	out = append(out, payload...)
	if hs.index < len(hs.patterns) {
		return out, nil, nil, nil
	}
	hh, t := hs.finish()
	return out, hh, t, nil
}

func (hs *HandshakeState) readTokens(pattern messagePattern, rest []byte) ([]byte, error) {
	for _, tok := range pattern.tokens {
		switch tok {
		case tokenE:
			raw := rest[:crypto.PublicKeySize]
			re, err := crypto.PublicKeyFromBytes(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: remote ephemeral: %v", ErrMalformedMessage, err)
			}
			hs.re = re
			hs.ss.MixHash(raw)
			rest = rest[crypto.PublicKeySize:]

		case tokenS:
			n := crypto.PublicKeySize
			if hs.ss.HasKey() {
				n += TagSize
			}
			plaintext, err := hs.ss.DecryptAndHash(rest[:n])
			if err != nil {
				return nil, err
			}
			rs, err := crypto.PublicKeyFromBytes(plaintext)
			if err != nil {
				return nil, fmt.Errorf("%w: remote static: %v", ErrInvalidKey, err)
			}
			hs.rs = rs
			rest = rest[n:]

		default:
			if err := hs.mixDH(tok); err != nil {
				return nil, err
			}
		}
	}

	return hs.ss.DecryptAndHash(rest)
}

// ============================================================================
//                              内部辅助
// ============================================================================

// mixDH 执行 DH 操作并 MixKey 结果
func (hs *HandshakeState) mixDH(tok token) error {
	local, remote := hs.dhKeys(tok)
	if local == nil || remote == nil {
		return fmt.Errorf("%w: missing key for %s", ErrInvalidKey, tok)
	}
	secret := local.ECDH(remote)
	hs.ss.MixKey(secret[:])
	crypto.Zero32(&secret)
	return nil
}

// dhKeys 按角色选择 DH 双方的密钥
func (hs *HandshakeState) dhKeys(tok token) (*crypto.PrivateKey, *crypto.PublicKey) {
	initiator := hs.role == types.RoleInitiator
	switch tok {
	case tokenEE:
		return hs.e, hs.re
	case tokenSS:
		return hs.s, hs.rs
	case tokenES:
		if initiator {
			return hs.e, hs.rs
		}
		return hs.s, hs.re
	case tokenSE:
		if initiator {
			return hs.s, hs.re
		}
		return hs.e, hs.rs
	default:
		return nil, nil
	}
}

// commit 以副本替换当前状态并推进一条消息
func (hs *HandshakeState) commit(scratch *HandshakeState) {
	*hs = *scratch
	scratch.ss.Zero()
	hs.index++
}

// finish 派生 Transport 并销毁握手状态
func (hs *HandshakeState) finish() ([]byte, *Transport) {
	c1, c2 := hs.ss.Split()
	hh := hs.ss.HandshakeHash()
	t := newTransport(hs.role == types.RoleInitiator, c1, c2, hs.ss.ChainingKey(), hh, hs.rs)
	hs.Zero()
	return hh, t
}

// Zero 清除握手密钥，此后任何读写都返回 ErrHandshakeComplete
func (hs *HandshakeState) Zero() {
	hs.ss.Zero()
	if hs.e != nil {
		hs.e.Zero()
	}
	hs.e = nil
	hs.re = nil
	hs.s = nil
	hs.index = len(hs.patterns)
}
