package noise

import "github.com/dep2p/go-bolt8/pkg/lib/crypto"

// ============================================================================
//                              Lightning 协议常量
// ============================================================================

const (
	// ProtocolName BOLT8 使用的 Noise 协议名
	ProtocolName = "Noise_XK_secp256k1_ChaChaPoly_SHA256"

	// Prologue BOLT8 prologue
	Prologue = "lightning"

	// HandshakeVersion 每个握手消息的首字节
	HandshakeVersion byte = 0

	// MaxHandshakeMessageSize Noise 消息上限
	MaxHandshakeMessageSize = 65535
)

// 握手消息长度（payload 为空）
const (
	// ActOneSize version(1) || e(33) || tag(16)
	ActOneSize = 1 + crypto.PublicKeySize + TagSize

	// ActTwoSize version(1) || e(33) || tag(16)
	ActTwoSize = 1 + crypto.PublicKeySize + TagSize

	// ActThreeSize version(1) || enc(s)(33+16) || tag(16)
	ActThreeSize = 1 + crypto.PublicKeySize + 2*TagSize
)

// ============================================================================
//                              握手模式
// ============================================================================

// token 消息模式中的单个操作
type token uint8

const (
	tokenE token = iota
	tokenS
	tokenEE
	tokenES
	tokenSE
	tokenSS
)

func (t token) String() string {
	switch t {
	case tokenE:
		return "e"
	case tokenS:
		return "s"
	case tokenEE:
		return "ee"
	case tokenES:
		return "es"
	case tokenSE:
		return "se"
	case tokenSS:
		return "ss"
	default:
		return "?"
	}
}

// isDH 是否为 DH 操作
func (t token) isDH() bool {
	return t >= tokenEE
}

// messagePattern 一条握手消息
type messagePattern struct {
	tokens    []token
	initiator bool
}

// size 计算消息长度
//
// keyed 表示消息开始时 CipherState 是否已有密钥。
func (p messagePattern) size(keyed bool, payloadSize int) int {
	n := 1
	for _, tok := range p.tokens {
		switch {
		case tok == tokenE:
			n += crypto.PublicKeySize
		case tok == tokenS:
			n += crypto.PublicKeySize
			if keyed {
				n += TagSize
			}
		case tok.isDH():
			keyed = true
		}
	}
	n += payloadSize
	if keyed {
		n += TagSize
	}
	return n
}

// patternXK Noise XK，响应者静态公钥预先已知
//
//	<- s
//	...
//	-> e, es
//	<- e, ee
//	-> s, se
var patternXK = []messagePattern{
	{tokens: []token{tokenE, tokenES}, initiator: true},
	{tokens: []token{tokenE, tokenEE}, initiator: false},
	{tokens: []token{tokenS, tokenSE}, initiator: true},
}
