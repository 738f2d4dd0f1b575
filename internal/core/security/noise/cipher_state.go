package noise

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
)

const (
	// KeySize 对称密钥大小
	KeySize = chacha20poly1305.KeySize

	// TagSize AEAD 认证标签大小
	TagSize = chacha20poly1305.Overhead

	// maxNonce 保留给 Rekey 的 nonce，不能用于普通加密
	maxNonce = math.MaxUint64
)

// ============================================================================
//                              CipherState
// ============================================================================

// CipherState Noise CipherState：ChaCha20-Poly1305 + 递增 nonce
//
// 没有密钥时加解密是原样复制（握手前缀阶段）。
// CipherState 不是并发安全的，由持有者保证串行访问。
type CipherState struct {
	key    [KeySize]byte
	hasKey bool
	nonce  uint64
}

// InitializeKey 设置密钥并将 nonce 归零
func (c *CipherState) InitializeKey(key [KeySize]byte) {
	crypto.Zero32(&c.key)
	c.key = key
	c.hasKey = true
	c.nonce = 0
}

// HasKey 是否已设置密钥
func (c *CipherState) HasKey() bool {
	return c.hasKey
}

// Nonce 返回下一次使用的 nonce
func (c *CipherState) Nonce() uint64 {
	return c.nonce
}

// SetNonce 显式设置 nonce
func (c *CipherState) SetNonce(n uint64) {
	c.nonce = n
}

// EncryptWithAd 加密并追加 16 字节标签，成功后 nonce 加一
func (c *CipherState) EncryptWithAd(ad, plaintext []byte) ([]byte, error) {
	if !c.hasKey {
		return append([]byte(nil), plaintext...), nil
	}
	if c.nonce == maxNonce {
		return nil, ErrNonceOverflow
	}

	ciphertext, err := seal(&c.key, c.nonce, ad, plaintext)
	if err != nil {
		return nil, err
	}
	c.nonce++
	return ciphertext, nil
}

// DecryptWithAd 解密并校验标签
//
// 校验失败返回 ErrAuthenticationFailure，nonce 保持不变。
func (c *CipherState) DecryptWithAd(ad, ciphertext []byte) ([]byte, error) {
	if !c.hasKey {
		return append([]byte(nil), ciphertext...), nil
	}
	if c.nonce == maxNonce {
		return nil, ErrNonceOverflow
	}

	plaintext, err := open(&c.key, c.nonce, ad, ciphertext)
	if err != nil {
		return nil, err
	}
	c.nonce++
	return plaintext, nil
}

// Rekey 单向替换密钥，nonce 不变
//
//	k' = ENCRYPT(k, 2^64-1, "", zeros[32])[:32]
func (c *CipherState) Rekey() error {
	if !c.hasKey {
		return nil
	}

	next, err := rekey(c.key)
	if err != nil {
		return err
	}
	crypto.Zero32(&c.key)
	c.key = next
	crypto.Zero32(&next)
	return nil
}

// Zero 清除密钥并复位状态
func (c *CipherState) Zero() {
	crypto.Zero32(&c.key)
	c.hasKey = false
	c.nonce = 0
}

// ============================================================================
//                              AEAD 辅助函数
// ============================================================================

// nonceBytes Noise ChaChaPoly nonce 编码：4 字节零 + 8 字节小端计数
func nonceBytes(n uint64) [chacha20poly1305.NonceSize]byte {
	var out [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(out[4:], n)
	return out
}

func seal(key *[KeySize]byte, n uint64, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	nonce := nonceBytes(n)
	return aead.Seal(make([]byte, 0, len(plaintext)+TagSize), nonce[:], plaintext, ad), nil
}

func open(key *[KeySize]byte, n uint64, ad, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < TagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrAuthenticationFailure)
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	nonce := nonceBytes(n)
	plaintext, err := aead.Open(make([]byte, 0, len(ciphertext)-TagSize), nonce[:], ciphertext, ad)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

// rekey 由当前密钥派生下一个密钥（纯函数）
func rekey(key [KeySize]byte) ([KeySize]byte, error) {
	var zeros, next [KeySize]byte

	out, err := seal(&key, maxNonce, nil, zeros[:])
	crypto.Zero32(&key)
	if err != nil {
		return next, err
	}
	copy(next[:], out[:KeySize])
	crypto.Zero(out)
	return next, nil
}
