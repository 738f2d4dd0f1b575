package noise

import (
	"github.com/minio/sha256-simd"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
)

// ============================================================================
//                              SymmetricState
// ============================================================================

// SymmetricState 握手期间的链式密钥与转录哈希
//
// h 覆盖握手中交换的每一个字节（公钥、密文），任何篡改都会改变 h，
// 从而使后续以 h 为附加数据的 AEAD 校验失败。
type SymmetricState struct {
	cs CipherState

	// ck 链式密钥，每个 DH 结果都通过 HKDF 混入
	ck [HashSize]byte

	// h 转录哈希，作为握手阶段 AEAD 的附加数据
	h [HashSize]byte
}

// InitializeSymmetric 以协议名初始化 h 和 ck
//
// 协议名不超过 32 字节时右补零，否则取其 SHA-256。
func (s *SymmetricState) InitializeSymmetric(protocolName []byte) {
	if len(protocolName) <= HashSize {
		s.h = [HashSize]byte{}
		copy(s.h[:], protocolName)
	} else {
		s.h = sha256.Sum256(protocolName)
	}
	s.ck = s.h
	s.cs.Zero()
}

// MixHash h = SHA256(h || data)
func (s *SymmetricState) MixHash(data []byte) {
	hasher := sha256.New()
	_, _ = hasher.Write(s.h[:])
	_, _ = hasher.Write(data)
	copy(s.h[:], hasher.Sum(nil))
}

// MixKey ck, k = HKDF(ck, ikm)，并以 k 重新初始化 CipherState
func (s *SymmetricState) MixKey(ikm []byte) {
	ck, tempKey := hkdf2(s.ck, ikm)
	s.ck = ck
	s.cs.InitializeKey(tempKey)
	crypto.Zero32(&tempKey)
	crypto.Zero32(&ck)
}

// MixKeyAndHash ck, th, k = HKDF(ck, ikm)；MixHash(th)；以 k 初始化 CipherState
//
// XK 模式不使用 psk，此方法不会在 Lightning 握手中被调用。
func (s *SymmetricState) MixKeyAndHash(ikm []byte) {
	ck, tempHash, tempKey := hkdf3(s.ck, ikm)
	s.ck = ck
	s.MixHash(tempHash[:])
	s.cs.InitializeKey(tempKey)
	crypto.Zero32(&tempHash)
	crypto.Zero32(&tempKey)
	crypto.Zero32(&ck)
}

// EncryptAndHash 以 h 为附加数据加密，然后把密文混入 h
func (s *SymmetricState) EncryptAndHash(plaintext []byte) ([]byte, error) {
	ciphertext, err := s.cs.EncryptWithAd(s.h[:], plaintext)
	if err != nil {
		return nil, err
	}
	s.MixHash(ciphertext)
	return ciphertext, nil
}

// DecryptAndHash 以 h 为附加数据解密，成功后把密文混入 h
//
// 失败时 h 和 nonce 都不变。
func (s *SymmetricState) DecryptAndHash(ciphertext []byte) ([]byte, error) {
	plaintext, err := s.cs.DecryptWithAd(s.h[:], ciphertext)
	if err != nil {
		return nil, err
	}
	s.MixHash(ciphertext)
	return plaintext, nil
}

// Split 派生两个方向独立的 CipherState
//
// 第一个用于发起者→响应者，第二个用于响应者→发起者。
func (s *SymmetricState) Split() (*CipherState, *CipherState) {
	k1, k2 := hkdf2(s.ck, nil)

	c1, c2 := &CipherState{}, &CipherState{}
	c1.InitializeKey(k1)
	c2.InitializeKey(k2)

	crypto.Zero32(&k1)
	crypto.Zero32(&k2)
	return c1, c2
}

// HandshakeHash 返回当前转录哈希的副本
func (s *SymmetricState) HandshakeHash() []byte {
	out := make([]byte, HashSize)
	copy(out, s.h[:])
	return out
}

// ChainingKey 返回当前链式密钥
func (s *SymmetricState) ChainingKey() [HashSize]byte {
	return s.ck
}

// HasKey 内部 CipherState 是否已有密钥
func (s *SymmetricState) HasKey() bool {
	return s.cs.HasKey()
}

// Zero 清除全部密钥材料
func (s *SymmetricState) Zero() {
	s.cs.Zero()
	crypto.Zero32(&s.ck)
	crypto.Zero32(&s.h)
}
