package crypto

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/minio/sha256-simd"

	"github.com/dep2p/go-bolt8/pkg/types"
)

// Secp256k1 密钥常量
const (
	// PrivateKeySize 私钥大小（32 字节）
	PrivateKeySize = 32
	// PublicKeySize 压缩公钥大小（33 字节）
	PublicKeySize = 33
	// SharedSecretSize ECDH 输出大小（SHA256）
	SharedSecretSize = sha256.Size
)

// maxGenerateAttempts 随机生成私钥的最大尝试次数
//
// 32 字节随机数落在 [1, N) 之外的概率约为 2^-128，超过此次数说明随机源有问题。
const maxGenerateAttempts = 16

// ============================================================================
//                              PublicKey
// ============================================================================

// PublicKey secp256k1 公钥
//
// 内部保存 33 字节压缩格式，只能通过 PublicKeyFromBytes / PublicKeyFromHex
// 或 PrivateKey.PublicKey 构造。
type PublicKey struct {
	raw [PublicKeySize]byte
	key *secp256k1.PublicKey
}

// 压缩公钥前缀（y 坐标奇偶）
const (
	pubKeyCompressedEven = 0x02
	pubKeyCompressedOdd  = 0x03
)

// invalidPublicKey 包装解析错误；secp256k1 的错误文本已带 "invalid public key" 前缀
func invalidPublicKey(err error) error {
	msg := strings.TrimPrefix(err.Error(), ErrInvalidPublicKey.Error()+": ")
	return fmt.Errorf("%w: %s", ErrInvalidPublicKey, msg)
}

// PublicKeyFromBytes 从 33 字节压缩格式解析公钥
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d",
			ErrInvalidKeySize, PublicKeySize, len(b))
	}
	if b[0] != pubKeyCompressedEven && b[0] != pubKeyCompressedOdd {
		return nil, fmt.Errorf("%w: not a compressed key (prefix 0x%02x)", ErrInvalidPublicKey, b[0])
	}

	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, invalidPublicKey(err)
	}

	pub := &PublicKey{key: key}
	copy(pub.raw[:], b)
	return pub, nil
}

// PublicKeyFromHex 从十六进制字符串解析公钥
func PublicKeyFromHex(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(b)
}

func newPublicKey(key *secp256k1.PublicKey) *PublicKey {
	pub := &PublicKey{key: key}
	copy(pub.raw[:], key.SerializeCompressed())
	return pub
}

// Bytes 返回压缩格式公钥的副本
func (k *PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, k.raw[:])
	return out
}

// Array 返回压缩格式公钥数组
func (k *PublicKey) Array() [PublicKeySize]byte {
	return k.raw
}

// Equal 比较两个公钥
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.raw == other.raw
}

// NodeID 返回公钥对应的节点 ID
func (k *PublicKey) NodeID() types.NodeID {
	return types.NodeID(k.raw)
}

// PublicKeyFromNodeID 将节点 ID 解析为公钥（含曲线校验）
func PublicKeyFromNodeID(id types.NodeID) (*PublicKey, error) {
	if id.IsEmpty() {
		return nil, ErrNilPublicKey
	}
	return PublicKeyFromBytes(id[:])
}

// String 返回十六进制表示
func (k *PublicKey) String() string {
	return hex.EncodeToString(k.raw[:])
}

// ============================================================================
//                              PrivateKey
// ============================================================================

// PrivateKey secp256k1 私钥
//
// 标量保证在 [1, N) 范围内。不再使用时调用 Zero 清除。
type PrivateKey struct {
	key *secp256k1.PrivateKey
	pub *PublicKey
}

// GeneratePrivateKey 使用给定随机源生成私钥
func GeneratePrivateKey(rand io.Reader) (*PrivateKey, error) {
	var buf [PrivateKeySize]byte
	defer Zero(buf[:])

	for i := 0; i < maxGenerateAttempts; i++ {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return nil, fmt.Errorf("read random: %w", err)
		}
		if priv, err := PrivateKeyFromBytes(buf[:]); err == nil {
			return priv, nil
		}
	}
	return nil, fmt.Errorf("%w: random source produced no valid scalar", ErrInvalidPrivateKey)
}

// PrivateKeyFromBytes 从 32 字节大端标量构造私钥
//
// 拒绝零值和不小于曲线阶 N 的值，不做取模。
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d",
			ErrInvalidKeySize, PrivateKeySize, len(b))
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow {
		scalar.Zero()
		return nil, fmt.Errorf("%w: scalar exceeds curve order", ErrInvalidPrivateKey)
	}
	if scalar.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidPrivateKey)
	}

	key := secp256k1.NewPrivateKey(&scalar)
	scalar.Zero()

	return &PrivateKey{
		key: key,
		pub: newPublicKey(key.PubKey()),
	}, nil
}

// PrivateKeyFromHex 从十六进制字符串构造私钥
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	defer Zero(b)
	return PrivateKeyFromBytes(b)
}

// PublicKey 返回对应公钥
func (k *PrivateKey) PublicKey() *PublicKey {
	return k.pub
}

// Bytes 返回 32 字节标量的副本
//
// 调用方负责清零返回值。
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// ECDH 计算 BOLT8 定义的共享密钥
//
//	ECDH(k, P) = SHA256(compressed(k·P))
func (k *PrivateKey) ECDH(remote *PublicKey) [SharedSecretSize]byte {
	var point, result secp256k1.JacobianPoint
	remote.key.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&k.key.Key, &point, &result)
	result.ToAffine()

	shared := secp256k1.NewPublicKey(&result.X, &result.Y).SerializeCompressed()
	defer Zero(shared)

	return sha256.Sum256(shared)
}

// Zero 清除私钥标量
func (k *PrivateKey) Zero() {
	if k == nil || k.key == nil {
		return
	}
	k.key.Zero()
}
