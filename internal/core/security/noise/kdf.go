package noise

import (
	"io"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/hkdf"
)

// HashSize 哈希输出大小（SHA-256）
const HashSize = sha256.Size

// hkdf2 HKDF(ck, ikm) 的前两个 32 字节输出
func hkdf2(chainingKey [HashSize]byte, ikm []byte) (out1, out2 [HashSize]byte) {
	r := hkdf.New(sha256.New, ikm, chainingKey[:], nil)
	// HKDF-SHA256 最多可输出 255*32 字节，这里不会出错
	_, _ = io.ReadFull(r, out1[:])
	_, _ = io.ReadFull(r, out2[:])
	return out1, out2
}

// hkdf3 HKDF(ck, ikm) 的前三个 32 字节输出
func hkdf3(chainingKey [HashSize]byte, ikm []byte) (out1, out2, out3 [HashSize]byte) {
	r := hkdf.New(sha256.New, ikm, chainingKey[:], nil)
	_, _ = io.ReadFull(r, out1[:])
	_, _ = io.ReadFull(r, out2[:])
	_, _ = io.ReadFull(r, out3[:])
	return out1, out2, out3
}
