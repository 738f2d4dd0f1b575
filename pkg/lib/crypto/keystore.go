package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// ============================================================================
//                              节点密钥文件格式
// ============================================================================

// 节点密钥文件格式：
//
//   ┌────────────────────────────────────────────────────────────┐
//   │  Magic:     "BOLT8-KEY"  (9 bytes)                         │
//   │  Version:   uint8                                          │
//   │  Encrypted: uint8 (0=否, 1=是)                              │
//   │  Data:      32 字节标量，或加密数据                          │
//   └────────────────────────────────────────────────────────────┘
//
//   加密数据格式（文件头作为 AES-GCM 附加数据）：
//   ┌────────────────────────────────────────────────────────────┐
//   │  Salt:       16 bytes                                      │
//   │  Nonce:      12 bytes                                      │
//   │  Ciphertext: 32 + 16 bytes                                 │
//   └────────────────────────────────────────────────────────────┘

const (
	keyFileMagic   = "BOLT8-KEY"
	keyFileVersion = 1
	keyHeaderSize  = len(keyFileMagic) + 2

	saltSize  = 16
	nonceSize = 12

	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// SaveKeyFile 将节点私钥写入文件
//
// password 为空时明文存储。文件权限 0600，目录不存在时创建（0700）。
func SaveKeyFile(path string, key *PrivateKey, password []byte) error {
	if key == nil {
		return ErrNilPrivateKey
	}

	data, err := encodeKeyFile(key, password)
	if err != nil {
		return err
	}
	defer Zero(data)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadKeyFile 从文件读取节点私钥
func LoadKeyFile(path string, password []byte) (*PrivateKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // 用户指定的密钥文件路径
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	return decodeKeyFile(data, password)
}

// LoadOrCreateKeyFile 读取节点私钥，文件不存在时生成并保存
//
// 返回的 bool 表示是否新建了密钥。
func LoadOrCreateKeyFile(path string, password []byte) (*PrivateKey, bool, error) {
	key, err := LoadKeyFile(path, password)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, false, err
	}

	key, err = GeneratePrivateKey(rand.Reader)
	if err != nil {
		return nil, false, err
	}
	if err := SaveKeyFile(path, key, password); err != nil {
		key.Zero()
		return nil, false, err
	}
	return key, true, nil
}

// encodeKeyFile 编码密钥文件（可选加密）
func encodeKeyFile(key *PrivateKey, password []byte) ([]byte, error) {
	raw := key.Bytes()
	defer Zero(raw)

	var buf bytes.Buffer
	buf.WriteString(keyFileMagic)
	buf.WriteByte(keyFileVersion)

	if len(password) == 0 {
		buf.WriteByte(0)
		buf.Write(raw)
		return buf.Bytes(), nil
	}

	buf.WriteByte(1)
	encrypted, err := sealKey(raw, password, buf.Bytes())
	if err != nil {
		return nil, err
	}
	buf.Write(encrypted)
	return buf.Bytes(), nil
}

// decodeKeyFile 解码密钥文件
func decodeKeyFile(data, password []byte) (*PrivateKey, error) {
	if len(data) < keyHeaderSize {
		return nil, ErrInvalidKeyFile
	}
	if string(data[:len(keyFileMagic)]) != keyFileMagic {
		return nil, ErrInvalidKeyFile
	}

	offset := len(keyFileMagic)
	if version := data[offset]; version != keyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidKeyFile, version)
	}
	offset++

	header := data[:keyHeaderSize]
	body := data[keyHeaderSize:]

	switch data[offset] {
	case 0:
		return PrivateKeyFromBytes(body)
	case 1:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		raw, err := openKey(body, password, header)
		if err != nil {
			return nil, err
		}
		defer Zero(raw)
		return PrivateKeyFromBytes(raw)
	default:
		return nil, fmt.Errorf("%w: bad encryption flag", ErrInvalidKeyFile)
	}
}

// ============================================================================
//                              加密辅助函数
// ============================================================================

// newKeyAEAD 从密码和盐派生 AES-GCM
func newKeyAEAD(password, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealKey 加密私钥：salt || nonce || ciphertext
func sealKey(plaintext, password, header []byte) ([]byte, error) {
	out := make([]byte, saltSize+nonceSize, saltSize+nonceSize+len(plaintext)+16)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}

	aead, err := newKeyAEAD(password, out[:saltSize])
	if err != nil {
		return nil, err
	}
	nonce := append([]byte(nil), out[saltSize:]...)
	return aead.Seal(out, nonce, plaintext, header), nil
}

// openKey 解密私钥
func openKey(data, password, header []byte) ([]byte, error) {
	if len(data) < saltSize+nonceSize {
		return nil, ErrInvalidKeyFile
	}

	aead, err := newKeyAEAD(password, data[:saltSize])
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, data[saltSize:saltSize+nonceSize], data[saltSize+nonceSize:], header)
	if err != nil {
		return nil, ErrInvalidPassword
	}
	return plaintext, nil
}
