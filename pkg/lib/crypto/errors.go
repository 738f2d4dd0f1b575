// Package crypto 提供 BOLT8 节点使用的密码学原语
package crypto

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

// 密钥相关错误
var (
	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("nil private key")

	// ErrNilPublicKey 公钥为空
	ErrNilPublicKey = errors.New("nil public key")

	// ErrInvalidKeySize 密钥大小无效
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidPublicKey 公钥无效（不在曲线上或格式错误）
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey 私钥无效（为零或超出曲线阶）
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// 密钥文件相关错误
var (
	// ErrKeyNotFound 密钥文件不存在
	ErrKeyNotFound = errors.New("key file not found")

	// ErrInvalidPassword 密码无效
	ErrInvalidPassword = errors.New("invalid password")

	// ErrPasswordRequired 加密密钥文件需要密码
	ErrPasswordRequired = errors.New("password required for encrypted key file")

	// ErrInvalidKeyFile 密钥文件格式无效
	ErrInvalidKeyFile = errors.New("invalid key file format")
)
