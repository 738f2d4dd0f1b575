package identity

import "errors"

var (
	// ErrNoIdentity 无法获得密钥（未注入、无文件且禁止自动生成）
	ErrNoIdentity = errors.New("no identity: key file missing and auto generate disabled")

	// ErrIdentityClosed 身份已关闭，私钥已清零
	ErrIdentityClosed = errors.New("identity closed")
)
