package crypto

import (
	"crypto/subtle"
	"runtime"
)

// Zero 用零覆盖 b
//
// 使用 subtle.ConstantTimeCopy 写入，并通过 runtime.KeepAlive
// 保证写入不会被编译器消除。
//
//go:noinline
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
	runtime.KeepAlive(&b)
}

// Zero32 清零 32 字节数组
func Zero32(k *[32]byte) {
	if k == nil {
		return
	}
	Zero(k[:])
}
