package transport

import (
	"context"
	"errors"
	"io"

	"github.com/dep2p/go-bolt8/internal/core/security/noise"
)

// 握手失败原因标签
const (
	ReasonTimeout        = "timeout"
	ReasonAuthentication = "authentication"
	ReasonVersion        = "version"
	ReasonMalformed      = "malformed"
	ReasonInvalidKey     = "invalid_key"
	ReasonCanceled       = "canceled"
	ReasonEOF            = "eof"
	ReasonIO             = "io"
)

// failureReason 把握手错误归入低基数的指标标签
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrHandshakeTimeout):
		return ReasonTimeout
	case errors.Is(err, noise.ErrAuthenticationFailure):
		return ReasonAuthentication
	case errors.Is(err, noise.ErrProtocolVersionMismatch):
		return ReasonVersion
	case errors.Is(err, noise.ErrMalformedMessage):
		return ReasonMalformed
	case errors.Is(err, noise.ErrInvalidKey):
		return ReasonInvalidKey
	case errors.Is(err, ErrServiceClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ReasonEOF
	default:
		return ReasonIO
	}
}
