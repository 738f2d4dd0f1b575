package noise

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/types"
)

// ============================================================================
//                              构造
// ============================================================================

func TestNewHandshakeState_Validation(t *testing.T) {
	local := mustPriv(t, vecInitiatorStatic)
	remote := mustPub(t, vecResponderStaticPub)

	tests := []struct {
		name   string
		role   types.Role
		local  *crypto.PrivateKey
		remote *crypto.PublicKey
	}{
		{"缺少本地密钥", types.RoleInitiator, nil, remote},
		{"发起者缺少远端公钥", types.RoleInitiator, local, nil},
		{"响应者提供远端公钥", types.RoleResponder, local, remote},
		{"未知角色", types.Role(9), local, remote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHandshakeState(tt.role, tt.local, tt.remote)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestNewHandshakeStateFromBytes(t *testing.T) {
	priv := mustHex(t, vecInitiatorStatic)
	pub := mustHex(t, vecResponderStaticPub)

	hs, err := NewHandshakeStateFromBytes(types.RoleInitiator, priv, pub)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingOurFirstAction, hs.Stage())
	assert.Equal(t, mustHex(t, vecInitialHash), hs.HandshakeHash())

	invalidPoint := append([]byte{0x02}, make([]byte, 31)...)
	invalidPoint = append(invalidPoint, 0x05)

	tests := []struct {
		name   string
		local  []byte
		remote []byte
	}{
		{"私钥过短", priv[:31], pub},
		{"私钥为零", make([]byte, 32), pub},
		{"公钥过短", priv, pub[:32]},
		{"公钥未压缩前缀", priv, append([]byte{0x04}, pub[1:]...)},
		{"公钥不在曲线上", priv, invalidPoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHandshakeStateFromBytes(types.RoleInitiator, tt.local, tt.remote)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

// ============================================================================
//                              正常流程
// ============================================================================

func TestHandshakeState_Stages(t *testing.T) {
	initiator, responder := vectorPair(t)

	assert.Equal(t, ActOneSize, initiator.NextMessageSize())
	assert.Equal(t, StageAwaitingOurFirstAction, initiator.Stage())

	act1, _, _, err := initiator.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Len(t, act1, ActOneSize)
	assert.Equal(t, StageAwaitingSecondAction, initiator.Stage())

	_, _, _, err = responder.ReadMessage(nil, act1)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingSecondAction, responder.Stage())
	assert.Equal(t, ActTwoSize, responder.NextMessageSize())

	act2, _, _, err := responder.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Len(t, act2, ActTwoSize)
	assert.Equal(t, StageAwaitingThirdAction, responder.Stage())
	assert.Nil(t, responder.RemoteStatic())

	_, _, _, err = initiator.ReadMessage(nil, act2)
	require.NoError(t, err)
	assert.Equal(t, ActThreeSize, initiator.NextMessageSize())

	act3, hh, tr, err := initiator.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Len(t, act3, ActThreeSize)
	assert.NotNil(t, hh)
	assert.NotNil(t, tr)
	assert.Equal(t, StageComplete, initiator.Stage())
	assert.Equal(t, 0, initiator.NextMessageSize())

	_, _, tr, err = responder.ReadMessage(nil, act3)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, StageComplete, responder.Stage())
	assert.Equal(t, vecInitiatorStaticPub, responder.RemoteStatic().String())
}

func TestHandshakeState_RandomIdentitiesAgree(t *testing.T) {
	for i := 0; i < 10; i++ {
		initiator, responder := randomPair(t)
		initT, respT := runHandshake(t, initiator, responder)

		assert.Equal(t, initT.HandshakeHash(), respT.HandshakeHash())
		assert.True(t, initT.IsInitiator())
		assert.False(t, respT.IsInitiator())

		for _, m := range [][]byte{nil, []byte("a"), bytes.Repeat([]byte{7}, 1000)} {
			frame, err := initT.WriteMessage(m)
			require.NoError(t, err)
			got, err := respT.ReadMessage(frame)
			require.NoError(t, err)
			assert.Equal(t, len(m), len(got))
			assert.True(t, bytes.Equal(m, got))

			frame, err = respT.WriteMessage(m)
			require.NoError(t, err)
			got, err = initT.ReadMessage(frame)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(m, got))
		}
	}
}

func TestHandshakeState_ZeroedAfterCompletion(t *testing.T) {
	initiator, responder := vectorPair(t)
	runHandshake(t, initiator, responder)

	for _, hs := range []*HandshakeState{initiator, responder} {
		assert.Nil(t, hs.e)
		assert.Nil(t, hs.s)
		assert.Nil(t, hs.re)
		assert.False(t, hs.ss.HasKey())
		assert.Equal(t, [HashSize]byte{}, hs.ss.ck)
		assert.Equal(t, [HashSize]byte{}, hs.ss.h)

		_, _, _, err := hs.WriteMessage(nil, nil)
		require.ErrorIs(t, err, ErrHandshakeComplete)
		_, _, _, err = hs.ReadMessage(nil, make([]byte, ActThreeSize))
		require.ErrorIs(t, err, ErrHandshakeComplete)
	}
}

func TestHandshakeState_LocalStaticNotZeroed(t *testing.T) {
	local := mustPriv(t, vecInitiatorStatic)
	hs, err := NewHandshakeState(types.RoleInitiator, local, mustPub(t, vecResponderStaticPub))
	require.NoError(t, err)

	hs.Zero()
	assert.Equal(t, mustHex(t, vecInitiatorStatic), local.Bytes())
}

// ============================================================================
//                              错误路径
// ============================================================================

func TestHandshakeState_OutOfTurn(t *testing.T) {
	initiator, responder := vectorPair(t)

	_, _, _, err := responder.WriteMessage(nil, nil)
	require.ErrorIs(t, err, ErrOutOfTurn)

	_, _, _, err = initiator.ReadMessage(nil, mustHex(t, vecAct2))
	require.ErrorIs(t, err, ErrOutOfTurn)

	// 出错不影响后续正常流程
	assert.Equal(t, StageAwaitingOurFirstAction, initiator.Stage())
	act1, _, _, err := initiator.WriteMessage(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, vecAct1), act1)

	_, _, _, err = initiator.WriteMessage(nil, nil)
	require.ErrorIs(t, err, ErrOutOfTurn)
}

func TestHandshakeState_ReadValidation(t *testing.T) {
	act1 := mustHex(t, vecAct1)

	badVersion := append([]byte(nil), act1...)
	badVersion[0] = 1

	tests := []struct {
		name string
		msg  []byte
		want error
	}{
		{"空消息", nil, ErrMalformedMessage},
		{"版本不匹配", badVersion, ErrProtocolVersionMismatch},
		{"过短", act1[:ActOneSize-1], ErrMalformedMessage},
		{"过长", append(append([]byte(nil), act1...), 0), ErrMalformedMessage},
		{"无效临时公钥", invalidEphemeralAct(act1), ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, responder := vectorPair(t)
			h := responder.HandshakeHash()

			_, _, _, err := responder.ReadMessage(nil, tt.msg)
			require.ErrorIs(t, err, tt.want)

			// 状态未改变，正确的 Act1 仍可处理
			assert.Equal(t, h, responder.HandshakeHash())
			assert.Equal(t, StageAwaitingOurFirstAction, responder.Stage())
			_, _, _, err = responder.ReadMessage(nil, act1)
			require.NoError(t, err)
		})
	}
}

func TestHandshakeState_AuthFailureNoPartialState(t *testing.T) {
	_, responder := vectorPair(t)
	h := responder.HandshakeHash()

	bad := flip(mustHex(t, vecAct1), ActOneSize-1)
	_, _, _, err := responder.ReadMessage(nil, bad)
	require.ErrorIs(t, err, ErrAuthenticationFailure)

	assert.Equal(t, h, responder.HandshakeHash())
	assert.Nil(t, responder.re)
	assert.False(t, responder.ss.HasKey())

	_, _, _, err = responder.ReadMessage(nil, mustHex(t, vecAct1))
	require.NoError(t, err)
}

// 篡改任一 Act 的任一字节，对端都必须在读取该消息时失败
func TestHandshakeState_TamperEveryByte(t *testing.T) {
	acts := []struct {
		name string
		size int
	}{
		{"Act1", ActOneSize},
		{"Act2", ActTwoSize},
		{"Act3", ActThreeSize},
	}

	for actIdx, act := range acts {
		t.Run(act.name, func(t *testing.T) {
			for i := 0; i < act.size; i++ {
				initiator, responder := vectorPair(t)
				err := runTampered(t, initiator, responder, actIdx, i)
				require.Error(t, err, "byte %d", i)
				assert.True(t,
					errors.Is(err, ErrAuthenticationFailure) ||
						errors.Is(err, ErrMalformedMessage) ||
						errors.Is(err, ErrProtocolVersionMismatch),
					"byte %d: unexpected error %v", i, err)
			}
		})
	}
}

func TestHandshakeState_PayloadSize(t *testing.T) {
	initKey := mustPriv(t, vecInitiatorStatic)
	respKey := mustPriv(t, vecResponderStatic)

	initiator, err := NewHandshakeState(types.RoleInitiator, initKey, respKey.PublicKey(), WithPayloadSize(4))
	require.NoError(t, err)
	responder, err := NewHandshakeState(types.RoleResponder, respKey, nil, WithPayloadSize(4))
	require.NoError(t, err)

	_, _, _, err = initiator.WriteMessage(nil, nil)
	require.ErrorIs(t, err, ErrInvalidPayloadSize)

	act1, _, _, err := initiator.WriteMessage(nil, []byte("ping"))
	require.NoError(t, err)
	assert.Len(t, act1, ActOneSize+4)

	payload, _, _, err := responder.ReadMessage(nil, act1)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), payload)
}

func TestHandshakeState_MessageTooLarge(t *testing.T) {
	local := mustPriv(t, vecInitiatorStatic)
	hs, err := NewHandshakeState(types.RoleInitiator, local, mustPub(t, vecResponderStaticPub),
		WithPayloadSize(MaxHandshakeMessageSize))
	require.NoError(t, err)

	_, _, _, err = hs.WriteMessage(nil, make([]byte, MaxHandshakeMessageSize))
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestHandshakeState_EphemeralFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")
	hs, err := NewHandshakeState(types.RoleInitiator, mustPriv(t, vecInitiatorStatic),
		mustPub(t, vecResponderStaticPub),
		WithEphemeralGenerator(func() (*crypto.PrivateKey, error) { return nil, boom }))
	require.NoError(t, err)

	_, _, _, err = hs.WriteMessage(nil, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StageAwaitingOurFirstAction, hs.Stage())
}

// ============================================================================
//                              辅助函数
// ============================================================================

// runTampered 执行握手，在第 act 条消息的第 i 个字节翻转一位，返回接收方的错误
func runTampered(t *testing.T, initiator, responder *HandshakeState, act, i int) error {
	t.Helper()

	writers := []*HandshakeState{initiator, responder, initiator}
	readers := []*HandshakeState{responder, initiator, responder}

	for n := 0; n <= act; n++ {
		msg, _, _, err := writers[n].WriteMessage(nil, nil)
		require.NoError(t, err)
		if n == act {
			msg = flip(msg, i)
		}
		if _, _, _, err := readers[n].ReadMessage(nil, msg); err != nil {
			if n != act {
				t.Fatalf("act %d failed before tampering: %v", n, err)
			}
			return err
		}
	}
	return nil
}

// invalidEphemeralAct 把 Act1 的临时公钥替换为不在曲线上的点
func invalidEphemeralAct(act1 []byte) []byte {
	out := append([]byte(nil), act1...)
	copy(out[1:], append(append([]byte{0x02}, make([]byte, 31)...), 0x05))
	return out
}
