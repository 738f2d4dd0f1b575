package noise

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bolt8/pkg/lib/crypto"
	"github.com/dep2p/go-bolt8/pkg/types"
)

// BOLT8 附录 A 测试向量
const (
	vecInitiatorStatic    = "1111111111111111111111111111111111111111111111111111111111111111"
	vecInitiatorEphemeral = "1212121212121212121212121212121212121212121212121212121212121212"
	vecResponderStatic    = "2121212121212121212121212121212121212121212121212121212121212121"
	vecResponderEphemeral = "2222222222222222222222222222222222222222222222222222222222222222"

	vecResponderStaticPub = "028d7500dd4c12685d1f568b4c2b5048e8534b873319f3a8daa612b469132ec7f7"
	vecInitiatorStaticPub = "034f355bdcb7cc0af728ef3cceb9615d90684bb5b2ca5f859ab0f0b704075871aa"

	vecInitialHash = "8401b3fdcaaa710b5405400536a3d5fd7792fe8e7fe29cd8b687216fe323ecbd"

	vecAct1  = "00036360e856310ce5d294e8be33fc807077dc56ac80d95d9cd4ddbd21325eff73f70df6086551151f58b8afe6c195782c6a"
	vecHash1 = "9d1ffbb639e7e20021d9259491dc7b160aab270fb1339ef135053f6f2cebe9ce"

	vecAct2  = "0002466d7fcae563e5cb09a0d1870bb580344804617879a14949cf22285f1bae3f276e2470b93aac583c9ef6eafca3f730ae"
	vecHash2 = "90578e247e98674e661013da3c5c1ca6a8c8f48c90b485c0dfa1494e23d56d72"

	vecAct3      = "00b9e3a702e93e3a9948c2ed6e5fd7590a6e1c3a0344cfc9d5b57357049aa22355361aa02e55a8fc28fef5bd6d71ad0c38228dc68b1c466263b47fdf31e560e139ba"
	vecFinalHash = "3e385d26eb49e88ddd66f70f7b24e597867feecf320bb2245b83adb5a2399ce3"

	vecSendKey     = "969ab31b4d288cedf6218839b27a3e2140827047f2c0f01bf5c04435d43511a9"
	vecRecvKey     = "bb9020b8965f4df047e07f955f3c4b88418984aadc5cdb35096b9ea8fa5c3442"
	vecChainingKey = "919219dbb2920afa8db80f9a51787a840bcf111ed8d588caf9ab4be716e42b01"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func mustPriv(t testing.TB, s string) *crypto.PrivateKey {
	t.Helper()
	k, err := crypto.PrivateKeyFromHex(s)
	require.NoError(t, err)
	return k
}

func mustPub(t testing.TB, s string) *crypto.PublicKey {
	t.Helper()
	k, err := crypto.PublicKeyFromHex(s)
	require.NoError(t, err)
	return k
}

func mustKey(t testing.TB, s string) [KeySize]byte {
	t.Helper()
	var k [KeySize]byte
	copy(k[:], mustHex(t, s))
	return k
}

// fixedEphemeral 每次调用返回同一标量的新密钥对象
func fixedEphemeral(t testing.TB, s string) Option {
	return WithEphemeralGenerator(func() (*crypto.PrivateKey, error) {
		return crypto.PrivateKeyFromHex(s)
	})
}

// vectorPair 构造 BOLT8 向量使用的一对握手状态
func vectorPair(t testing.TB) (*HandshakeState, *HandshakeState) {
	t.Helper()

	initiator, err := NewHandshakeState(types.RoleInitiator,
		mustPriv(t, vecInitiatorStatic), mustPub(t, vecResponderStaticPub),
		fixedEphemeral(t, vecInitiatorEphemeral))
	require.NoError(t, err)

	responder, err := NewHandshakeState(types.RoleResponder,
		mustPriv(t, vecResponderStatic), nil,
		fixedEphemeral(t, vecResponderEphemeral))
	require.NoError(t, err)

	return initiator, responder
}

// randomPair 构造随机身份的一对握手状态
func randomPair(t testing.TB) (*HandshakeState, *HandshakeState) {
	t.Helper()

	initKey, err := crypto.GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)
	respKey, err := crypto.GeneratePrivateKey(rand.Reader)
	require.NoError(t, err)

	initiator, err := NewHandshakeState(types.RoleInitiator, initKey, respKey.PublicKey())
	require.NoError(t, err)
	responder, err := NewHandshakeState(types.RoleResponder, respKey, nil)
	require.NoError(t, err)

	return initiator, responder
}

// runHandshake 执行完整的三条消息握手
func runHandshake(t testing.TB, initiator, responder *HandshakeState) (*Transport, *Transport) {
	t.Helper()

	act1, _, _, err := initiator.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, _, _, err = responder.ReadMessage(nil, act1)
	require.NoError(t, err)

	act2, _, _, err := responder.WriteMessage(nil, nil)
	require.NoError(t, err)
	_, _, _, err = initiator.ReadMessage(nil, act2)
	require.NoError(t, err)

	act3, initHash, initTransport, err := initiator.WriteMessage(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, initTransport)

	_, respHash, respTransport, err := responder.ReadMessage(nil, act3)
	require.NoError(t, err)
	require.NotNil(t, respTransport)

	require.Equal(t, initHash, respHash)
	return initTransport, respTransport
}
