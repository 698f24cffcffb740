package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAesRoundTrip(t *testing.T) {
	key, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	iv, err := GenerateRandomBytes(16)
	require.NoError(t, err)

	for _, plain := range []string{"", "x", `{"id":1,"jsonrpc":"2.0","method":"wc_sessionRequest"}`, strings.Repeat("a", 16)} {
		cipher, err := Aes256Encrypt([]byte(plain), key, iv)
		require.NoError(t, err)
		assert.Zero(t, len(cipher)%16)

		got, err := Aes256Decrypt(cipher, key, iv)
		require.NoError(t, err)
		assert.Equal(t, plain, string(got))
	}
}

func TestAesDecryptRejectsWrongKey(t *testing.T) {
	key, _ := GenerateRandomBytes(32)
	other, _ := GenerateRandomBytes(32)
	iv, _ := GenerateRandomBytes(16)
	cipher, err := Aes256Encrypt([]byte("payload that spans more than one block"), key, iv)
	require.NoError(t, err)

	got, err := Aes256Decrypt(cipher, other, iv)
	if err == nil {
		assert.NotEqual(t, "payload that spans more than one block", string(got))
	}
}

func TestGetWebSocketURL(t *testing.T) {
	assert.Equal(t, "wss://a.bridge.walletconnect.org?env=browser&protocol=wc&version=1",
		GetWebSocketURL("https://a.bridge.walletconnect.org", "wc", "1"))
	assert.Equal(t, "ws://127.0.0.1:5001?env=browser&protocol=wc&version=1",
		GetWebSocketURL("http://127.0.0.1:5001", "wc", "1"))
}

func TestRandomBridgeURL(t *testing.T) {
	u := RandomBridgeURL()
	assert.True(t, strings.HasPrefix(u, "https://"))
	assert.True(t, strings.HasSuffix(u, ".bridge.walletconnect.org"))
}

func TestPairingURI(t *testing.T) {
	uri := PairingURI("topic", "https://a.bridge.walletconnect.org", []byte{0xab, 0x01})
	assert.Equal(t, "wc:topic@1?bridge=https%3A%2F%2Fa.bridge.walletconnect.org&key=ab01", uri)
}
