package walletconnect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const walletPeerID = "wallet-peer"

type published struct {
	topic   string
	payload string
}

// fakeWallet plays both the bridge and the wallet on the other end of the socket.
type fakeWallet struct {
	t      *testing.T
	server *httptest.Server
	conns  chan *websocket.Conn
	conn   *websocket.Conn
	msgs   chan published
	crypto *client
}

func newFakeWallet(t *testing.T) *fakeWallet {
	w := &fakeWallet{
		t:     t,
		conns: make(chan *websocket.Conn, 1),
		msgs:  make(chan published, 16),
	}
	upgrader := websocket.Upgrader{}
	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		w.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := newWCMessageFromBytes(data)
			if err != nil || msg.Type != "pub" {
				continue
			}
			payload, err := w.crypto.decryptJSONRpc(msg)
			if err != nil {
				continue
			}
			w.msgs <- published{topic: msg.Topic, payload: payload}
		}
	}))
	t.Cleanup(w.server.Close)
	return w
}

func (w *fakeWallet) attach(c *client) {
	w.crypto = &client{encryptionKey: c.encryptionKey}
}

func (w *fakeWallet) next(method string) published {
	w.t.Helper()
	if w.conn == nil {
		select {
		case w.conn = <-w.conns:
		case <-time.After(5 * time.Second):
			w.t.Fatal("bridge connection not established")
		}
	}
	for {
		select {
		case p := <-w.msgs:
			if gjson.Get(p.payload, "method").String() == method {
				return p
			}
		case <-time.After(5 * time.Second):
			w.t.Fatalf("no %s request received", method)
		}
	}
}

func (w *fakeWallet) send(topic, jsonRpc string) {
	w.t.Helper()
	payload, err := w.crypto.encryptJSONRpc(jsonRpc)
	require.NoError(w.t, err)
	msg := wcMessage{Topic: topic, Type: "pub", Payload: payload.Marshal()}
	require.NoError(w.t, w.conn.WriteMessage(websocket.TextMessage, msg.Marshal()))
}

func connect(t *testing.T, opts Options) (*fakeWallet, *client, chan []byte, chan error, chan Session) {
	w := newFakeWallet(t)
	opts.BridgeURL = w.server.URL
	c := NewClient(opts).(*client)
	w.attach(c)

	displayed := make(chan []byte, 1)
	errs := make(chan error, 1)
	sessions := make(chan Session, 1)
	go func() {
		s, err := c.ConnectWallet(context.Background(), func(png []byte) error {
			displayed <- png
			return nil
		})
		errs <- err
		sessions <- s
	}()
	return w, c, displayed, errs, sessions
}

func approve(w *fakeWallet, c *client, accountsJSON string) {
	req := w.next("wc_sessionRequest")
	assert.Equal(w.t, c.handshakeTopic, req.topic)
	assert.Equal(w.t, int64(10001), gjson.Get(req.payload, "params.0.chainId").Int())
	id := gjson.Get(req.payload, "id").Raw
	w.send(c.clientID, `{"id":`+id+`,"jsonrpc":"2.0","result":{"approved":true,"chainId":10001,"accounts":`+
		accountsJSON+`,"peerId":"`+walletPeerID+`","peerMeta":{"name":"test wallet"}}}`)
}

func TestConnectSendUpdateClose(t *testing.T) {
	w, c, displayed, errs, sessions := connect(t, Options{ChainID: 10001})
	approve(w, c, `["0x25836239F7b632635F815689389C537133248edb"]`)

	require.NoError(t, <-errs)
	session := <-sessions
	assert.NotEmpty(t, <-displayed)
	wallet := session.Wallet()
	assert.Equal(t, []string{"0x25836239F7b632635F815689389C537133248edb"}, wallet.Accounts)
	assert.Equal(t, int64(10001), wallet.ChainID)
	assert.Equal(t, walletPeerID, wallet.PeerID)

	// eth_sendTransaction round trip
	to := common.HexToAddress("0x64bd5A3F0f426Af103E250df611f2fF0b9706a63")
	hashes := make(chan common.Hash, 1)
	sendErrs := make(chan error, 1)
	go func() {
		h, err := session.SendTransaction(context.Background(), TransactionRequest{
			From: common.HexToAddress(wallet.Accounts[0]),
			To:   &to,
			Gas:  21000,
			Data: []byte{0x01, 0x02},
		})
		sendErrs <- err
		hashes <- h
	}()
	req := w.next("eth_sendTransaction")
	assert.Equal(t, walletPeerID, req.topic)
	assert.Equal(t, "0x5208", gjson.Get(req.payload, "params.0.gas").String())
	assert.Equal(t, "0x0102", gjson.Get(req.payload, "params.0.data").String())
	txHash := common.HexToHash("0xab01").Hex()
	w.send(c.clientID, `{"id":`+gjson.Get(req.payload, "id").Raw+`,"jsonrpc":"2.0","result":"`+txHash+`"}`)
	require.NoError(t, <-sendErrs)
	assert.Equal(t, common.HexToHash(txHash), <-hashes)

	// wallet rejects a transaction
	go func() {
		_, err := session.SendTransaction(context.Background(), TransactionRequest{From: common.HexToAddress(wallet.Accounts[0]), To: &to})
		sendErrs <- err
	}()
	req = w.next("eth_sendTransaction")
	w.send(c.clientID, `{"id":`+gjson.Get(req.payload, "id").Raw+`,"jsonrpc":"2.0","error":{"code":-32000,"message":"User rejected"}}`)
	err := <-sendErrs
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"message":"User rejected"`)

	// session update pushed by the wallet
	updates := make(chan Update, 1)
	sub := session.Subscribe(updates)
	defer sub.Unsubscribe()
	w.send(c.clientID, `{"id":1,"jsonrpc":"2.0","method":"wc_sessionUpdate","params":[{"approved":true,"chainId":10000,"accounts":["0x0000000000000000000000000000000000000002"]}]}`)
	select {
	case u := <-updates:
		assert.True(t, u.Approved)
		assert.Equal(t, int64(10000), u.ChainID)
	case <-time.After(5 * time.Second):
		t.Fatal("session update not delivered")
	}
	assert.Equal(t, []string{"0x0000000000000000000000000000000000000002"}, session.Wallet().Accounts)

	// closing kills the session on the wallet side
	require.NoError(t, session.Close())
	kill := w.next("wc_sessionUpdate")
	assert.False(t, gjson.Get(kill.payload, "params.0.approved").Bool())
	assert.NoError(t, session.Close())

	_, err = session.SendTransaction(context.Background(), TransactionRequest{})
	assert.ErrorIs(t, err, errSessionClosed)
}

func TestConnectRejected(t *testing.T) {
	w, c, _, errs, _ := connect(t, Options{ChainID: 10001})
	req := w.next("wc_sessionRequest")
	w.send(c.clientID, `{"id":`+gjson.Get(req.payload, "id").Raw+`,"jsonrpc":"2.0","error":{"code":-32000,"message":"Session Rejected"}}`)
	assert.ErrorIs(t, <-errs, ErrSessionRejected)
}

func TestConnectWalletOnlyOnce(t *testing.T) {
	w, c, _, errs, _ := connect(t, Options{ChainID: 10001})
	approve(w, c, `["0x25836239F7b632635F815689389C537133248edb"]`)
	require.NoError(t, <-errs)

	_, err := c.ConnectWallet(context.Background(), func([]byte) error { return nil })
	assert.EqualError(t, err, "duplicate collect wallet")
	require.NoError(t, c.Close())
}

func TestConnectWithSignMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	w, c, _, errs, sessions := connect(t, Options{ChainID: 10001, SignMessage: "hello wemove"})
	approve(w, c, `["`+address+`"]`)

	req := w.next("personal_sign")
	msg, err := hexutil.Decode(gjson.Get(req.payload, "params.0").String())
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	w.send(c.clientID, `{"id":`+gjson.Get(req.payload, "id").Raw+`,"jsonrpc":"2.0","result":"`+hexutil.Encode(sig)+`"}`)

	require.NoError(t, <-errs)
	session := <-sessions
	assert.True(t, session.Wallet().Signed())
	require.NoError(t, session.Close())
}

func TestVerifyEthSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	msg := []byte("sign me")
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	require.NoError(t, err)

	assert.True(t, verifyEthSignature(address, hexutil.Encode(sig), msg))
	assert.False(t, verifyEthSignature(address, hexutil.Encode(sig), []byte("other")))
	assert.False(t, verifyEthSignature(address, "0x1234", msg))
}
