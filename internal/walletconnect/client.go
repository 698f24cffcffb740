package walletconnect

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/wemove/pkg/bridge"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

var (
	errSessionClosed = errors.New("session closed")

	// ErrSessionRejected is returned when the user rejects the session or the sign request.
	ErrSessionRejected = errors.New("Session Rejected")
)

// Options configures a client. Zero values fall back to defaults.
type Options struct {
	BridgeURL   string
	ChainID     int64
	SignMessage string
	ReadTimeout time.Duration
	Name        string
	Description string
	URL         string
}

type client struct {
	// None zero value means can not call ConnectWallet again, you should recreate client instead.
	collectWalletCount atomic.Int64
	closed             atomic.Bool

	readTimeout time.Duration
	conn        *websocket.Conn
	writeMu     sync.Mutex
	bridgeURL   string
	done        chan struct{}

	handshakeTopic string
	clientID       string
	encryptionKey  []byte
	payloadID      atomic.Int64
	chainID        int64
	meta           clientMeta

	signMsg string

	mu      sync.Mutex
	pending map[int64]chan string
	wallet  Wallet
	updates event.Feed
}

func NewClient(opts Options) ClientV1 {
	encryptionKey, _ := bridge.GenerateRandomBytes(256 / 8)
	if opts.BridgeURL == "" {
		opts.BridgeURL = bridge.RandomBridgeURL()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Minute
	}
	if opts.Name == "" {
		opts.Name = "WeMove"
	}
	c := &client{
		encryptionKey:  encryptionKey,
		bridgeURL:      opts.BridgeURL,
		handshakeTopic: uuid.NewString(),
		clientID:       uuid.NewString(),
		readTimeout:    opts.ReadTimeout,
		chainID:        opts.ChainID,
		signMsg:        opts.SignMessage,
		done:           make(chan struct{}),
		pending:        make(map[int64]chan string),
		meta: clientMeta{
			Description: opts.Description,
			URL:         opts.URL,
			Icons:       []string{},
			Name:        opts.Name,
		},
	}
	// 每个会话的请求id递增
	c.payloadID.Store(time.Now().UnixNano() / 1000)
	return c
}

func (c *client) URI() string {
	return bridge.PairingURI(c.handshakeTopic, c.bridgeURL, c.encryptionKey)
}

// GetQRCode 返回用户钱包连接的二维码.
func (c *client) GetQRCode() ([]byte, error) {
	uri := c.URI()
	log.Debugf("wallet connect - generated uri:%v", uri)
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.WrapAndReport(err, "encode wallet connect qr code")
	}
	return png, nil
}

func (c *client) ConnectWallet(ctx context.Context, displayQRCode DisplayQRCodeFn) (Session, error) {
	if !c.collectWalletCount.CAS(0, 1) {
		return nil, errors.NewWithReport("duplicate collect wallet")
	}
	png, err := c.GetQRCode()
	if err != nil {
		return nil, err
	}
	if err := c.dialWS(ctx); err != nil {
		return nil, err
	}
	go c.readLoop()
	if err := c.interact(ctx, png, displayQRCode); err != nil {
		c.shutdown()
		return nil, err
	}
	return c, nil
}

func (c *client) interact(ctx context.Context, png []byte, displayQRCode DisplayQRCodeFn) error {
	if err := c.subscribe(c.clientID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	id, resp, err := c.createSessionRequest()
	if err != nil {
		return err
	}
	if err := displayQRCode(png); err != nil {
		c.dropPending(id)
		return errors.Wrap(err, "display qr code")
	}
	if err := c.createSessionResponse(ctx, id, resp); err != nil {
		return err
	}
	if c.signMsg == "" {
		return nil
	}
	return c.signMessage(ctx)
}

func (c *client) dialWS(ctx context.Context) error {
	wsURL := bridge.GetWebSocketURL(c.bridgeURL, "wc", "1")
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return errors.Wrap(err, "dial to wallet connect bridge url")
	}
	c.conn = conn
	return nil
}

// shutdown closes the connection once and waits for the read loop to exit.
func (c *client) shutdown() {
	if !c.closed.CAS(false, true) {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		<-c.done
	}
}

func (c *client) Close() error {
	if c.closed.Load() {
		return nil
	}
	w := c.Wallet()
	if w.PeerID != "" {
		// 通知钱包断开会话
		update := map[string]interface{}{
			"approved":  false,
			"chainId":   nil,
			"networkId": nil,
			"accounts":  nil,
		}
		if err := c.publish(w.PeerID, newJSONRpcRequest(c.payloadID.Inc(), "wc_sessionUpdate", update)); err != nil {
			log.Warnf("wallet connect - kill session:%v", err)
		}
	}
	c.shutdown()
	return nil
}

func (c *client) Wallet() Wallet {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.wallet
	w.Accounts = append([]string(nil), c.wallet.Accounts...)
	return w
}

func (c *client) Subscribe(ch chan<- Update) event.Subscription {
	return c.updates.Subscribe(ch)
}

func (c *client) SendTransaction(ctx context.Context, tx TransactionRequest) (common.Hash, error) {
	w := c.Wallet()
	result, err := c.call(ctx, w.PeerID, "eth_sendTransaction", tx.params())
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := json.Unmarshal([]byte(result), &hash); err != nil {
		return common.Hash{}, errors.Wrapf(err, "decode transaction hash %s", result)
	}
	return hash, nil
}

func (c *client) sendRequest(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	err := c.conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		return errors.Wrap(err, "write wallet connect message to server")
	}
	return nil
}

func (c *client) encryptJSONRpc(jsonRpc string) (*wcMessagePayload, error) {
	iv, err := bridge.GenerateRandomBytes(128 / 8)
	if err != nil {
		return nil, err
	}
	data, err := bridge.Aes256Encrypt([]byte(jsonRpc), c.encryptionKey, iv)
	if err != nil {
		return nil, err
	}
	unsigned := append(append([]byte{}, data...), iv...)
	hmac := bridge.HmacSha256(unsigned, c.encryptionKey)
	msg := &wcMessagePayload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(hmac),
	}
	return msg, nil
}

func (c *client) decryptJSONRpc(msg *wcMessage) (string, error) {
	mp, err := newWCMessagePayloadFromBytes([]byte(msg.Payload))
	if err != nil {
		return "", err
	}
	iv, err := hex.DecodeString(mp.IV)
	if err != nil {
		return "", errors.Wrap(err, "decode iv hex")
	}
	cipher, err := hex.DecodeString(mp.Data)
	if err != nil {
		return "", errors.Wrap(err, "decode cipher hex")
	}
	// 校验hmac一致性
	unsigned := append(append([]byte{}, cipher...), iv...)
	hmac := bridge.HmacSha256(unsigned, c.encryptionKey)
	if hex.EncodeToString(hmac) != mp.Hmac {
		return "", errors.New("inconsistent session message hmac")
	}
	// 解密数据
	data, err := bridge.Aes256Decrypt(cipher, c.encryptionKey, iv)
	if err != nil {
		return "", errors.Wrap(err, "aes256 decrypt")
	}
	return string(data), nil
}

// readLoop dispatches bridge messages until the connection closes.
func (c *client) readLoop() {
	defer close(c.done)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Warnf("wallet connect - read bridge:%v", err)
			}
			c.remoteClosed()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		log.Debugf("wallet connect - receive:%v", string(data))
		msg, err := newWCMessageFromBytes(data)
		if err != nil {
			log.Warn(err)
			continue
		}
		if msg.Type != "pub" {
			continue
		}
		if err := c.sessionMessageACK(msg.Topic); err != nil {
			log.Warn(err)
		}
		payload, err := c.decryptJSONRpc(msg)
		if err != nil {
			log.Warnf("wallet connect - drop message:%v", err)
			continue
		}
		c.dispatch(payload)
	}
}

func (c *client) dispatch(jsonRpc string) {
	if method := gjson.Get(jsonRpc, "method"); method.Exists() {
		if method.String() == "wc_sessionUpdate" {
			c.checkSessionUpdate(jsonRpc)
		}
		return
	}
	id := gjson.Get(jsonRpc, "id").Int()
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		log.Debugf("wallet connect - response without request:%v", id)
		return
	}
	ch <- jsonRpc
}

// checkSessionUpdate 处理钱包推送的会话更新或者链接断开
func (c *client) checkSessionUpdate(jsonRpc string) {
	params := gjson.Get(jsonRpc, "params").Array()
	if len(params) == 0 {
		return
	}
	var update Update
	if err := json.Unmarshal([]byte(params[0].Raw), &update); err != nil {
		log.Warnf("wallet connect - decode session update %v:%v", jsonRpc, err)
		return
	}
	if !update.Approved {
		log.Warnf("wallet connect - session closed from request %v", jsonRpc)
		c.updates.Send(update)
		go c.shutdown()
		return
	}
	c.mu.Lock()
	c.wallet.ChainID = update.ChainID
	c.wallet.Accounts = update.Accounts
	c.mu.Unlock()
	c.updates.Send(update)
}

// remoteClosed tells subscribers the session is gone when the bridge drops without a kill message.
func (c *client) remoteClosed() {
	if c.closed.Load() {
		return
	}
	c.updates.Send(Update{Approved: false})
}

func (c *client) sessionMessageACK(topic string) error {
	msg := wcMessage{
		Topic:   topic,
		Type:    "ack",
		Payload: "",
		Silent:  true,
	}
	return c.sendRequest(msg.Marshal())
}

func (c *client) subscribe(topic string) error {
	msg := wcMessage{
		Topic:   topic,
		Type:    "sub",
		Payload: "",
		Silent:  true,
	}
	log.Debugf("wallet connect - subscribe session:%v", string(msg.Marshal()))
	return c.sendRequest(msg.Marshal())
}

func (c *client) publish(topic string, req *jsonRpcRequest) error {
	payload, err := c.encryptJSONRpc(req.Marshal())
	if err != nil {
		return err
	}
	msg := wcMessage{
		Topic:   topic,
		Type:    "pub",
		Payload: payload.Marshal(),
		Silent:  req.IsSilentPayload(),
	}
	log.Debugf("wallet connect - publish %v to %v", req.Method, topic)
	return c.sendRequest(msg.Marshal())
}

func (c *client) register(id int64) chan string {
	ch := make(chan string, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *client) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *client) await(ctx context.Context, id int64, ch chan string) (string, error) {
	select {
	case payload := <-ch:
		return payload, nil
	case <-c.done:
		c.dropPending(id)
		return "", errSessionClosed
	case <-ctx.Done():
		c.dropPending(id)
		return "", ctx.Err()
	}
}

// call publishes a request to topic and waits for its response. Wallet errors keep their raw
// JSON error object in the message so callers can extract the reason.
func (c *client) call(ctx context.Context, topic, method string, params ...interface{}) (string, error) {
	if c.closed.Load() {
		return "", errSessionClosed
	}
	req := newJSONRpcRequest(c.payloadID.Inc(), method, params...)
	ch := c.register(req.Id)
	if err := c.publish(topic, req); err != nil {
		c.dropPending(req.Id)
		return "", err
	}
	payload, err := c.await(ctx, req.Id, ch)
	if err != nil {
		return "", err
	}
	if e := gjson.Get(payload, "error"); e.Exists() {
		return "", errors.Errorf("wallet connect %s: %s", method, e.Raw)
	}
	return gjson.Get(payload, "result").Raw, nil
}

func (c *client) createSessionRequest() (int64, chan string, error) {
	var chainID *int64
	if c.chainID != 0 {
		chainID = &c.chainID
	}
	req := newJSONRpcRequest(c.payloadID.Inc(), "wc_sessionRequest", peer{
		PeerID:   c.clientID,
		PeerMeta: c.meta,
		ChainID:  chainID,
	})
	ch := c.register(req.Id)
	if err := c.publish(c.handshakeTopic, req); err != nil {
		c.dropPending(req.Id)
		return 0, nil, err
	}
	return req.Id, ch, nil
}

func (c *client) createSessionResponse(ctx context.Context, id int64, ch chan string) error {
	sessionResult, err := c.await(ctx, id, ch)
	if err != nil {
		if errors.Is(err, errSessionClosed) {
			return ErrSessionRejected
		}
		return err
	}
	log.Debugf("wallet connect - create session response:%v", sessionResult)
	if e := gjson.Get(sessionResult, "error"); e.Exists() {
		msg := e.Get("message").String()
		if strings.Contains(msg, "Session Rejected") {
			return ErrSessionRejected
		}
		return errors.Errorf("wallet connect session request: %s", e.Raw)
	}
	var wallet Wallet
	if err := json.Unmarshal([]byte(gjson.Get(sessionResult, "result").Raw), &wallet); err != nil {
		return errors.Wrap(err, "unmarshal wallet info")
	}
	if !wallet.Approved {
		return ErrSessionRejected
	}
	if len(wallet.Accounts) == 0 {
		return errors.New("no wallet accounts acquired")
	}
	c.mu.Lock()
	c.wallet = wallet
	c.mu.Unlock()
	return nil
}

func (c *client) signMessage(ctx context.Context) error {
	w := c.Wallet()
	result, err := c.call(ctx, w.PeerID, "personal_sign", hexutil.Encode([]byte(c.signMsg)), w.Accounts[0])
	if err != nil {
		if errors.Is(err, errSessionClosed) {
			return ErrSessionRejected
		}
		return err
	}
	signatureHex := gjson.Parse(result).String()
	signed := verifyEthSignature(w.Accounts[0], signatureHex, []byte(c.signMsg))
	c.mu.Lock()
	c.wallet.signed = signed
	c.mu.Unlock()
	if !signed {
		return ErrSessionRejected
	}
	return nil
}
