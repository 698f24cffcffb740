package walletconnect

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

type Wallet struct {
	Meta     clientMeta `json:"peerMeta"`
	ChainID  int64      `json:"chainId"`
	Accounts []string   `json:"accounts"`
	PeerID   string     `json:"peerId"`
	Approved bool       `json:"approved"`

	// signed or rejected, only meaningful when a sign message is configured
	signed bool
}

func (in Wallet) Signed() bool {
	return in.signed
}

// Update is a wc_sessionUpdate pushed by the wallet. Approved false means the wallet disconnected.
type Update struct {
	Approved bool     `json:"approved"`
	ChainID  int64    `json:"chainId"`
	Accounts []string `json:"accounts"`
}

// TransactionRequest is the eth_sendTransaction parameter object.
type TransactionRequest struct {
	From  common.Address
	To    *common.Address
	Gas   uint64
	Value *big.Int
	Data  []byte
}

type transactionParams struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Gas   hexutil.Uint64  `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func (in TransactionRequest) params() transactionParams {
	p := transactionParams{
		From: in.From,
		To:   in.To,
		Gas:  hexutil.Uint64(in.Gas),
		Data: in.Data,
	}
	if in.Value != nil {
		p.Value = (*hexutil.Big)(in.Value)
	}
	return p
}

type wcMessagePayload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

func newWCMessagePayloadFromBytes(data []byte) (*wcMessagePayload, error) {
	var payload wcMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message payload")
	}
	return &payload, nil
}

func (e *wcMessagePayload) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

type peer struct {
	PeerID   string     `json:"peerId"`
	PeerMeta clientMeta `json:"peerMeta"`
	ChainID  *int64     `json:"chainId"`
}

type clientMeta struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
	Name        string   `json:"name"`
}

type wcMessage struct {
	Topic string `json:"topic"`
	// pub sub ack
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

func newWCMessageFromBytes(data []byte) (*wcMessage, error) {
	var msg wcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message")
	}
	return &msg, nil
}

func (msg *wcMessage) Marshal() []byte {
	bytes, _ := json.Marshal(msg)
	return bytes
}

type jsonRpcRequest struct {
	Id      int64         `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newJSONRpcRequest(id int64, method string, params ...interface{}) *jsonRpcRequest {
	r := &jsonRpcRequest{
		Id:      id,
		JSONRpc: "2.0",
		Method:  method,
		Params:  []interface{}{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

func (e *jsonRpcRequest) Marshal() string {
	s, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal:%v", err)
	}
	return string(s)
}

// IsSilentPayload reports whether the wallet should process the request without prompting the user.
func (e *jsonRpcRequest) IsSilentPayload() bool {
	return len(e.Method) > 3 && e.Method[:3] == "wc_"
}
