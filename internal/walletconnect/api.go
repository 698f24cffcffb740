package walletconnect

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// ClientV1 wallet connect交互协议v1版客户端
// 交互流程见文档：https://docs.walletconnect.com/tech-spec#establishing-connection
type ClientV1 interface {

	// URI 返回钱包扫码使用的 wc: 链接
	URI() string

	// GetQRCode 返回钱包连接的二维码，用以展示给交互的用户
	GetQRCode() ([]byte, error)

	// ConnectWallet 建立与钱包的会话：发送会话请求、展示二维码并等待用户在钱包中确认。
	// 配置了签名消息时，要求钱包对消息签名并校验签名地址。
	// 用户拒绝会话或拒绝签名时返回 ErrSessionRejected.
	// 每个客户端只能调用一次，断开后需要重新创建客户端。
	ConnectWallet(ctx context.Context, displayQRCode DisplayQRCodeFn) (Session, error)
}

// DisplayQRCodeFn 展示二维码的函数
type DisplayQRCodeFn func(png []byte) error

// Session is an approved wallet session that stays open until Close or until the wallet ends it.
type Session interface {
	// Wallet returns a snapshot of the peer wallet state.
	Wallet() Wallet

	// SendTransaction asks the wallet to sign and broadcast tx, returning its hash.
	SendTransaction(ctx context.Context, tx TransactionRequest) (common.Hash, error)

	// Subscribe delivers every session update pushed by the wallet.
	Subscribe(ch chan<- Update) event.Subscription

	// Close kills the session on the wallet side and closes the bridge connection.
	Close() error
}
