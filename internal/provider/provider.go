// Package provider defines the wallet/chain handle shared by the session, account and
// contract layers, along with its WalletConnect and node-backed implementations.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	case Disconnected:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event signals that something changed. Receivers must re-query the provider rather than
// trust the payload.
type Event struct {
	Kind EventKind
}

// TxRequest is a transaction the wallet signs and broadcasts.
type TxRequest struct {
	From  common.Address
	To    *common.Address
	Gas   uint64
	Value *big.Int
	Data  []byte
}

// Provider is the opaque handle to a connected wallet and its chain.
// Implementations that hold resources also implement io.Closer.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SubscribeEvents(ch chan<- Event) event.Subscription
}
