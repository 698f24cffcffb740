// Package providertest provides an in-memory provider for tests.
package providertest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"moff.io/wemove/internal/provider"
)

// Fake is a scriptable provider.Provider. Zero hooks succeed with empty results.
type Fake struct {
	mu       sync.Mutex
	accounts []common.Address
	chainID  int64
	balances map[common.Address]*big.Int

	AccountsErr error
	ChainIDErr  error
	BalanceErr  error

	// AccountsFn and BalanceFn replace the stored accounts and balances. They run
	// without the lock held so they may block.
	AccountsFn func() ([]common.Address, error)
	BalanceFn  func(account common.Address) (*big.Int, error)
	CallFn     func(msg ethereum.CallMsg) ([]byte, error)
	EstimateFn func(msg ethereum.CallMsg) (uint64, error)
	SendFn     func(tx provider.TxRequest) (common.Hash, error)
	ReceiptFn  func(hash common.Hash) (*types.Receipt, error)

	feed event.Feed

	estimates     []ethereum.CallMsg
	sends         []provider.TxRequest
	calls         []ethereum.CallMsg
	balanceCalls  int
	accountsCalls int
	closes        int
}

func New(chainID int64, accounts ...common.Address) *Fake {
	return &Fake{
		chainID:  chainID,
		accounts: accounts,
		balances: make(map[common.Address]*big.Int),
	}
}

func (f *Fake) SetAccounts(accounts ...common.Address) {
	f.mu.Lock()
	f.accounts = accounts
	f.mu.Unlock()
}

func (f *Fake) SetChainID(id int64) {
	f.mu.Lock()
	f.chainID = id
	f.mu.Unlock()
}

func (f *Fake) SetBalance(account common.Address, wei *big.Int) {
	f.mu.Lock()
	f.balances[account] = wei
	f.mu.Unlock()
}

// Emit publishes a provider event to subscribers.
func (f *Fake) Emit(kind provider.EventKind) {
	f.feed.Send(provider.Event{Kind: kind})
}

func (f *Fake) Accounts(ctx context.Context) ([]common.Address, error) {
	f.mu.Lock()
	f.accountsCalls++
	fn := f.AccountsFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AccountsErr != nil {
		return nil, f.AccountsErr
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *Fake) ChainID(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChainIDErr != nil {
		return nil, f.ChainIDErr
	}
	return big.NewInt(f.chainID), nil
}

func (f *Fake) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	f.balanceCalls++
	fn := f.BalanceFn
	f.mu.Unlock()
	if fn != nil {
		return fn(account)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *Fake) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	fn := f.CallFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(msg)
}

func (f *Fake) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	f.estimates = append(f.estimates, msg)
	fn := f.EstimateFn
	f.mu.Unlock()
	if fn == nil {
		return 21000, nil
	}
	return fn(msg)
}

func (f *Fake) SendTransaction(ctx context.Context, tx provider.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	f.sends = append(f.sends, tx)
	fn := f.SendFn
	f.mu.Unlock()
	if fn == nil {
		return common.BigToHash(big.NewInt(int64(len(f.Sends())))), nil
	}
	return fn(tx)
}

func (f *Fake) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	fn := f.ReceiptFn
	f.mu.Unlock()
	if fn == nil {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
	}
	return fn(hash)
}

func (f *Fake) SubscribeEvents(ch chan<- provider.Event) event.Subscription {
	return f.feed.Subscribe(ch)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

// ChainCalls is the number of estimate, send and eth_call requests seen.
func (f *Fake) ChainCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.estimates) + len(f.sends) + len(f.calls)
}

func (f *Fake) Estimates() []ethereum.CallMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ethereum.CallMsg(nil), f.estimates...)
}

func (f *Fake) Sends() []provider.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.TxRequest(nil), f.sends...)
}

func (f *Fake) BalanceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceCalls
}

func (f *Fake) AccountsCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountsCalls
}

func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}
