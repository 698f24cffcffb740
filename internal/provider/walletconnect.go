package provider

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/atomic"
	"moff.io/wemove/internal/chains"
	"moff.io/wemove/internal/walletconnect"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

// Dialer opens a read client for a chain RPC endpoint.
type Dialer func(ctx context.Context, rawurl string) (*ethclient.Client, error)

// WalletConnect signs through a WalletConnect session and reads through the RPC endpoint
// configured for the wallet's current chain.
type WalletConnect struct {
	session walletconnect.Session
	chains  *chains.Registry
	dial    Dialer

	feed    event.Feed
	sub     event.Subscription
	updates chan walletconnect.Update
	done    chan struct{}
	closed  atomic.Bool

	mu      sync.Mutex
	last    walletconnect.Wallet
	clients map[int64]*ethclient.Client
}

func NewWalletConnect(session walletconnect.Session, registry *chains.Registry, dial Dialer) *WalletConnect {
	if dial == nil {
		dial = ethclient.DialContext
	}
	w := &WalletConnect{
		session: session,
		chains:  registry,
		dial:    dial,
		updates: make(chan walletconnect.Update, 8),
		done:    make(chan struct{}),
		last:    session.Wallet(),
		clients: make(map[int64]*ethclient.Client),
	}
	w.sub = session.Subscribe(w.updates)
	go w.forward()
	return w
}

func (w *WalletConnect) forward() {
	defer close(w.done)
	for {
		select {
		case u := <-w.updates:
			for _, kind := range w.translate(u) {
				w.feed.Send(Event{Kind: kind})
			}
		case <-w.sub.Err():
			return
		}
	}
}

// translate 对比上一次的钱包状态，得到需要通知的事件
func (w *WalletConnect) translate(u walletconnect.Update) []EventKind {
	if !u.Approved {
		return []EventKind{Disconnected}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var kinds []EventKind
	if !sameStrings(w.last.Accounts, u.Accounts) {
		kinds = append(kinds, AccountsChanged)
	}
	if w.last.ChainID != u.ChainID {
		kinds = append(kinds, ChainChanged)
	}
	w.last.Accounts = append([]string(nil), u.Accounts...)
	w.last.ChainID = u.ChainID
	return kinds
}

func (w *WalletConnect) Accounts(ctx context.Context) ([]common.Address, error) {
	wallet := w.session.Wallet()
	accounts := make([]common.Address, 0, len(wallet.Accounts))
	for _, a := range wallet.Accounts {
		if !common.IsHexAddress(a) {
			return nil, errors.Errorf("wallet returned invalid account %q", a)
		}
		accounts = append(accounts, common.HexToAddress(a))
	}
	return accounts, nil
}

func (w *WalletConnect) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(w.session.Wallet().ChainID), nil
}

// backend returns the read client of the wallet's current chain, dialing it on first use.
func (w *WalletConnect) backend(ctx context.Context) (*ethclient.Client, error) {
	if w.closed.Load() {
		return nil, errors.New("provider closed")
	}
	chainID := w.session.Wallet().ChainID
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.clients[chainID]; ok {
		return c, nil
	}
	name := w.chains.Name(chainID)
	chain, err := w.chains.Lookup(chainID)
	if err != nil {
		log.Warnf("wallet connect provider - wallet is on %s without rpc", name)
		return nil, errors.Wrapf(err, "wallet is on %s", name)
	}
	c, err := w.dial(ctx, chain.RPC)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s rpc", name)
	}
	log.Debugf("wallet connect provider - dialed %s rpc %s", name, chain.RPC)
	w.clients[chainID] = c
	return c, nil
}

func (w *WalletConnect) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c, err := w.backend(ctx)
	if err != nil {
		return nil, err
	}
	return c.BalanceAt(ctx, account, blockNumber)
}

func (w *WalletConnect) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c, err := w.backend(ctx)
	if err != nil {
		return nil, err
	}
	return c.CallContract(ctx, msg, blockNumber)
}

func (w *WalletConnect) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c, err := w.backend(ctx)
	if err != nil {
		return 0, err
	}
	return c.EstimateGas(ctx, msg)
}

func (w *WalletConnect) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c, err := w.backend(ctx)
	if err != nil {
		return nil, err
	}
	return c.TransactionReceipt(ctx, txHash)
}

// SendTransaction hands the transaction to the wallet, which signs and broadcasts it.
func (w *WalletConnect) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	return w.session.SendTransaction(ctx, walletconnect.TransactionRequest{
		From:  tx.From,
		To:    tx.To,
		Gas:   tx.Gas,
		Value: tx.Value,
		Data:  tx.Data,
	})
}

func (w *WalletConnect) SubscribeEvents(ch chan<- Event) event.Subscription {
	return w.feed.Subscribe(ch)
}

// Close kills the wallet session and releases the chain clients.
func (w *WalletConnect) Close() error {
	if !w.closed.CAS(false, true) {
		return nil
	}
	err := w.session.Close()
	w.sub.Unsubscribe()
	<-w.done
	w.mu.Lock()
	for id, c := range w.clients {
		c.Close()
		delete(w.clients, id)
	}
	w.mu.Unlock()
	return err
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
