package provider

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/atomic"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

// Node is a provider whose accounts are unlocked on the RPC node (dev chains, ganache-like
// nodes). Account and chain changes are detected by polling.
type Node struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	feed event.Feed

	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	primed   bool
	accounts []common.Address
	chainID  *big.Int
}

// DialNode connects to url. A positive pollInterval starts change detection.
func DialNode(ctx context.Context, url string, pollInterval time.Duration) (*Node, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial node %s", url)
	}
	return NewNode(c, pollInterval), nil
}

func NewNode(c *rpc.Client, pollInterval time.Duration) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		rpc:    c,
		eth:    ethclient.NewClient(c),
		cancel: cancel,
	}
	if pollInterval > 0 {
		n.wg.Add(1)
		go n.watch(ctx, pollInterval)
	}
	return n
}

func (n *Node) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := n.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (n *Node) ChainID(ctx context.Context) (*big.Int, error) {
	return n.eth.ChainID(ctx)
}

func (n *Node) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return n.eth.BalanceAt(ctx, account, blockNumber)
}

func (n *Node) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return n.eth.CallContract(ctx, msg, blockNumber)
}

func (n *Node) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return n.eth.EstimateGas(ctx, msg)
}

func (n *Node) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	var hash common.Hash
	if err := n.rpc.CallContext(ctx, &hash, "eth_sendTransaction", toTxArgs(tx)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (n *Node) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return n.eth.TransactionReceipt(ctx, txHash)
}

func (n *Node) SubscribeEvents(ch chan<- Event) event.Subscription {
	return n.feed.Subscribe(ch)
}

func (n *Node) Close() error {
	if !n.closed.CAS(false, true) {
		return nil
	}
	n.cancel()
	n.wg.Wait()
	n.rpc.Close()
	return nil
}

func (n *Node) watch(ctx context.Context, interval time.Duration) {
	defer n.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	n.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.poll(ctx)
		}
	}
}

// poll compares the node's accounts and chain with the last successful poll. The first
// successful poll only records them.
func (n *Node) poll(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	accounts, err := n.Accounts(pctx)
	if err != nil {
		log.Debugf("node provider - poll accounts:%v", err)
		return
	}
	chainID, err := n.ChainID(pctx)
	if err != nil {
		log.Debugf("node provider - poll chain id:%v", err)
		return
	}
	n.mu.Lock()
	primed := n.primed
	accountsChanged := primed && !sameAccounts(n.accounts, accounts)
	chainChanged := primed && n.chainID.Cmp(chainID) != 0
	n.primed = true
	n.accounts = accounts
	n.chainID = chainID
	n.mu.Unlock()
	if accountsChanged {
		n.feed.Send(Event{Kind: AccountsChanged})
	}
	if chainChanged {
		n.feed.Send(Event{Kind: ChainChanged})
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func toTxArgs(tx TxRequest) txArgs {
	args := txArgs{From: tx.From, To: tx.To, Data: tx.Data}
	if tx.Gas != 0 {
		gas := hexutil.Uint64(tx.Gas)
		args.Gas = &gas
	}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	return args
}
