package provider

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"moff.io/wemove/pkg/errors"
)

// fakeEth serves the eth namespace for in-process rpc clients.
type fakeEth struct {
	mu       sync.Mutex
	accounts []common.Address
	chainID  int64
	balances map[common.Address]*big.Int
	sent     []map[string]interface{}
	down     bool
}

func (f *fakeEth) Accounts() ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("node unavailable")
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeEth) ChainId() *hexutil.Big {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (*hexutil.Big)(big.NewInt(f.chainID))
}

func (f *fakeEth) GetBalance(account common.Address, block string) *hexutil.Big {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[account]; ok {
		return (*hexutil.Big)(b)
	}
	return (*hexutil.Big)(new(big.Int))
}

func (f *fakeEth) EstimateGas(args map[string]interface{}, block *string) hexutil.Uint64 {
	return 21000
}

func (f *fakeEth) SendTransaction(args map[string]interface{}) common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, args)
	return common.HexToHash("0x01")
}

func (f *fakeEth) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: hash,
		Logs:   []*types.Log{},
	}
}

func (f *fakeEth) setAccounts(accounts ...common.Address) {
	f.mu.Lock()
	f.accounts = accounts
	f.mu.Unlock()
}

func (f *fakeEth) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeEth) setChainID(id int64) {
	f.mu.Lock()
	f.chainID = id
	f.mu.Unlock()
}

func newFakeEthServer(f *fakeEth) *rpc.Server {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", f); err != nil {
		panic(err)
	}
	return srv
}

func inProcDialer(srv *rpc.Server) Dialer {
	return func(ctx context.Context, rawurl string) (*ethclient.Client, error) {
		return ethclient.NewClient(rpc.DialInProc(srv)), nil
	}
}
