// Package account reads the connected wallet's addresses and native balances.
package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"golang.org/x/sync/errgroup"
	"moff.io/wemove/pkg/log"
)

// Source lists accounts and their balances, usually a provider.Provider.
type Source interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Row struct {
	Address common.Address
	Wei     *big.Int
	// Balance in ether with 4 decimals
	Balance string
}

// State is one complete render of the account view. Every refresh builds a new one.
type State struct {
	Selected *common.Address
	Rows     []Row
}

// DataFetchError means the account list or one of the balances could not be read.
type DataFetchError struct {
	Op  string
	Err error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

func (e *DataFetchError) UserMessage() string {
	return e.Err.Error()
}

// Refresh lists accounts, queries every balance concurrently and returns them in the
// provider's order once all have completed.
func Refresh(ctx context.Context, source Source) (*State, error) {
	accounts, err := source.Accounts(ctx)
	if err != nil {
		return nil, &DataFetchError{Op: "accounts", Err: err}
	}
	rows := make([]Row, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range accounts {
		i, a := i, a
		g.Go(func() error {
			wei, err := source.BalanceAt(gctx, a, nil)
			if err != nil {
				return &DataFetchError{Op: "balance of " + a.Hex(), Err: err}
			}
			rows[i] = Row{Address: a, Wei: wei, Balance: FormatBalance(wei)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	state := &State{Rows: rows}
	if len(accounts) > 0 {
		selected := accounts[0]
		state.Selected = &selected
	}
	log.Debugf("account - refreshed %d accounts", len(rows))
	return state, nil
}

// FormatBalance converts wei to ether with exactly 4 decimals, halves rounded away from zero.
func FormatBalance(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return new(big.Rat).SetFrac(wei, big.NewInt(params.Ether)).FloatString(4)
}
