// Package session owns the lifecycle of the wallet session: connect through the wallet
// modal, observe account and chain changes, disconnect.
package session

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/atomic"
	"moff.io/wemove/internal/provider"
)

// Session is created by a successful connect and dropped by disconnect.
type Session struct {
	ID       string
	Provider provider.Provider

	closed atomic.Bool

	mu      sync.RWMutex
	account *common.Address
	chainID *big.Int
}

// Account returns the active account, false when the wallet exposes none.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return common.Address{}, false
	}
	return *s.account, true
}

func (s *Session) ChainID() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.chainID == nil {
		return nil
	}
	return new(big.Int).Set(s.chainID)
}

func (s *Session) set(accounts []common.Address, chainID *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(accounts) > 0 {
		a := accounts[0]
		s.account = &a
	} else {
		s.account = nil
	}
	if chainID != nil {
		s.chainID = chainID
	}
}
