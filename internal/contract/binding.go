// Package contract binds a parsed ABI to a deployed contract and runs typed calls and
// transactions through the session's provider.
package contract

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"moff.io/wemove/internal/provider"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

const defaultReceiptPollInterval = 2 * time.Second

// Backend is the part of a provider the binding needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx provider.TxRequest) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type CallRequest struct {
	Method string
	Args   []interface{}
	From   common.Address
	// GasLimit replaces the estimate as submitted gas when non-zero. Estimation still runs.
	GasLimit uint64
}

type Option func(*Binding)

// WithReceiptPollInterval sets how often Send polls for the receipt.
func WithReceiptPollInterval(d time.Duration) Option {
	return func(b *Binding) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// Binding is immutable once built and must be discarded with its session.
type Binding struct {
	abi          abi.ABI
	address      common.Address
	backend      Backend
	pollInterval time.Duration
}

func Bind(parsed abi.ABI, address common.Address, backend Backend, opts ...Option) *Binding {
	b := &Binding{
		abi:          parsed,
		address:      address,
		backend:      backend,
		pollInterval: defaultReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binding) Address() common.Address {
	return b.address
}

// Call runs a read-only eth_call and decodes the outputs.
func (b *Binding) Call(ctx context.Context, req CallRequest) ([]interface{}, error) {
	method, ok := b.abi.Methods[req.Method]
	if !ok {
		return nil, &Error{Kind: ReadCallError, Method: req.Method, Reason: "no method " + req.Method + " in abi", ABIMismatch: true}
	}
	input, err := b.abi.Pack(req.Method, req.Args...)
	if err != nil {
		return nil, &Error{Kind: ReadCallError, Method: req.Method, Reason: err.Error(), ABIMismatch: true, Err: err}
	}
	to := b.address
	out, err := b.backend.CallContract(ctx, ethereum.CallMsg{From: req.From, To: &to, Data: input}, nil)
	if err != nil {
		return nil, newError(ReadCallError, req.Method, err)
	}
	if len(out) == 0 && len(method.Outputs) > 0 {
		return nil, &Error{
			Kind:        ReadCallError,
			Method:      req.Method,
			Reason:      "empty return data, the contract address or abi does not match the chain",
			ABIMismatch: true,
		}
	}
	values, err := b.abi.Unpack(req.Method, out)
	if err != nil {
		e := newError(ReadCallError, req.Method, err)
		e.ABIMismatch = true
		return nil, e
	}
	return values, nil
}

// Send estimates gas, submits the transaction through the provider and waits for its
// receipt. Nothing is submitted when estimation fails.
func (b *Binding) Send(ctx context.Context, req CallRequest) (*types.Receipt, error) {
	input, err := b.abi.Pack(req.Method, req.Args...)
	if err != nil {
		return nil, &Error{Kind: EstimationError, Method: req.Method, Reason: err.Error(), ABIMismatch: true, Err: err}
	}
	to := b.address
	gas, err := b.backend.EstimateGas(ctx, ethereum.CallMsg{From: req.From, To: &to, Data: input})
	if err != nil {
		return nil, newError(EstimationError, req.Method, err)
	}
	if req.GasLimit != 0 {
		gas = req.GasLimit
	}
	log.Debugf("contract - send %s from %s gas %d", req.Method, req.From.Hex(), gas)
	hash, err := b.backend.SendTransaction(ctx, provider.TxRequest{From: req.From, To: &to, Gas: gas, Data: input})
	if err != nil {
		return nil, newError(SubmissionError, req.Method, err)
	}
	receipt, err := b.waitForReceipt(ctx, hash)
	if err != nil {
		e := newError(SubmissionError, req.Method, err)
		e.TxHash = hash
		return nil, e
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &Error{
			Kind:   SubmissionError,
			Method: req.Method,
			Reason: "transaction " + hash.Hex() + " failed",
			TxHash: hash,
		}
	}
	return receipt, nil
}

func (b *Binding) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		r, err := b.backend.TransactionReceipt(ctx, hash)
		if err == nil && r != nil {
			return r, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "receipt of %s", hash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "wait receipt of %s", hash.Hex())
		case <-ticker.C:
		}
	}
}
