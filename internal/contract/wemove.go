package contract

import (
	"context"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// User is a row of WeMove.getUsers.
type User struct {
	Name  string
	Calls *big.Int
}

// WeMove is the typed view of the WeMove contract.
type WeMove struct {
	*Binding
}

func NewWeMove(b *Binding) *WeMove {
	return &WeMove{Binding: b}
}

func (w *WeMove) Users(ctx context.Context, from common.Address) ([]User, error) {
	out, err := w.Call(ctx, CallRequest{Method: "getUsers", From: from})
	if err != nil {
		return nil, err
	}
	users, ok := decodeUsers(out)
	if !ok {
		return nil, &Error{Kind: ReadCallError, Method: "getUsers", Reason: "unexpected getUsers return type", ABIMismatch: true}
	}
	return users, nil
}

// decodeUsers reads the (string name, uint256 calls)[] output, whatever struct type the
// abi package generated for the tuple.
func decodeUsers(out []interface{}) ([]User, bool) {
	if len(out) != 1 {
		return nil, false
	}
	v := reflect.ValueOf(out[0])
	if v.Kind() != reflect.Slice {
		return nil, false
	}
	users := make([]User, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		row := reflect.Indirect(v.Index(i))
		if row.Kind() != reflect.Struct {
			return nil, false
		}
		name, calls := row.FieldByName("Name"), row.FieldByName("Calls")
		if !name.IsValid() || !calls.IsValid() {
			return nil, false
		}
		n, ok := name.Interface().(string)
		if !ok {
			return nil, false
		}
		c, ok := calls.Interface().(*big.Int)
		if !ok {
			return nil, false
		}
		users = append(users, User{Name: n, Calls: c})
	}
	return users, true
}

func (w *WeMove) Log(ctx context.Context, from common.Address, name string) (*types.Receipt, error) {
	return w.Send(ctx, CallRequest{Method: "log", Args: []interface{}{name}, From: from})
}

// Increment 调用合约的 call()，增加调用者与合约交互的次数
func (w *WeMove) Increment(ctx context.Context, from common.Address) (*types.Receipt, error) {
	return w.Send(ctx, CallRequest{Method: "call", From: from})
}

func (w *WeMove) CheckMyName(ctx context.Context, from common.Address) (string, error) {
	out, err := w.Call(ctx, CallRequest{Method: "checkMyName", From: from})
	if err != nil {
		return "", err
	}
	name, ok := out[0].(string)
	if !ok {
		return "", &Error{Kind: ReadCallError, Method: "checkMyName", Reason: "unexpected checkMyName return type", ABIMismatch: true}
	}
	return name, nil
}

func (w *WeMove) CheckMyNumberOfCalls(ctx context.Context, from common.Address) (*big.Int, error) {
	out, err := w.Call(ctx, CallRequest{Method: "checkMyNumberOfCalls", From: from})
	if err != nil {
		return nil, err
	}
	calls, ok := out[0].(*big.Int)
	if !ok {
		return nil, &Error{Kind: ReadCallError, Method: "checkMyNumberOfCalls", Reason: "unexpected checkMyNumberOfCalls return type", ABIMismatch: true}
	}
	return calls, nil
}
