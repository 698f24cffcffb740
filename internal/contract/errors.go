package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tidwall/gjson"
	"moff.io/wemove/pkg/errors"
)

type Kind int

const (
	// EstimationError 估算gas失败，交易不会被提交
	EstimationError Kind = iota + 1
	// SubmissionError 交易提交失败或者回执状态为失败
	SubmissionError
	// ReadCallError 只读调用失败或返回值无法解码
	ReadCallError
)

func (k Kind) String() string {
	switch k {
	case EstimationError:
		return "estimation"
	case SubmissionError:
		return "submission"
	case ReadCallError:
		return "read call"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind   Kind
	Method string
	// Reason is the normalized, user facing failure text.
	Reason string
	// ABIMismatch marks return data that could not be decoded with the loaded ABI.
	ABIMismatch bool
	// TxHash is set once the wallet accepted the transaction.
	TxHash common.Hash
	Err    error
}

func newError(kind Kind, method string, err error) *Error {
	return &Error{Kind: kind, Method: method, Reason: Reason(err), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("contract %s %s: %s", e.Method, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) UserMessage() string {
	return e.Reason
}

// IsKind reports whether err is a contract error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// Reason extracts a human readable failure reason from a node or wallet error.
// A revert payload is decoded first, then a JSON object embedded in the message is
// searched for its "message" field. Anything else yields the raw message.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return "execution reverted: " + reason
		}
	}
	raw := err.Error()
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	embedded := raw[start : end+1]
	if !gjson.Valid(embedded) {
		return raw
	}
	msg := gjson.Get(embedded, "message")
	if msg.Type != gjson.String || msg.String() == "" {
		return raw
	}
	return msg.String()
}

func revertReason(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(b)
	if err != nil {
		return "", false
	}
	return reason, true
}
