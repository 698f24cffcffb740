// Package action maps the mini app's triggers to wallet sessions and contract operations.
package action

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"moff.io/wemove/internal/account"
	"moff.io/wemove/internal/contract"
	"moff.io/wemove/internal/host"
	"moff.io/wemove/internal/session"
	"moff.io/wemove/pkg/concurrent"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrBusy         = errors.New("another action is in progress")
	ErrEmptyInput   = errors.New("empty input")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Sessions is the session lifecycle the controller drives, implemented by session.Manager.
type Sessions interface {
	Connect(ctx context.Context) (*session.Session, error)
	Disconnect(s *session.Session) error
	OnAccountsChanged(fn session.Handler) func()
	OnChainChanged(fn session.Handler) func()
	OnDisconnect(fn session.Handler) func()
}

type Surfaces struct {
	Button  host.MainButton
	Alerter host.Alerter
	View    host.View
	App     host.App
}

type Options struct {
	ContractAddress common.Address
	// LoadArtifact is called on every connect.
	LoadArtifact        func() (abi.ABI, error)
	ReceiptPollInterval time.Duration
}

type Controller struct {
	sessions Sessions
	ui       Surfaces
	opts     Options
	// 同一时间只允许一个合约操作
	actions concurrent.Limiter

	mu          sync.Mutex
	state       State
	session     *session.Session
	wemove      *contract.WeMove
	unsubscribe []func()
	// 账户视图刷新中,操作按钮不可用
	refreshing int
}

func NewController(sessions Sessions, ui Surfaces, opts Options) *Controller {
	return &Controller{
		sessions: sessions,
		ui:       ui,
		opts:     opts,
		actions:  concurrent.NewLimiter(1),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start readies the host app and shows the connect button. It is called again when the
// app is reopened after a disconnect.
func (c *Controller) Start() {
	c.ui.App.Expand()
	c.ui.App.Ready()
	c.ui.Button.SetText(c.label())
	c.ui.Button.OnClick(c.onMainButton)
	c.ui.Button.Show()
	c.ui.Button.Enable()
}

func (c *Controller) label() string {
	if c.State() == Connected {
		return DisconnectLabel
	}
	return ConnectLabel
}

func (c *Controller) onMainButton(ctx context.Context) {
	switch c.State() {
	case Disconnected:
		c.connect(ctx)
	case Connected:
		c.disconnect()
	default:
		log.Debugf("action - main button ignored while %v", c.State())
	}
}

func (c *Controller) connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	c.mu.Unlock()

	c.ui.Button.Disable()
	s, err := c.sessions.Connect(ctx)
	if err != nil {
		c.connectFailed(err)
		return
	}
	c.ui.Button.ShowProgress()

	unsubscribe := []func(){
		c.sessions.OnAccountsChanged(c.onChanged),
		c.sessions.OnChainChanged(c.onChanged),
		c.sessions.OnDisconnect(c.onWalletDisconnect),
	}
	parsed, err := c.opts.LoadArtifact()
	if err != nil {
		log.Errorf("action - load contract artifact:%v", err)
		for _, fn := range unsubscribe {
			fn()
		}
		if err := c.sessions.Disconnect(s); err != nil {
			log.Warnf("action - disconnect after artifact failure:%v", err)
		}
		c.ui.Button.HideProgress()
		c.connectFailed(&session.ConnectionError{Reason: err.Error(), Err: err})
		return
	}
	wemove := contract.NewWeMove(contract.Bind(parsed, c.opts.ContractAddress, s.Provider,
		contract.WithReceiptPollInterval(c.opts.ReceiptPollInterval)))

	c.mu.Lock()
	c.session = s
	c.wemove = wemove
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.refresh(ctx, s)
	c.renderUsers(ctx, s, wemove)

	c.mu.Lock()
	if c.session != s || c.state != Connecting {
		// 连接过程中钱包已断开
		c.mu.Unlock()
		log.Infof("action - session %s ended while connecting", s.ID)
		return
	}
	c.state = Connected
	c.mu.Unlock()
	c.ui.Button.SetText(DisconnectLabel)
	c.ui.Button.Enable()
	c.ui.Button.HideProgress()
}

func (c *Controller) connectFailed(err error) {
	c.mu.Lock()
	c.state = Disconnected
	c.mu.Unlock()
	c.ui.Button.Enable()
	c.ui.Alerter.Alert(userMessage(err))
}

// refresh re-reads the account view. The connected view stays hidden when it fails.
func (c *Controller) refresh(ctx context.Context, s *session.Session) {
	c.mu.Lock()
	c.refreshing++
	c.mu.Unlock()
	c.ui.View.SetConnectedVisible(false)
	c.ui.View.SetActionsEnabled(false)
	c.ui.Button.Disable()
	defer c.ui.Button.Enable()
	defer c.ui.View.SetActionsEnabled(true)
	defer func() {
		c.mu.Lock()
		c.refreshing--
		c.mu.Unlock()
	}()

	state, err := account.Refresh(ctx, s.Provider)
	if err != nil {
		log.Warnf("action - refresh accounts:%v", err)
		c.ui.Alerter.Alert(userMessage(err))
		return
	}
	rows := make([]host.AccountRow, 0, len(state.Rows))
	for _, r := range state.Rows {
		rows = append(rows, host.AccountRow{Address: r.Address.Hex(), Balance: r.Balance})
	}
	selected := ""
	if state.Selected != nil {
		selected = state.Selected.Hex()
	}
	c.ui.View.RenderAccounts(selected, rows)
	c.ui.View.SetConnectedVisible(true)
}

func (c *Controller) renderUsers(ctx context.Context, s *session.Session, wemove *contract.WeMove) {
	from, _ := s.Account()
	users, err := wemove.Users(ctx, from)
	if err != nil {
		log.Warnf("action - read users:%v", err)
		c.ui.Alerter.Alert(userMessage(err))
		return
	}
	rows := make([]host.UserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, host.UserRow{Name: u.Name, Calls: bigString(u.Calls)})
	}
	c.ui.View.RenderUsers(rows)
}

func (c *Controller) onChanged(s *session.Session) {
	if !c.isCurrent(s) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	c.refresh(ctx, s)
}

func (c *Controller) onWalletDisconnect(s *session.Session) {
	if !c.isCurrent(s) {
		return
	}
	c.teardown()
	c.ui.Button.SetText(ConnectLabel)
	c.ui.Button.HideProgress()
	c.ui.Button.Enable()
	c.ui.Alerter.Alert(MsgWalletGone)
}

func (c *Controller) disconnect() {
	c.teardown()
	c.ui.Button.Hide()
	c.ui.App.Close()
}

// Stop ends the current session, if any, when the service shuts down.
func (c *Controller) Stop() {
	if c.State() == Disconnected {
		return
	}
	c.teardown()
}

func (c *Controller) teardown() {
	c.mu.Lock()
	s := c.session
	unsubscribe := c.unsubscribe
	c.session = nil
	c.wemove = nil
	c.unsubscribe = nil
	c.state = Disconnected
	c.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	if err := c.sessions.Disconnect(s); err != nil {
		log.Warnf("action - disconnect:%v", err)
	}
	c.ui.View.SetConnectedVisible(false)
}

func (c *Controller) isCurrent(s *session.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session == s
}

// LogName records the trimmed field value on chain. The field is cleared only on success.
func (c *Controller) LogName(ctx context.Context, field host.TextField) error {
	name := strings.TrimSpace(field.Value())
	if name == "" {
		c.ui.Alerter.Alert(MsgEmptyInput)
		return ErrEmptyInput
	}
	return c.run(ctx, "log", func(ctx context.Context, w *contract.WeMove, from common.Address) (string, error) {
		if _, err := w.Log(ctx, from, name); err != nil {
			return "", err
		}
		field.Clear()
		return MsgLogged, nil
	})
}

func (c *Controller) Increment(ctx context.Context) error {
	return c.run(ctx, "call", func(ctx context.Context, w *contract.WeMove, from common.Address) (string, error) {
		if _, err := w.Increment(ctx, from); err != nil {
			return "", err
		}
		return MsgIncremented, nil
	})
}

func (c *Controller) CheckName(ctx context.Context) error {
	return c.run(ctx, "checkMyName", func(ctx context.Context, w *contract.WeMove, from common.Address) (string, error) {
		name, err := w.CheckMyName(ctx, from)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(MsgLoggedName, name), nil
	})
}

func (c *Controller) CheckCalls(ctx context.Context) error {
	return c.run(ctx, "checkMyNumberOfCalls", func(ctx context.Context, w *contract.WeMove, from common.Address) (string, error) {
		calls, err := w.CheckMyNumberOfCalls(ctx, from)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(MsgCalls, bigString(calls)), nil
	})
}

type operation func(ctx context.Context, w *contract.WeMove, from common.Address) (string, error)

func (c *Controller) run(ctx context.Context, name string, op operation) error {
	c.mu.Lock()
	state, s, w, refreshing := c.state, c.session, c.wemove, c.refreshing > 0
	c.mu.Unlock()
	if state != Connected || s == nil || w == nil {
		c.ui.Alerter.Alert(MsgNotConnected)
		return ErrNotConnected
	}
	if refreshing {
		return ErrBusy
	}
	from, ok := s.Account()
	if !ok {
		c.ui.Alerter.Alert(MsgNotConnected)
		return ErrNotConnected
	}
	if !c.actions.TryAdd() {
		return ErrBusy
	}
	defer c.actions.Done()

	c.ui.Button.ShowProgress()
	msg, err := op(ctx, w, from)
	c.ui.Button.HideProgress()
	if err != nil {
		log.Warnf("action - %s from %s:%v", name, from.Hex(), err)
		c.ui.Alerter.Alert(userMessage(err))
		return err
	}
	c.ui.Alerter.Alert(msg)
	return nil
}

type userFacing interface {
	UserMessage() string
}

func userMessage(err error) string {
	var u userFacing
	if errors.As(err, &u) {
		return u.UserMessage()
	}
	return err.Error()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
