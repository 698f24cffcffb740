package session

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/atomic"
	"moff.io/wemove/internal/provider"
	"moff.io/wemove/pkg/common"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

var (
	ErrConnecting = errors.New("connection already in progress")
	ErrNoAccounts = errors.New("no wallet accounts acquired")
)

const syncTimeout = 30 * time.Second

// Connector resolves the provider a session is opened with, usually the wallet modal.
type Connector interface {
	Connect(ctx context.Context) (provider.Provider, error)
	ClearCachedProvider()
}

// Handler receives the session after its account and chain id were re-read from the provider.
type Handler func(s *Session)

type Manager struct {
	connector  Connector
	connecting atomic.Bool

	mu      sync.Mutex
	current *Session
	sub     event.Subscription

	accountsChanged handlers
	chainChanged    handlers
	disconnected    handlers
}

func NewManager(connector Connector) *Manager {
	return &Manager{connector: connector}
}

// Current returns the active session or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Connect opens a session. An already active session is returned unchanged.
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	if s := m.Current(); s != nil {
		return s, nil
	}
	if !m.connecting.CAS(false, true) {
		return nil, newConnectionError(ErrConnecting)
	}
	defer m.connecting.Store(false)

	p, err := m.connector.Connect(ctx)
	if err != nil {
		log.Warnf("session - connect provider:%v", err)
		return nil, newConnectionError(err)
	}
	s := &Session{ID: common.NewCutUUIDString(), Provider: p}
	// 先订阅再首次查询，查询期间的变更事件留在 events 中
	events := make(chan provider.Event, 16)
	sub := p.SubscribeEvents(events)
	if err := m.load(ctx, s); err != nil {
		sub.Unsubscribe()
		closeProvider(s)
		return nil, newConnectionError(err)
	}
	if _, ok := s.Account(); !ok {
		sub.Unsubscribe()
		closeProvider(s)
		return nil, newConnectionError(ErrNoAccounts)
	}

	m.mu.Lock()
	m.current = s
	m.sub = sub
	m.mu.Unlock()
	go m.forward(s, events, sub)

	account, _ := s.Account()
	log.Infof("session - %s connected account %s on chain %v", s.ID, common.ShortHex(account.Hex()), s.ChainID())
	return s, nil
}

// Disconnect closes the session's provider once and forgets the cached wallet choice.
// Calling it again, or with a session that is no longer current, does nothing.
func (m *Manager) Disconnect(s *Session) error {
	if s == nil {
		return nil
	}
	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return nil
	}
	m.current = nil
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	err := closeProvider(s)
	m.connector.ClearCachedProvider()
	log.Infof("session - %s disconnected", s.ID)
	return err
}

// OnAccountsChanged registers fn and returns its unsubscribe function.
func (m *Manager) OnAccountsChanged(fn Handler) func() {
	return m.accountsChanged.add(fn)
}

func (m *Manager) OnChainChanged(fn Handler) func() {
	return m.chainChanged.add(fn)
}

// OnDisconnect is called when the wallet ends the session by itself.
func (m *Manager) OnDisconnect(fn Handler) func() {
	return m.disconnected.add(fn)
}

func (m *Manager) load(ctx context.Context, s *Session) error {
	accounts, err := s.Provider.Accounts(ctx)
	if err != nil {
		return errors.Wrap(err, "query accounts")
	}
	chainID, err := s.Provider.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "query chain id")
	}
	s.set(accounts, chainID)
	return nil
}

// forward 单个会话的事件转发，取消订阅后退出
func (m *Manager) forward(s *Session, events <-chan provider.Event, sub event.Subscription) {
	for {
		select {
		case e := <-events:
			m.handle(s, e)
		case <-sub.Err():
			return
		}
	}
}

func (m *Manager) handle(s *Session, e provider.Event) {
	log.Debugf("session - %s provider event %v", s.ID, e.Kind)
	var hs *handlers
	switch e.Kind {
	case provider.AccountsChanged:
		hs = &m.accountsChanged
	case provider.ChainChanged:
		hs = &m.chainChanged
	case provider.Disconnected:
		for _, fn := range m.disconnected.list() {
			fn(s)
		}
		return
	default:
		return
	}
	// payload is advisory, always re-read
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	err := m.load(ctx, s)
	cancel()
	if err != nil {
		log.Warnf("session - %s sync after %v:%v", s.ID, e.Kind, err)
	}
	for _, fn := range hs.list() {
		fn(s)
	}
}

func closeProvider(s *Session) error {
	closer, ok := s.Provider.(io.Closer)
	if !ok {
		return nil
	}
	if !s.closed.CAS(false, true) {
		return nil
	}
	if err := closer.Close(); err != nil {
		return errors.WrapAndReport(err, "close provider")
	}
	return nil
}

type handlers struct {
	mu   sync.Mutex
	next int
	m    map[int]Handler
}

func (h *handlers) add(fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m == nil {
		h.m = make(map[int]Handler)
	}
	id := h.next
	h.next++
	h.m[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.m, id)
		h.mu.Unlock()
	}
}

// list returns handlers in registration order.
func (h *handlers) list() []Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.m))
	for id := range h.m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.m[id])
	}
	return out
}
