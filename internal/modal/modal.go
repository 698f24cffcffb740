// Package modal picks the wallet provider a session is opened with.
package modal

import (
	"context"
	"sync"

	"moff.io/wemove/internal/provider"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

// ErrCancelled is returned when no provider was chosen.
var ErrCancelled = errors.New("Modal closed by user")

// Option is a selectable wallet provider.
type Option struct {
	Name    string
	Connect func(ctx context.Context) (provider.Provider, error)
}

// Chooser asks the user to pick one of names. An empty result means cancelled.
type Chooser func(ctx context.Context, names []string) (string, error)

type Modal struct {
	options       []Option
	chooser       Chooser
	cacheProvider bool

	mu     sync.Mutex
	cached string
}

// New returns a modal over options. Without a chooser the option named defaultName is
// always picked.
func New(options []Option, defaultName string, cacheProvider bool, chooser Chooser) *Modal {
	if chooser == nil {
		chooser = func(context.Context, []string) (string, error) { return defaultName, nil }
	}
	return &Modal{options: options, chooser: chooser, cacheProvider: cacheProvider}
}

// Connect resolves a provider, reusing the cached choice when caching is enabled.
func (m *Modal) Connect(ctx context.Context) (provider.Provider, error) {
	name := m.CachedProvider()
	if name == "" {
		names := make([]string, 0, len(m.options))
		for _, o := range m.options {
			names = append(names, o.Name)
		}
		chosen, err := m.chooser(ctx, names)
		if err != nil {
			return nil, err
		}
		if chosen == "" {
			return nil, ErrCancelled
		}
		name = chosen
	}
	opt, ok := m.option(name)
	if !ok {
		return nil, errors.Errorf("unknown wallet provider %q", name)
	}
	log.Debugf("modal - connecting with %s", name)
	p, err := opt.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if m.cacheProvider {
		m.mu.Lock()
		m.cached = name
		m.mu.Unlock()
	}
	return p, nil
}

func (m *Modal) CachedProvider() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached
}

// ClearCachedProvider forgets the cached choice so the next connect asks again.
func (m *Modal) ClearCachedProvider() {
	m.mu.Lock()
	m.cached = ""
	m.mu.Unlock()
}

func (m *Modal) option(name string) (Option, bool) {
	for _, o := range m.options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}
