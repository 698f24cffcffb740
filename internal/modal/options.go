package modal

import (
	"context"

	"moff.io/wemove/internal/chains"
	"moff.io/wemove/internal/config"
	"moff.io/wemove/internal/host"
	"moff.io/wemove/internal/provider"
	"moff.io/wemove/internal/walletconnect"
	"moff.io/wemove/pkg/errors"
)

const (
	WalletConnectOption = "walletconnect"
	NodeOption          = "node"
)

// NewWalletConnectOption pairs a fresh WalletConnect client on every connect. display
// shows the pairing QR code.
func NewWalletConnectOption(cfg config.WalletConnect, registry *chains.Registry, display host.QRDisplay) Option {
	return Option{
		Name: WalletConnectOption,
		Connect: func(ctx context.Context) (provider.Provider, error) {
			c := walletconnect.NewClient(walletconnect.Options{
				BridgeURL:   cfg.Bridge,
				ChainID:     cfg.ChainID,
				SignMessage: cfg.SignMessage,
				ReadTimeout: cfg.ReadTimeout,
				Description: "WeMove contract mini app",
			})
			session, err := c.ConnectWallet(ctx, display.DisplayQRCode)
			if err != nil {
				return nil, err
			}
			return provider.NewWalletConnect(session, registry, nil), nil
		},
	}
}

// NewNodeOption uses the accounts unlocked on the configured node's chain.
func NewNodeOption(cfg config.Node, registry *chains.Registry) Option {
	return Option{
		Name: NodeOption,
		Connect: func(ctx context.Context) (provider.Provider, error) {
			chain, err := registry.Lookup(cfg.ChainID)
			if err != nil {
				return nil, errors.Wrap(err, "node provider")
			}
			return provider.DialNode(ctx, chain.RPC, cfg.PollInterval)
		},
	}
}
