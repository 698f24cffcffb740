package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"moff.io/wemove/internal/action"
	"moff.io/wemove/internal/chains"
	"moff.io/wemove/internal/config"
	"moff.io/wemove/internal/contract"
	"moff.io/wemove/internal/host"
	"moff.io/wemove/internal/http"
	"moff.io/wemove/internal/modal"
	"moff.io/wemove/internal/session"
	"moff.io/wemove/internal/starter"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

func main() {
	log.Infof("Starting app")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	cfg := config.Global
	log.SetLevel(cfg.LogLevel)
	if cfg.SentryDSN != "" {
		if err := errors.NewSentryReporter(cfg.SentryDSN, time.Minute); err != nil {
			log.Errorf("init sentry reporter:%v", err)
		}
	}
	defer errors.Flush(2 * time.Second)

	registry := chains.NewRegistry(cfg.Chains)
	for _, c := range registry.Array() {
		log.Infof("chain %d %s rpc %s", c.ID, c.Name, c.RPC)
	}

	shell := host.NewShell()
	walletModal := modal.New([]modal.Option{
		modal.NewWalletConnectOption(cfg.Wallet.WalletConnect, registry, shell),
		modal.NewNodeOption(cfg.Wallet.Node, registry),
	}, cfg.Wallet.Default, cfg.Wallet.CacheProvider, nil)
	manager := session.NewManager(walletModal)

	ctrl := action.NewController(manager, action.Surfaces{
		Button:  shell,
		Alerter: shell,
		View:    shell,
		App:     shell,
	}, action.Options{
		ContractAddress: common.HexToAddress(cfg.Contract.Address),
		LoadArtifact: func() (abi.ABI, error) {
			return contract.LoadArtifact(cfg.Contract.ABIPath)
		},
		ReceiptPollInterval: cfg.Contract.ReceiptPollInterval,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	starter.Start(ctx, http.NewServer(shell, ctrl))
	ctrl.Start()

	<-ctx.Done()
	log.Infof("Shutting down")
	starter.Stop(ctrl)
}
