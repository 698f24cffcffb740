package config

import (
	"flag"
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"
	"moff.io/wemove/pkg/errors"
	"moff.io/wemove/pkg/log"
)

// Configuration struct
type Configuration struct {
	LogLevel  int             `yaml:"log_level"`
	SentryDSN string          `yaml:"sentry_dsn"`
	HTTP      HTTP            `yaml:"http"`
	Contract  Contract        `yaml:"contract"`
	Chains    map[int64]Chain `yaml:"chains"`
	Wallet    Wallet          `yaml:"wallet"`
}

type HTTP struct {
	Address string `yaml:"address"`
	// ActionTimeout bounds every trigger started from the HTTP surface.
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

type Contract struct {
	Address             string        `yaml:"address"`
	ABIPath             string        `yaml:"abi_path"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval"`
}

// Chain is an RPC endpoint keyed by chain id in Configuration.Chains.
type Chain struct {
	Name string `yaml:"name"`
	RPC  string `yaml:"rpc"`
}

type Wallet struct {
	// Default names the provider option used when no selection is made.
	Default       string        `yaml:"default"`
	CacheProvider bool          `yaml:"cache_provider"`
	WalletConnect WalletConnect `yaml:"walletconnect"`
	Node          Node          `yaml:"node"`
}

type WalletConnect struct {
	// Bridge is chosen at random among the public bridges when empty.
	Bridge string `yaml:"bridge"`
	// SignMessage, when set, must be signed by the wallet before the session is accepted.
	SignMessage string        `yaml:"sign_message"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ChainID     int64         `yaml:"chain_id"`
}

// Node configures the provider whose accounts are managed by the RPC node itself.
type Node struct {
	ChainID      int64         `yaml:"chain_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

const (
	defaultHTTPAddress         = ":8080"
	defaultActionTimeout       = 5 * time.Minute
	defaultReceiptPollInterval = 2 * time.Second
	defaultWCReadTimeout       = 5 * time.Minute
	defaultNodePollInterval    = 4 * time.Second
	defaultWalletOption        = "walletconnect"
)

func (c *Configuration) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = defaultHTTPAddress
	}
	if c.HTTP.ActionTimeout <= 0 {
		c.HTTP.ActionTimeout = defaultActionTimeout
	}
	if c.Contract.ReceiptPollInterval <= 0 {
		c.Contract.ReceiptPollInterval = defaultReceiptPollInterval
	}
	if c.Wallet.Default == "" {
		c.Wallet.Default = defaultWalletOption
	}
	if c.Wallet.WalletConnect.ReadTimeout <= 0 {
		c.Wallet.WalletConnect.ReadTimeout = defaultWCReadTimeout
	}
	if c.Wallet.Node.PollInterval == 0 {
		c.Wallet.Node.PollInterval = defaultNodePollInterval
	}
	if c.Chains == nil {
		c.Chains = map[int64]Chain{}
	}
}

func (c *Configuration) validate() error {
	if c.Contract.Address == "" {
		return errors.New("contract.address not present")
	}
	if c.Contract.ABIPath == "" {
		return errors.New("contract.abi_path not present")
	}
	for id, chain := range c.Chains {
		if chain.RPC == "" {
			return errors.Errorf("chains.%d.rpc not present", id)
		}
	}
	return nil
}

// Load reads, defaults and validates the yaml configuration at path.
func Load(path string) (*Configuration, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("file %s does not exist", path)
		}
		return nil, errors.Wrap(err, "read config file")
	}
	return Parse(dat)
}

// Parse decodes yaml configuration content.
func Parse(dat []byte) (*Configuration, error) {
	t := Configuration{}
	if err := yaml.Unmarshal(dat, &t); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	t.applyDefaults()
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	log.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := Load(*configFilePath)
	if err != nil {
		log.Fatalf("fail to load config: %v", err)
	}
	Global = globalConfig
}
