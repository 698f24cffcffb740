package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load("config.yml")
	require.NoError(t, err)

	assert.Equal(t, "0x64bd5A3F0f426Af103E250df611f2fF0b9706a63", c.Contract.Address)
	assert.Equal(t, 2*time.Second, c.Contract.ReceiptPollInterval)
	assert.Equal(t, "https://moeing.tech:9545", c.Chains[10001].RPC)
	assert.Equal(t, "walletconnect", c.Wallet.Default)
	assert.Equal(t, int64(10001), c.Wallet.WalletConnect.ChainID)
	assert.False(t, c.Wallet.CacheProvider)
}

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
contract:
  address: "0x01"
  abi_path: "abi.json"
`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTP.Address)
	assert.Equal(t, 5*time.Minute, c.HTTP.ActionTimeout)
	assert.Equal(t, 2*time.Second, c.Contract.ReceiptPollInterval)
	assert.Equal(t, 4*time.Second, c.Wallet.Node.PollInterval)
	assert.NotNil(t, c.Chains)
}

func TestParseValidates(t *testing.T) {
	_, err := Parse([]byte(`contract: {abi_path: "abi.json"}`))
	assert.EqualError(t, err, "contract.address not present")

	_, err = Parse([]byte(`
contract: {address: "0x01", abi_path: "abi.json"}
chains:
  1: {name: eth}
`))
	assert.EqualError(t, err, "chains.1.rpc not present")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadBrokenYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yml")
	require.NoError(t, os.WriteFile(path, []byte("contract: [\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
