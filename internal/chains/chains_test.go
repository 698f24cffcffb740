package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/wemove/internal/config"
	"moff.io/wemove/pkg/errors"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(map[int64]config.Chain{
		10001: {RPC: "https://moeing.tech:9545"},
		1:     {Name: "mainnet", RPC: "https://eth.example"},
	})

	c, err := r.Lookup(10001)
	require.NoError(t, err)
	assert.Equal(t, "0x2711", c.IDHex)
	assert.Equal(t, "smartbch testnet", c.Name)
	assert.Equal(t, "https://moeing.tech:9545", c.RPC)

	_, err = r.Lookup(56)
	assert.True(t, errors.Is(err, ErrUnknownChain))

	assert.Equal(t, "mainnet", r.Name(1))
	assert.Equal(t, "bsc", r.Name(56))
	assert.Equal(t, "chain 7", r.Name(7))

	arr := r.Array()
	require.Len(t, arr, 2)
	assert.Equal(t, int64(1), arr[0].ID)
}
