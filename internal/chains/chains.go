package chains

import (
	"fmt"
	"sort"

	"moff.io/wemove/internal/config"
	"moff.io/wemove/pkg/errors"
)

type Blockchain struct {
	ID    int64
	IDHex string
	Name  string
	RPC   string
}

var (
	// 常见链的名称，RPC地址由配置提供
	knownNames = map[int64]string{
		1:        "eth",
		5:        "goerli",
		56:       "bsc",
		97:       "bsc testnet",
		137:      "polygon",
		80001:    "mumbai",
		10000:    "smartbch",
		10001:    "smartbch testnet",
		43114:    "avalanche",
		11155111: "sepolia",
	}
)

// ErrUnknownChain is returned for chain ids without a configured RPC endpoint.
var ErrUnknownChain = errors.New("unknown chain")

// Registry resolves chain ids to their configured endpoints.
type Registry struct {
	mapping map[int64]*Blockchain
}

func NewRegistry(chains map[int64]config.Chain) *Registry {
	r := &Registry{mapping: make(map[int64]*Blockchain, len(chains))}
	for id, c := range chains {
		name := c.Name
		if name == "" {
			name = knownNames[id]
		}
		r.mapping[id] = &Blockchain{
			ID:    id,
			IDHex: fmt.Sprintf("0x%x", id),
			Name:  name,
			RPC:   c.RPC,
		}
	}
	return r
}

func (r *Registry) Lookup(id int64) (*Blockchain, error) {
	c, ok := r.mapping[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownChain, "chain id %d", id)
	}
	return c, nil
}

// Array returns configured chains ordered by id.
func (r *Registry) Array() []*Blockchain {
	out := make([]*Blockchain, 0, len(r.mapping))
	for _, c := range r.mapping {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Name returns a display name for any chain id, configured or not.
func (r *Registry) Name(id int64) string {
	if c, ok := r.mapping[id]; ok && c.Name != "" {
		return c.Name
	}
	if name, ok := knownNames[id]; ok {
		return name
	}
	return fmt.Sprintf("chain %d", id)
}
