package starter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"moff.io/wemove/internal/config"
)

type component struct {
	name    string
	events  *[]string
	applied *config.Configuration
}

func (c *component) Start(ctx context.Context) { *c.events = append(*c.events, "start:"+c.name) }
func (c *component) Stop()                     { *c.events = append(*c.events, "stop:"+c.name) }

type configurable struct {
	component
}

func (c *configurable) Apply(cfg *config.Configuration) {
	c.applied = cfg
	*c.events = append(*c.events, "apply:"+c.name)
}

func TestStartAndStopOrder(t *testing.T) {
	var events []string
	a := &component{name: "a", events: &events}
	b := &configurable{component{name: "b", events: &events}}
	cfg := &config.Configuration{LogLevel: 2}

	StartWith(context.Background(), cfg, a, b)
	Stop(a, b)

	assert.Equal(t, []string{"start:a", "apply:b", "start:b", "stop:b", "stop:a"}, events)
	assert.Same(t, cfg, b.applied)
}

func TestStartWithoutConfig(t *testing.T) {
	var events []string
	b := &configurable{component{name: "b", events: &events}}
	StartWith(context.Background(), nil, b)
	assert.Equal(t, []string{"start:b"}, events)
}
