package starter

import (
	"context"

	"moff.io/wemove/internal/config"
)

type Startable interface {
	Start(ctx context.Context)
}

type Configurable interface {
	Apply(*config.Configuration)
}

func Start(ctx context.Context, elems ...Startable) {
	StartWith(ctx, config.Global, elems...)
}

// StartWith applies cfg to configurable elements before starting them in order.
func StartWith(ctx context.Context, cfg *config.Configuration, elems ...Startable) {
	for _, ele := range elems {
		if configurable, ok := ele.(Configurable); ok && cfg != nil {
			configurable.Apply(cfg)
		}
		ele.Start(ctx)
	}
}

type Stopable interface {
	Stop()
}

// Stop stops elements in reverse order.
func Stop(elems ...Stopable) {
	for i := len(elems) - 1; i >= 0; i-- {
		elems[i].Stop()
	}
}
