// Package cachefx provides an fx module wiring a cache into an application:
// the app's logger flows into the cache and Close is tied to shutdown.
package cachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/clockcache/clockcache/cache"
)

// Params holds the dependencies for constructing a cache.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// Module provides a cache.Cache[K, V] built from opt under the given
// module name. Unless opt.Logger is already set, the application's
// *zap.Logger is injected (named after the module); Close is appended to
// the fx lifecycle so the cache drains on shutdown.
//
// Apps caching several value types instantiate one module per type:
//
//	fx.New(
//	    fx.Provide(zap.NewProduction),
//	    cachefx.Module("sessions", cache.Options[string, Session]{MaxWeight: 100_000}),
//	    cachefx.Module("thumbnails", cache.Options[string, []byte]{
//	        MaxWeight: 256 << 20,
//	        Weigher:   cache.BytesWeigher[string],
//	    }),
//	    ...
//	)
func Module[K comparable, V any](name string, opt cache.Options[K, V]) fx.Option {
	return fx.Module(name,
		fx.Provide(func(p Params) cache.Cache[K, V] {
			if opt.Logger == nil {
				opt.Logger = p.Logger.Named(name)
			}
			c := cache.New(opt)
			p.Lifecycle.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return c.Close()
				},
			})
			return c
		}),
	)
}
