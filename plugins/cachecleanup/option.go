package cachecleanup

import "github.com/bft-labs/modelhost/pkg/modelhost"

// WithCacheCleanup returns a modelhost Option that bounds the model cache.
//
// Usage:
//
//	h, err := modelhost.New(cfg,
//	    cachecleanup.WithCacheCleanup(cachecleanup.Config{
//	        HighWatermark: 4 << 30,
//	        LowWatermark:  3 << 30,
//	    }),
//	)
func WithCacheCleanup(cfg Config) modelhost.Option {
	return modelhost.WithPlugin(New(cfg))
}
