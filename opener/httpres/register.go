package httpres

import (
	"context"

	"github.com/gobeaver/reskit"
)

func init() {
	factory := func(ctx context.Context, cfg *reskit.Config, resource string) (reskit.Opener, error) {
		return New(ctx, cfg, resource)
	}
	reskit.RegisterOpener("http", "http://", factory)
	reskit.RegisterOpener("https", "https://", factory)
}
