package file

import (
	"context"

	"github.com/gobeaver/reskit"
)

func init() {
	reskit.RegisterFallback("file", func(ctx context.Context, cfg *reskit.Config, resource string) (reskit.Opener, error) {
		return New(resource), nil
	})
}
