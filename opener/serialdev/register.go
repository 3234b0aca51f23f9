package serialdev

import (
	"context"
	"time"

	"github.com/gobeaver/reskit"
)

func init() {
	reskit.RegisterOpener("serial", "/dev/", func(ctx context.Context, cfg *reskit.Config, resource string) (reskit.Opener, error) {
		opts := []Option{}
		if cfg.SerialBaudRate > 0 {
			opts = append(opts, WithBaudRate(cfg.SerialBaudRate))
		}
		if cfg.SerialReadTimeoutMS > 0 {
			opts = append(opts, WithReadTimeout(time.Duration(cfg.SerialReadTimeoutMS)*time.Millisecond))
		}
		return New(resource, opts...), nil
	})
}
