// Command api-server serves the grocery back-office REST API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	grocery "github.com/xenking/grocery-backoffice/internal/app"
)

func main() {
	// Configuration errors are reported before telemetry exporters start.
	cfg, err := grocery.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "api-server:", err)
		os.Exit(2)
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		return grocery.Run(ctx, lg.Named("api"), m, cfg)
	})
}
