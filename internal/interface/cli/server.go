package cli

import (
	"context"

	"github.com/jinford/docroute/internal/interface/httpapi"
	"github.com/urfave/cli/v3"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		addr := app.Config.Server.Addr
		if cmd.IsSet("addr") {
			addr = cmd.String("addr")
		}

		handler := httpapi.NewHandler(app.Container.Analysis, httpapi.WithHandlerLogger(app.Logger()))
		server := httpapi.NewServer(addr, httpapi.NewRouter(handler),
			httpapi.WithServerLogger(app.Logger()),
			httpapi.WithShutdownTimeout(app.Config.Server.ShutdownTimeout),
		)
		return server.Run(ctx)
	})
}
