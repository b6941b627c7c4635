package cli

import (
	"context"

	"github.com/jinford/docroute/internal/core/record"
	"github.com/urfave/cli/v3"
)

// RecordShowAction は解析記録を表示するコマンドのアクション
func RecordShowAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		rec, err := app.Container.Analysis.GetRecord(ctx, cmd.String("id"))
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
}

// RecordListAction は解析記録の一覧を表示するコマンドのアクション
func RecordListAction(ctx context.Context, cmd *cli.Command) error {
	filter, err := record.ParseFilter(cmd.String("kind"), cmd.String("document"), cmd.String("status"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	return withApp(ctx, cmd, func(app *AppContext) error {
		page, err := app.Container.Analysis.ListRecords(ctx, filter, cmd.String("page-token"))
		if err != nil {
			return err
		}
		return printJSON(cmd, page)
	})
}

// RecordPurgeAction は期限切れの解析記録を削除するコマンドのアクション
func RecordPurgeAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		n, err := app.Container.PurgeExpiredRecords(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]int64{"purged": n})
	})
}
