package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/cluster"
	"github.com/jinford/docroute/internal/core/comparison"
	"github.com/jinford/docroute/internal/core/routing"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"
)

// ClassifyAction は文書を分類するコマンドのアクション
func ClassifyAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		res, err := app.Container.Analysis.Classify(ctx, cmd.String("doc"))
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	})
}

// CompareAction は2文書を比較するコマンドのアクション
// --async でも終了前にバックグラウンドの比較を待つため、記録は完了状態で残る
func CompareAction(ctx context.Context, cmd *cli.Command) error {
	opts := comparison.Options{
		Async:     cmd.Bool("async"),
		RequestID: uuid.NewString(),
	}
	if cmd.Bool("skip-requirements") {
		opts.IncludeRequirements = mo.Some(false)
	}
	if cmd.Bool("skip-semantic") {
		opts.IncludeSemantic = mo.Some(false)
	}

	return withApp(ctx, cmd, func(app *AppContext) error {
		rec, err := app.Container.Analysis.Compare(ctx, cmd.String("source"), cmd.String("target"), opts)
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
}

// RouteAction は文書を分類してルーティングするコマンドのアクション
func RouteAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		outcome, err := app.Container.Analysis.Route(ctx, cmd.String("doc"), routing.Options{
			DryRun:    cmd.Bool("dry-run"),
			RequestID: uuid.NewString(),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, outcome)
	})
}

// RoutingHistoryAction は文書のルーティング履歴を表示するコマンドのアクション
func RoutingHistoryAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		page, err := app.Container.Analysis.RoutingHistory(ctx, cmd.String("doc"), cmd.Int("limit"), cmd.String("page-token"))
		if err != nil {
			return err
		}
		return printJSON(cmd, page)
	})
}

// ClusterAction は文書集合をクラスタリングするコマンドのアクション
func ClusterAction(ctx context.Context, cmd *cli.Command) error {
	opts := cluster.Options{RequestID: uuid.NewString()}
	if cmd.IsSet("k") {
		opts.K = mo.Some(cmd.Int("k"))
	}
	if cmd.IsSet("seed") {
		opts.Seed = mo.Some(cmd.Uint64("seed"))
	}

	return withApp(ctx, cmd, func(app *AppContext) error {
		res, err := app.Container.Analysis.Cluster(ctx, cmd.StringSlice("doc"), opts)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	})
}
