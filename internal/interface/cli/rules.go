package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jinford/docroute/internal/platform/container"
	"github.com/urfave/cli/v3"
)

// RulesListAction はルーティングルール一覧を表示するコマンドのアクション
func RulesListAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(app *AppContext) error {
		rules, err := app.Container.Analysis.Rules(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, rules)
	})
}

// RulesImportAction は JSON ファイルからルーティングルールを取り込むコマンドのアクション
func RulesImportAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rules, err := container.DecodeRules(f)
	if err != nil {
		return err
	}

	return withApp(ctx, cmd, func(app *AppContext) error {
		if err := app.Container.Analysis.ImportRules(ctx, rules); err != nil {
			return err
		}
		return printJSON(cmd, map[string]int{"imported": len(rules)})
	})
}

// DocumentsImportAction は JSON ファイルから文書を取り込むコマンドのアクション
func DocumentsImportAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := container.DecodeDocuments(f)
	if err != nil {
		return err
	}

	return withApp(ctx, cmd, func(app *AppContext) error {
		if err := app.Container.ImportDocuments(ctx, docs); err != nil {
			return err
		}
		return printJSON(cmd, map[string]int{"imported": len(docs)})
	})
}
