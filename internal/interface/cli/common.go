package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jinford/docroute/internal/platform/config"
	"github.com/jinford/docroute/internal/platform/container"
	"github.com/jinford/docroute/internal/platform/logger"
	"github.com/urfave/cli/v3"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.Container
}

// NewAppContext は設定ファイルを読み込み、コンテナを作成する
// ログは logOutput に出し、標準出力はコマンドの結果だけにする
func NewAppContext(ctx context.Context, envFile string, logOutput io.Writer) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.Log.SlogLevel(),
		Format: cfg.Log.Format,
		Output: logOutput,
	})

	cont, err := container.New(ctx, cfg, container.WithContainerLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}

	return &AppContext{Config: cfg, Container: cont}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// withApp は AppContext を初期化してから fn を実行する
func withApp(ctx context.Context, cmd *cli.Command, fn func(app *AppContext) error) error {
	app, err := NewAppContext(ctx, cmd.String("env"), cmd.Root().ErrWriter)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// printJSON は結果を整形済み JSON で標準出力に書き出す
func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
