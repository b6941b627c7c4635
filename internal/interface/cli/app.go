// Package cli は docroute のコマンドラインインターフェースを定義する
package cli

import (
	"github.com/urfave/cli/v3"
)

// NewApp はルートコマンドを組み立てる
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "docroute",
		Usage: "文書の分類・比較・クラスタリングとルールベースのルーティング",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "環境変数ファイルパス",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "classify",
				Usage: "文書を分類",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "doc",
						Usage:    "文書ID",
						Required: true,
					},
				},
				Action: ClassifyAction,
			},
			{
				Name:  "compare",
				Usage: "2文書を比較",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "比較元の文書ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "比較先の文書ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "async",
						Usage: "バックグラウンドで比較し、処理中の記録をすぐに返す",
					},
					&cli.BoolFlag{
						Name:  "skip-requirements",
						Usage: "要件差分を計算しない",
					},
					&cli.BoolFlag{
						Name:  "skip-semantic",
						Usage: "意味比較を行わない",
					},
				},
				Action: CompareAction,
			},
			{
				Name:  "route",
				Usage: "文書を分類してルーティング",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "doc",
						Usage:    "文書ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "推奨のみ計算し、自動ルートを実行しない",
					},
				},
				Action: RouteAction,
			},
			{
				Name:  "history",
				Usage: "文書のルーティング履歴を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "doc",
						Usage:    "文書ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "表示件数",
					},
					&cli.StringFlag{
						Name:  "page-token",
						Usage: "前回の一覧で返されたページトークン",
					},
				},
				Action: RoutingHistoryAction,
			},
			{
				Name:  "cluster",
				Usage: "文書集合をクラスタリング",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "doc",
						Usage:    "文書ID（複数指定）",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "クラスタ数（省略時は文書数から決定）",
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "初期重心選択の乱数シード",
					},
				},
				Action: ClusterAction,
			},
			{
				Name:  "record",
				Usage: "解析記録コマンド",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "解析記録を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "id",
								Usage:    "記録ID",
								Required: true,
							},
						},
						Action: RecordShowAction,
					},
					{
						Name:  "list",
						Usage: "解析記録の一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "document",
								Usage: "文書IDで絞り込み",
							},
							&cli.StringFlag{
								Name:  "kind",
								Usage: "種類で絞り込み (classification/comparison/routing/clustering)",
							},
							&cli.StringFlag{
								Name:  "status",
								Usage: "状態で絞り込み (processing/completed/failed)",
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数",
							},
							&cli.StringFlag{
								Name:  "page-token",
								Usage: "前回の一覧で返されたページトークン",
							},
						},
						Action: RecordListAction,
					},
					{
						Name:   "purge",
						Usage:  "期限切れの解析記録を削除",
						Action: RecordPurgeAction,
					},
				},
			},
			{
				Name:  "rules",
				Usage: "ルーティングルールコマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "ルール一覧を表示",
						Action: RulesListAction,
					},
					{
						Name:  "import",
						Usage: "JSONファイルからルールを取り込む",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Usage:    "JSONファイルパス",
								Required: true,
							},
						},
						Action: RulesImportAction,
					},
				},
			},
			{
				Name:  "documents",
				Usage: "文書コマンド",
				Commands: []*cli.Command{
					{
						Name:  "import",
						Usage: "JSONファイルから文書を取り込む",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Usage:    "JSONファイルパス",
								Required: true,
							},
						},
						Action: DocumentsImportAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "サーバ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTPサーバを起動",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "addr",
								Usage: "待ち受けアドレス（省略時は HTTP_ADDR または :8080）",
							},
						},
						Action: ServerStartAction,
					},
				},
			},
		},
	}
}
