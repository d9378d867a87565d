package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/aknr/ocrspot/cmd/ocrspot/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "ocrspot",
		Usage: "スキャンドキュメントの OCR 変換を複数ワーカーで協調処理するシステム",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "入力ドキュメントを台帳に同期",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.SyncAction,
			},
			{
				Name:  "run",
				Usage: "ワーカーループを起動",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "OCR の言語指定（省略時は環境変数またはデフォルトの jpn+eng）",
					},
					&cli.IntFlag{
						Name:  "max-iterations",
						Usage: "処理するジョブ数の上限（0 は無制限）",
						Value: 0,
					},
					&cli.BoolFlag{
						Name:  "step",
						Usage: "各ジョブの処理前に Enter の入力を待つ",
					},
					&cli.StringFlag{
						Name:  "notify-file",
						Usage: "進捗通知を記録するファイルパス",
					},
				},
				Action: commands.RunAction,
			},
			{
				Name:  "reset",
				Usage: "滞留した claimed を pending に戻す",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.DurationFlag{
						Name:  "stale-threshold",
						Usage: "claimed をクラッシュとみなす経過時間（省略時は環境変数またはデフォルトの1h）",
					},
				},
				Action: commands.ResetAction,
			},
			{
				Name:  "status",
				Usage: "台帳の進捗を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.StatusAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		// 割り込みによる停止は慣例に従い 130 で終了します
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(130)
		}
		log.Fatal(err)
	}
}
