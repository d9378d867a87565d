package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/aknr/ocrspot/pkg/notify"
	"github.com/aknr/ocrspot/pkg/orchestrator"
	"github.com/aknr/ocrspot/pkg/pipeline"
	"github.com/aknr/ocrspot/pkg/progress"
	"github.com/aknr/ocrspot/pkg/queue"
)

// RunAction はワーカーループを起動するコマンドのアクション
func RunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	language := cmd.String("language")
	maxIterations := cmd.Int("max-iterations")
	stepMode := cmd.Bool("step")
	notifyFile := cmd.String("notify-file")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	if language == "" {
		language = cfg.OCR.Language
	}

	coordinator := queue.NewCoordinator(appCtx.Table, queue.Config{
		SampleSize: cfg.Worker.SampleSize,
	}, cfg.Worker.ID, appCtx.Logger)

	pipe := pipeline.New(
		&pipeline.FSFetcher{
			InputRoot: cfg.Documents.InputRoot,
			WorkDir:   cfg.Documents.WorkDir,
		},
		&pipeline.OCRTransformer{
			Binary:   cfg.OCR.Binary,
			Language: language,
			WorkDir:  cfg.Documents.WorkDir,
			Logger:   appCtx.Logger,
		},
		&pipeline.FSPublisher{
			OutputRoot: cfg.Documents.OutputRoot,
		},
		appCtx.Logger,
	)

	notifiers := []notify.Notifier{notify.NewStandardOutputNotifier()}
	if notifyFile != "" {
		notifiers = append(notifiers, notify.NewFileNotifier(notifyFile))
	}
	if cfg.Mail.Enabled {
		notifiers = append(notifiers, notify.NewMailNotifier(notify.MailConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
		}))
	}

	worker := orchestrator.New(
		coordinator,
		pipe,
		progress.NewTracker(appCtx.Table),
		progress.NewMilestoneDetector(progress.DefaultThresholds()),
		notify.NewMultiNotifier(notifiers...),
		appCtx.Logger,
		orchestrator.Config{
			MaxIterations: maxIterations,
			StepMode:      stepMode,
			IdleLimit:     cfg.Worker.IdleLimit,
		},
		os.Stdin,
	)

	result, err := worker.Run(ctx)
	if err != nil {
		return fmt.Errorf("ワーカーの実行に失敗: %w", err)
	}

	fmt.Printf("処理 %d 件 (成功 %d / 失敗 %d / 再投入 %d)\n",
		result.Processed, result.Succeeded, result.Failed, result.Requeued)
	return nil
}
