package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/aknr/ocrspot/pkg/queue"
)

// ResetAction は滞留した claimed を pending に戻すコマンドのアクション
// クラッシュしたワーカーが残したジョブを処理対象へ復帰させます
func ResetAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	staleThreshold := cmd.Duration("stale-threshold")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if staleThreshold <= 0 {
		staleThreshold = appCtx.Config.Worker.StaleThreshold
	}

	coordinator := queue.NewCoordinator(appCtx.Table, queue.Config{
		SampleSize: appCtx.Config.Worker.SampleSize,
	}, appCtx.Config.Worker.ID, appCtx.Logger)

	count, err := coordinator.Reset(ctx, staleThreshold)
	if err != nil {
		return fmt.Errorf("claimed の復帰に失敗: %w", err)
	}

	fmt.Printf("%s 以上滞留していた %d 件を pending に戻しました\n", staleThreshold, count)
	return nil
}
