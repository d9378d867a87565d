package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/aknr/ocrspot/pkg/progress"
)

// StatusAction は台帳の進捗を表示するコマンドのアクション
func StatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	tracker := progress.NewTracker(appCtx.Table)
	counts, err := tracker.Counts(ctx)
	if err != nil {
		return fmt.Errorf("進捗の集計に失敗: %w", err)
	}

	fmt.Println("\n=== 台帳の状態 ===")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("状態", "件数")
	table.Append("pending", fmt.Sprintf("%d", counts.Pending))
	table.Append("claimed", fmt.Sprintf("%d", counts.Claimed))
	table.Append("done", fmt.Sprintf("%d", counts.Done))
	table.Append("failed", fmt.Sprintf("%d", counts.Failed))
	table.Append("合計", fmt.Sprintf("%d", counts.Total()))
	table.Render()

	fmt.Printf("進捗率: %d%%\n", counts.Percent())
	return nil
}
