package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/aknr/ocrspot/pkg/ingest"
)

// SyncAction は入力ドキュメントを走査し、台帳との差分を登録するコマンドのアクション
// 何度実行しても台帳は同じ状態に収束します
func SyncAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	catalog := &ingest.FSCatalog{
		InputRoot:  appCtx.Config.Documents.InputRoot,
		OutputRoot: appCtx.Config.Documents.OutputRoot,
	}

	ingestor := ingest.NewIngestor(appCtx.Table, appCtx.Logger)
	result, err := ingestor.Sync(ctx, catalog)
	if err != nil {
		return fmt.Errorf("台帳の同期に失敗: %w", err)
	}

	fmt.Println("\n=== 同期結果 ===")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("項目", "件数")
	table.Append("新規登録", fmt.Sprintf("%d", result.Created))
	table.Append("補完", fmt.Sprintf("%d", result.Patched))
	table.Append("変更なし", fmt.Sprintf("%d", result.Skipped))
	table.Append("走査合計", fmt.Sprintf("%d", result.Total))
	table.Render()

	return nil
}
