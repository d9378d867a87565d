package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
)

const maxEntryRetries = 3

// Result は1回の取り込み実行の集計です
type Result struct {
	Created int // 新規作成したレコード数
	Patched int // output_ref を補完したレコード数
	Skipped int // 既存のまま変更しなかったレコード数
	Total   int // カタログ上のエントリ総数
}

// Ingestor はカタログから台帳へジョブを冪等に取り込みます
//
// 同じカタログ（あるいは重なるカタログ）に対して何度実行しても、
// レコードの重複は発生せず、status が巻き戻ることもありません。
type Ingestor struct {
	table  ledger.Table
	logger *slog.Logger
}

// NewIngestor は新しい Ingestor を作成します
func NewIngestor(table ledger.Table, logger *slog.Logger) *Ingestor {
	return &Ingestor{table: table, logger: logger}
}

// Sync はカタログを走査し、エントリごとに台帳を同期します
//
//   - レコードが無ければ pending で新規作成する
//   - レコードがあり output_ref が空なら、status に触れず output_ref だけ補完する
//   - それ以外は何もしない
func (i *Ingestor) Sync(ctx context.Context, catalog Catalog) (Result, error) {
	var result Result

	err := catalog.Walk(ctx, func(entry Entry) error {
		result.Total++

		op := func() error {
			return i.syncEntry(ctx, entry, &result)
		}
		// ストア側の一時エラーは限定回数だけバックオフ付きで再試行する
		b := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxEntryRetries), ctx)
		if err := backoff.Retry(op, b); err != nil {
			return fmt.Errorf("failed to sync entry %s: %w", entry.InputRef, err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	i.logger.Info("catalog sync finished",
		"total", result.Total,
		"created", result.Created,
		"patched", result.Patched,
		"skipped", result.Skipped)
	return result, nil
}

// syncEntry は1エントリ分の同期を行います
// 他プロセスとの競合（作成やCASの衝突）は冪等に成功へ収束するよう扱います
func (i *Ingestor) syncEntry(ctx context.Context, entry Entry, result *Result) error {
	opt, err := i.table.Get(ctx, entry.InputRef)
	if err != nil {
		return err
	}

	if !opt.IsPresent() {
		job := &models.Job{
			InputRef:         entry.InputRef,
			OutputRef:        entry.OutputRef,
			Status:           models.JobStatusPending,
			DownstreamLoaded: false,
		}
		err := i.table.Create(ctx, job)
		if errors.Is(err, ledger.ErrAlreadyExists) {
			// 別の取り込みプロセスに先を越された。既存扱いで続行
			return i.syncEntry(ctx, entry, result)
		}
		if err != nil {
			return err
		}
		result.Created++
		i.logger.Debug("job created", "input_ref", entry.InputRef, "output_ref", entry.OutputRef)
		return nil
	}

	existing := opt.MustGet()
	if existing.OutputRef != "" {
		result.Skipped++
		return nil
	}

	// output_ref のみ補完する。expected に現在の status を渡すことで
	// status には一切触れない（巻き戻しも前進もさせない）
	err = i.table.ConditionalUpdate(ctx, entry.InputRef,
		existing.Status, existing.Status,
		ledger.UpdateAttrs{OutputRef: entry.OutputRef, ClaimedAt: existing.ClaimedAt})
	if errors.Is(err, ledger.ErrConflict) {
		// 補完中に status が動いた。読み直して再適用
		return i.syncEntry(ctx, entry, result)
	}
	if err != nil {
		return err
	}
	result.Patched++
	i.logger.Debug("output_ref patched", "input_ref", entry.InputRef, "output_ref", entry.OutputRef)
	return nil
}
