// Package progress は台帳全体の進捗集計とマイルストーン検出を提供します
package progress

import (
	"context"
	"fmt"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
)

const defaultPageSize = 200

// Counts は状態別のレコード数です
//
// 全ページを順に走査して集計するため、走査中に他ワーカーがレコードを
// 遷移させると結果はその瞬間のスナップショットにはなりません。進捗表示
// 専用のベストエフォート値であり、正しさの判断に使ってはいけません。
type Counts struct {
	Pending int64 `json:"pending"`
	Claimed int64 `json:"claimed"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

// Total は全状態の合計を返します
func (c Counts) Total() int64 {
	return c.Pending + c.Claimed + c.Done + c.Failed
}

// Percent は done の割合（床関数、0〜100）を返します。総数 0 のときは 0
func (c Counts) Percent() int {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return int(c.Done * 100 / total)
}

// Tracker は台帳の進捗を集計します
type Tracker struct {
	table    ledger.Table
	pageSize int
}

// NewTracker は新しい Tracker を作成します
func NewTracker(table ledger.Table) *Tracker {
	return &Tracker{table: table, pageSize: defaultPageSize}
}

// Counts は台帳全体をページングしながら状態別に集計します
func (t *Tracker) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	cursor := ""

	for {
		page, err := t.table.Scan(ctx, ledger.Filter{}, cursor, t.pageSize)
		if err != nil {
			return Counts{}, fmt.Errorf("failed to scan ledger: %w", err)
		}

		for _, job := range page.Jobs {
			switch job.Status {
			case models.JobStatusPending:
				counts.Pending++
			case models.JobStatusClaimed:
				counts.Claimed++
			case models.JobStatusDone:
				counts.Done++
			case models.JobStatusFailed:
				counts.Failed++
			}
		}

		if page.NextCursor == "" {
			return counts, nil
		}
		cursor = page.NextCursor
	}
}

// QuickPendingCount は pending 件数だけを返す軽量版です
// ループ内での頻繁なポーリング用に、全件走査を避けます
func (t *Tracker) QuickPendingCount(ctx context.Context) (int64, error) {
	return t.table.Count(ctx, models.JobStatusPending)
}
