// Package queue はジョブ台帳上の取得・完了・再開の状態機械を実装します
//
// 状態遷移は pending → claimed → {done, failed, pending} のみであり、
// すべての遷移は台帳の ConditionalUpdate（status の CAS）を通ります。
// ワーカープロセス間に共有メモリはなく、この CAS が唯一の排他手段です。
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
)

// ErrNoJobAvailable は取得可能な pending ジョブが無いことを表します
// （候補が存在しない場合と、候補すべてで競合に敗れた場合の両方を含みます）
var ErrNoJobAvailable = errors.New("queue: no job available")

// ErrOutputRefMismatch は既に設定済みの output_ref と異なる値で
// Success をコミットしようとしたことを表します
var ErrOutputRefMismatch = errors.New("queue: output_ref mismatch")

const (
	defaultSampleSize       = 32
	defaultMaxClaimAttempts = 5
)

// Config は Coordinator の動作設定です
type Config struct {
	// SampleSize は Claim が走査する pending レコードの最大件数です。
	// 全 pending 集合ではなくストア順の先頭サンプル内でのみ一様に選ぶため、
	// 選択には格納順への偏りがあります。中央のシーケンサなしで多数ワーカー
	// 間の競合を抑えるための意図的なポリシーです
	SampleSize int
	// MaxClaimAttempts は1回の Claim 内で CAS を試みる候補数の上限です
	MaxClaimAttempts int
}

func (c Config) withDefaults() Config {
	if c.SampleSize <= 0 {
		c.SampleSize = defaultSampleSize
	}
	if c.MaxClaimAttempts <= 0 {
		c.MaxClaimAttempts = defaultMaxClaimAttempts
	}
	return c
}

// Coordinator はジョブの取得・完了・再開を司る状態機械です
type Coordinator struct {
	table    ledger.Table
	cfg      Config
	workerID string
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator は新しい Coordinator を作成します
// workerID は呼び出し側が与える安定したワーカー識別子です
func NewCoordinator(table ledger.Table, cfg Config, workerID string, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		table:    table,
		cfg:      cfg.withDefaults(),
		workerID: workerID,
		logger:   logger,
		now:      time.Now,
	}
}

// Claim は pending レコードを1件だけ claimed に遷移させて返します
//
// pending のサンプルを取得し、その中から一様ランダムに候補を選んで CAS を
// 試みます。競合に敗れた場合は別の候補で再試行し、候補もしくは試行回数を
// 使い切ったら ErrNoJobAvailable を返します。成功した呼び出しごとに
// ちょうど1レコードが claimed になります。
func (c *Coordinator) Claim(ctx context.Context) (*models.Job, error) {
	page, err := c.table.Scan(ctx, ledger.Filter{
		Statuses: []models.JobStatus{models.JobStatusPending},
	}, "", c.cfg.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending jobs: %w", err)
	}
	if len(page.Jobs) == 0 {
		return nil, ErrNoJobAvailable
	}

	// 複数インスタンス間の衝突を避けるため、サンプル内で候補順をランダム化する
	candidates := page.Jobs
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	attempts := min(len(candidates), c.cfg.MaxClaimAttempts)
	for i := range attempts {
		candidate := candidates[i]
		claimedAt := c.now().UTC()

		err := c.table.ConditionalUpdate(ctx, candidate.InputRef,
			models.JobStatusPending, models.JobStatusClaimed,
			ledger.UpdateAttrs{ClaimedAt: &claimedAt})
		switch {
		case err == nil:
			c.logger.Info("job claimed",
				"input_ref", candidate.InputRef,
				"worker_id", c.workerID)
			job := candidate.Clone()
			job.Status = models.JobStatusClaimed
			job.ClaimedAt = &claimedAt
			return job, nil
		case errors.Is(err, ledger.ErrConflict), errors.Is(err, ledger.ErrNotFound):
			// 他ワーカーが先に取得した。別の候補で再試行する
			c.logger.Debug("claim race lost",
				"input_ref", candidate.InputRef,
				"worker_id", c.workerID)
			continue
		default:
			return nil, fmt.Errorf("failed to claim job %s: %w", candidate.InputRef, err)
		}
	}
	return nil, ErrNoJobAvailable
}

// Commit は claimed レコードを outcome に応じた状態へ遷移させます
//
//   - Success: done へ。レコードの output_ref が空なら outcome の値を設定し、
//     既に値がある場合は上書きせず一致を検証します
//   - TransientFailure: pending へ戻し、再取得可能にします
//   - PermanentFailure: failed へ隔離し、以後の Claim 対象から外します
//
// レコードが claimed でない場合（並行リセット等）は ErrConflict を呼び出し側へ
// 返します。ただし同一の Success を再適用した場合だけは冪等に成功扱いとします。
func (c *Coordinator) Commit(ctx context.Context, inputRef string, outcome Outcome) error {
	next, err := nextStatus(outcome)
	if err != nil {
		return err
	}

	if outcome.Kind == OutcomeSuccess {
		opt, err := c.table.Get(ctx, inputRef)
		if err != nil {
			return fmt.Errorf("failed to get job %s: %w", inputRef, err)
		}
		if !opt.IsPresent() {
			return ledger.ErrNotFound
		}
		current := opt.MustGet()
		if current.OutputRef != "" && outcome.OutputRef != "" && current.OutputRef != outcome.OutputRef {
			return fmt.Errorf("%w: job %s has %q, commit gave %q",
				ErrOutputRefMismatch, inputRef, current.OutputRef, outcome.OutputRef)
		}
	}

	attrs := ledger.UpdateAttrs{OutputRef: outcome.OutputRef}
	err = c.table.ConditionalUpdate(ctx, inputRef, models.JobStatusClaimed, next, attrs)
	if err == nil {
		c.logger.Info("job committed",
			"input_ref", inputRef,
			"outcome", string(outcome.Kind),
			"worker_id", c.workerID)
		return nil
	}

	if errors.Is(err, ledger.ErrConflict) && outcome.Kind == OutcomeSuccess {
		// 同一 Success の再適用は冪等に成功として扱う
		opt, getErr := c.table.Get(ctx, inputRef)
		if getErr == nil && opt.IsPresent() {
			current := opt.MustGet()
			if current.Status == models.JobStatusDone &&
				(outcome.OutputRef == "" || current.OutputRef == outcome.OutputRef) {
				return nil
			}
		}
	}
	return err
}

// Reset は claimed のまま放置された古いレコードを pending に戻します
//
// claimed_at が staleBefore より古いレコードだけが対象です。対象レコードを
// 所有ワーカーが先に遷移させていた場合は CAS が外れてスキップされるだけ
// なので、任意の Claim/Commit と並行して何度実行しても安全です。
func (c *Coordinator) Reset(ctx context.Context, staleBefore time.Duration) (int, error) {
	threshold := c.now().UTC().Add(-staleBefore)
	resetCount := 0
	cursor := ""

	for {
		page, err := c.table.Scan(ctx, ledger.Filter{
			Statuses: []models.JobStatus{models.JobStatusClaimed},
		}, cursor, c.cfg.SampleSize)
		if err != nil {
			return resetCount, fmt.Errorf("failed to scan claimed jobs: %w", err)
		}

		for _, job := range page.Jobs {
			if job.ClaimedAt == nil || job.ClaimedAt.After(threshold) {
				continue
			}
			err := c.table.ConditionalUpdate(ctx, job.InputRef,
				models.JobStatusClaimed, models.JobStatusPending,
				ledger.UpdateAttrs{})
			switch {
			case err == nil:
				resetCount++
				c.logger.Info("stale claim reset",
					"input_ref", job.InputRef,
					"claimed_at", job.ClaimedAt)
			case errors.Is(err, ledger.ErrConflict), errors.Is(err, ledger.ErrNotFound):
				// 所有ワーカーが先に遷移させた。スキップ
				continue
			default:
				return resetCount, fmt.Errorf("failed to reset job %s: %w", job.InputRef, err)
			}
		}

		if page.NextCursor == "" {
			return resetCount, nil
		}
		cursor = page.NextCursor
	}
}

func nextStatus(outcome Outcome) (models.JobStatus, error) {
	switch outcome.Kind {
	case OutcomeSuccess:
		return models.JobStatusDone, nil
	case OutcomeTransientFailure:
		return models.JobStatusPending, nil
	case OutcomePermanentFailure:
		return models.JobStatusFailed, nil
	default:
		return "", fmt.Errorf("queue: unknown outcome kind %q", outcome.Kind)
	}
}
