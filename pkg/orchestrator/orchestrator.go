package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
	"github.com/aknr/ocrspot/pkg/notify"
	"github.com/aknr/ocrspot/pkg/progress"
	"github.com/aknr/ocrspot/pkg/queue"
)

// Claimer はジョブの取得と確定を行うインターフェースです
type Claimer interface {
	Claim(ctx context.Context) (*models.Job, error)
	Commit(ctx context.Context, inputRef string, outcome queue.Outcome) error
}

// Runner はジョブ 1 件を処理して結果を返すインターフェースです
type Runner interface {
	Run(ctx context.Context, job *models.Job) (queue.Outcome, error)
}

// Counter は台帳全体の状態別件数を報告するインターフェースです。
// QuickPendingCount は待機ループ内で使う pending 件数だけの軽量版です
type Counter interface {
	Counts(ctx context.Context) (progress.Counts, error)
	QuickPendingCount(ctx context.Context) (int64, error)
}

// Config はワーカーループの動作設定です
type Config struct {
	// MaxIterations は処理するジョブ数の上限です。0 なら無制限です
	MaxIterations int
	// StepMode が真なら各ジョブの処理前に Enter の入力を待ちます
	StepMode bool
	// IdleLimit は連続して claim 可能なジョブが見つからなかった回数の上限です。
	// この回数に達するとループを終了します
	IdleLimit int
	// IdleWait は claim 失敗後に次の試行まで待つ時間です
	IdleWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleLimit <= 0 {
		c.IdleLimit = 3
	}
	if c.IdleWait <= 0 {
		c.IdleWait = 5 * time.Second
	}
	return c
}

// Result はワーカーループ全体の実績です
type Result struct {
	Processed int
	Succeeded int
	Failed    int
	Requeued  int
}

// Orchestrator は claim → 処理 → 確定 を繰り返すワーカーループです。
// 停止条件は MaxIterations 到達、ジョブ枯渇、コンテキストのキャンセルの
// いずれかで、キャンセルの判定はジョブの境界でのみ行います。
type Orchestrator struct {
	claimer   Claimer
	runner    Runner
	counter   Counter
	detector  *progress.MilestoneDetector
	notifier  notify.Notifier
	logger    *slog.Logger
	cfg       Config
	stepInput io.Reader
	now       func() time.Time
}

func New(claimer Claimer, runner Runner, counter Counter, detector *progress.MilestoneDetector, notifier notify.Notifier, logger *slog.Logger, cfg Config, stepInput io.Reader) *Orchestrator {
	return &Orchestrator{
		claimer:   claimer,
		runner:    runner,
		counter:   counter,
		detector:  detector,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		stepInput: stepInput,
		now:       time.Now,
	}
}

// Run はジョブが尽きるか停止条件に達するまでワーカーループを回します。
// コンテキストのキャンセルで停止した場合は ctx.Err() を返します。
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	var result Result

	if err := o.reportStartup(ctx); err != nil {
		o.logger.Warn("開始時の通知に失敗しました", slog.String("error", err.Error()))
	}

	stepReader := bufio.NewReader(o.stepInput)
	idle := 0

	for {
		if err := ctx.Err(); err != nil {
			o.reportFinal(result, "キャンセルにより停止しました")
			return result, err
		}
		if o.cfg.MaxIterations > 0 && result.Processed >= o.cfg.MaxIterations {
			o.logger.Info("処理件数の上限に達しました", slog.Int("max_iterations", o.cfg.MaxIterations))
			break
		}

		if o.cfg.StepMode {
			fmt.Println("Enter を押すと次のジョブを処理します...")
			if _, err := stepReader.ReadString('\n'); err != nil {
				o.reportFinal(result, "入力が閉じられたため停止しました")
				return result, nil
			}
		}

		job, err := o.claimer.Claim(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrNoJobAvailable) {
				// pending が空なら競合による取り逃しではないので、待たずに終了する
				if n, countErr := o.counter.QuickPendingCount(ctx); countErr == nil && n == 0 {
					o.logger.Info("pending のジョブが無いため終了します")
					break
				}
				idle++
				o.logger.Info("claim 可能なジョブがありません", slog.Int("idle", idle), slog.Int("idle_limit", o.cfg.IdleLimit))
				if idle >= o.cfg.IdleLimit {
					break
				}
				if !o.sleep(ctx, o.cfg.IdleWait) {
					o.reportFinal(result, "キャンセルにより停止しました")
					return result, ctx.Err()
				}
				continue
			}
			o.reportFinal(result, "台帳へのアクセスに失敗したため停止しました")
			return result, fmt.Errorf("claim: %w", err)
		}
		idle = 0

		outcome := o.process(ctx, job)

		if err := o.commit(ctx, job, outcome); err != nil {
			o.reportFinal(result, "結果の確定に失敗したため停止しました")
			return result, fmt.Errorf("commit %s: %w", job.InputRef, err)
		}

		result.Processed++
		switch outcome.Kind {
		case queue.OutcomeSuccess:
			result.Succeeded++
		case queue.OutcomePermanentFailure:
			result.Failed++
		case queue.OutcomeTransientFailure:
			result.Requeued++
		}

		o.checkMilestones(ctx)
	}

	o.reportFinal(result, "すべての処理が完了しました")
	return result, nil
}

// process はジョブ 1 件を実行します。処理中のパニックや失敗が
// ループ全体を止めることはなく、必ず確定可能な Outcome に落とします
func (o *Orchestrator) process(ctx context.Context, job *models.Job) queue.Outcome {
	o.logger.Info("ジョブを処理します", slog.String("input_ref", job.InputRef))

	outcome, err := o.runner.Run(ctx, job)
	if err != nil {
		o.logger.Warn("ジョブの処理に失敗しました",
			slog.String("input_ref", job.InputRef),
			slog.String("outcome", string(outcome.Kind)),
			slog.String("error", err.Error()),
		)
		return outcome
	}

	o.logger.Info("ジョブの処理が完了しました",
		slog.String("input_ref", job.InputRef),
		slog.String("output_ref", outcome.OutputRef),
	)
	return outcome
}

// commit は確定を指数バックオフ付きでリトライします。
// 確定が通らないままジョブを放置すると claimed のまま残るため、
// 一時的な台帳障害はここで吸収します。状態の競合と output_ref の
// 不一致はリトライしても解消しないため、待たずにそのまま返します
func (o *Orchestrator) commit(ctx context.Context, job *models.Job, outcome queue.Outcome) error {
	operation := func() error {
		err := o.claimer.Commit(ctx, job.InputRef, outcome)
		if errors.Is(err, queue.ErrOutputRefMismatch) || errors.Is(err, ledger.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.Retry(operation, policy)
}

func (o *Orchestrator) checkMilestones(ctx context.Context) {
	counts, err := o.counter.Counts(ctx)
	if err != nil {
		o.logger.Warn("進捗の集計に失敗しました", slog.String("error", err.Error()))
		return
	}

	for _, m := range o.detector.Check(counts.Done, counts.Total()) {
		report := notify.Report{
			Kind:      notify.ReportMilestone,
			Subject:   "OCR 進捗のお知らせ",
			Message:   m.Message,
			Done:      counts.Done,
			Failed:    counts.Failed,
			Total:     counts.Total(),
			Percent:   counts.Percent(),
			Timestamp: o.now(),
		}
		if err := o.notifier.Notify(report); err != nil {
			// 通知の失敗でループは止めません
			o.logger.Warn("節目の通知に失敗しました", slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) reportStartup(ctx context.Context) error {
	counts, err := o.counter.Counts(ctx)
	if err != nil {
		return err
	}

	o.logger.Info("ワーカーを開始します",
		slog.Int64("pending", counts.Pending),
		slog.Int64("claimed", counts.Claimed),
		slog.Int64("done", counts.Done),
		slog.Int64("failed", counts.Failed),
	)

	return o.notifier.Notify(notify.Report{
		Kind:      notify.ReportStartup,
		Subject:   "OCR ワーカー開始",
		Message:   fmt.Sprintf("未処理 %d 件の状態から処理を開始します。", counts.Pending),
		Done:      counts.Done,
		Failed:    counts.Failed,
		Total:     counts.Total(),
		Percent:   counts.Percent(),
		Timestamp: o.now(),
	})
}

func (o *Orchestrator) reportFinal(result Result, note string) {
	// 終了報告はキャンセル済みでも送れるよう台帳には触れません
	o.logger.Info("ワーカーを終了します",
		slog.Int("processed", result.Processed),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("requeued", result.Requeued),
	)

	report := notify.Report{
		Kind:      notify.ReportFinal,
		Subject:   "OCR ワーカー終了",
		Message:   fmt.Sprintf("%s 処理 %d 件 (成功 %d / 失敗 %d / 再投入 %d)", note, result.Processed, result.Succeeded, result.Failed, result.Requeued),
		Done:      int64(result.Succeeded),
		Failed:    int64(result.Failed),
		Total:     int64(result.Processed),
		Percent:   0,
		Timestamp: o.now(),
	}
	if result.Processed > 0 {
		report.Percent = result.Succeeded * 100 / result.Processed
	}
	if err := o.notifier.Notify(report); err != nil {
		o.logger.Warn("終了時の通知に失敗しました", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
