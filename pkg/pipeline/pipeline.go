package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aknr/ocrspot/pkg/models"
	"github.com/aknr/ocrspot/pkg/queue"
)

// Fetcher は入力ドキュメントをローカルの作業領域へ取得します
type Fetcher interface {
	Fetch(ctx context.Context, inputRef string) (localPath string, err error)
}

// Transformer は取得済みドキュメントを変換し、成果物のローカルパスを返します
type Transformer interface {
	Transform(ctx context.Context, localPath string) (processedPath string, err error)
}

// Publisher は成果物を出力先へ配置し、output_ref を返します
type Publisher interface {
	Publish(ctx context.Context, processedPath, inputRef string) (outputRef string, err error)
}

// Pipeline は fetch → transform → publish の各段を直列に実行します。
// 各段の失敗は ErrContent / ErrTransient のいずれかに分類され、
// ジョブの確定結果 (queue.Outcome) へ写像されます。
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	publisher   Publisher
	logger      *slog.Logger
}

func New(fetcher Fetcher, transformer Transformer, publisher Publisher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		transformer: transformer,
		publisher:   publisher,
		logger:      logger,
	}
}

// Run はジョブ 1 件を処理し、確定に用いる Outcome を返します。
// 返却される error は Outcome の補足情報であり、呼び出し側のログ用です。
func (p *Pipeline) Run(ctx context.Context, job *models.Job) (queue.Outcome, error) {
	localPath, err := p.fetcher.Fetch(ctx, job.InputRef)
	if err != nil {
		return p.classify(fmt.Errorf("fetch %s: %w", job.InputRef, err))
	}
	defer p.cleanup(localPath)

	processedPath, err := p.transformer.Transform(ctx, localPath)
	if err != nil {
		return p.classify(fmt.Errorf("transform %s: %w", job.InputRef, err))
	}
	if processedPath != localPath {
		defer p.cleanup(processedPath)
	}

	outputRef, err := p.publisher.Publish(ctx, processedPath, job.InputRef)
	if err != nil {
		return p.classify(fmt.Errorf("publish %s: %w", job.InputRef, err))
	}

	return queue.Success(outputRef), nil
}

// classify は失敗を Outcome へ写像します。
// コンテンツ起因は永続失敗、それ以外はすべて一時失敗として扱います。
func (p *Pipeline) classify(err error) (queue.Outcome, error) {
	if IsContentError(err) {
		return queue.PermanentFailure(), err
	}
	return queue.TransientFailure(), err
}

func (p *Pipeline) cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("作業ファイルの削除に失敗しました", slog.String("path", path), slog.String("error", err.Error()))
	}
}
