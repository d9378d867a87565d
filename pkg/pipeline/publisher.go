package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aknr/ocrspot/pkg/ingest"
)

// FSPublisher は成果物を出力ルート配下へ配置します。
// 出力先のパスは input_ref から決定的に導出されます。
type FSPublisher struct {
	OutputRoot string
}

var _ Publisher = (*FSPublisher)(nil)

func (p *FSPublisher) Publish(ctx context.Context, processedPath, inputRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outputRef := ingest.OutputRefFor(inputRef, p.OutputRoot)
	dst := filepath.FromSlash(outputRef)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", transientError(err)
	}

	// 異なるファイルシステム間でも動くようコピーで配置します
	in, err := os.Open(processedPath)
	if err != nil {
		return "", transientError(err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".publish-*")
	if err != nil {
		return "", transientError(err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", transientError(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", transientError(err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", transientError(err)
	}

	return outputRef, nil
}
