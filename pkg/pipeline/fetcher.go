package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSFetcher は入力ルート配下のドキュメントを作業ディレクトリへコピーします
type FSFetcher struct {
	InputRoot string
	WorkDir   string
}

var _ Fetcher = (*FSFetcher)(nil)

func (f *FSFetcher) Fetch(ctx context.Context, inputRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src := filepath.Join(f.InputRoot, filepath.FromSlash(inputRef))
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			// カタログ登録後に入力元から消えた場合は再試行しても戻らない
			return "", contentError("input not found: %s", src)
		}
		return "", transientError(err)
	}
	defer in.Close()

	out, err := os.CreateTemp(f.WorkDir, "fetch-*"+filepath.Ext(inputRef))
	if err != nil {
		return "", transientError(err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", transientError(fmt.Errorf("copy %s: %w", src, err))
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", transientError(err)
	}

	return out.Name(), nil
}
