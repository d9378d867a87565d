package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ocrmypdf の終了コード
const (
	exitBadInput  = 2 // 入力ファイルが不正
	exitPriorOCR  = 6 // すでにテキスト層を持つ
	exitEncrypted = 8 // 暗号化されていて開けない
	exitCtrlC     = 130
)

// OCRTransformer は ocrmypdf を子プロセスとして実行し、
// スキャン PDF にテキスト層を付与します。
type OCRTransformer struct {
	// Binary は実行する ocrmypdf のパスです。空なら PATH から解決します
	Binary string
	// Language は OCR の言語指定です (例: "jpn+eng")
	Language string
	WorkDir  string
	Logger   *slog.Logger
}

var _ Transformer = (*OCRTransformer)(nil)

func (t *OCRTransformer) Transform(ctx context.Context, localPath string) (string, error) {
	out, err := os.CreateTemp(t.WorkDir, "ocr-*"+filepath.Ext(localPath))
	if err != nil {
		return "", transientError(err)
	}
	outPath := out.Name()
	out.Close()

	binary := t.Binary
	if binary == "" {
		binary = "ocrmypdf"
	}

	args := []string{
		"--skip-text",
		"--deskew",
		"--rotate-pages",
		"--optimize", "1",
	}
	if t.Language != "" {
		args = append(args, "--language", t.Language)
	}
	args = append(args, localPath, outPath)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// 起動自体に失敗 (バイナリ不在など)。環境要因として再試行に回す
			return "", transientError(err)
		}

		switch exitErr.ExitCode() {
		case exitPriorOCR:
			// すでに検索可能なドキュメントは変換不要。入力をそのまま成果物とします
			t.Logger.Info("テキスト層が存在するためそのまま採用します", slog.String("path", localPath))
			return localPath, nil
		case exitEncrypted:
			return "", contentError("encrypted document: %s", stderr.String())
		case exitBadInput:
			return "", contentError("invalid input document: %s", stderr.String())
		case exitCtrlC:
			return "", transientError(ctx.Err())
		default:
			return "", transientError(err)
		}
	}

	return outPath, nil
}
