package pipeline

import (
	"errors"
	"fmt"
)

// ErrContent は入力ドキュメント自体に起因する回復不能な失敗を表します。
// リトライしても成功しないため、ジョブは failed として確定されます。
var ErrContent = errors.New("unusable content")

// ErrTransient は環境起因の一時的な失敗を表します。
// ジョブは pending に戻され、後続の試行で再処理されます。
var ErrTransient = errors.New("transient failure")

// contentError は原因を保持したまま ErrContent として分類します
func contentError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContent, fmt.Sprintf(format, args...))
}

// transientError は原因を保持したまま ErrTransient として分類します
func transientError(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// IsContentError は err がコンテンツ起因の失敗かどうかを判定します
func IsContentError(err error) bool {
	return errors.Is(err, ErrContent)
}
