package ledger

import "errors"

var (
	// ErrNotFound は指定キーのレコードが存在しないことを表します
	ErrNotFound = errors.New("ledger: job not found")

	// ErrAlreadyExists は Create 時にキーが既に存在することを表します
	ErrAlreadyExists = errors.New("ledger: job already exists")

	// ErrConflict は ConditionalUpdate の期待状態が一致しなかったことを表します
	// （他のワーカーが先にレコードを遷移させた場合に発生します）
	ErrConflict = errors.New("ledger: status conflict")
)
