// Package ingest は上流カタログからジョブ台帳への取り込みを実装します
package ingest

import "context"

// Entry はカタログ上の1ドキュメントを表します
// OutputRef は InputRef から決定的に導出され、ジョブ作成時に台帳へ固定されます
type Entry struct {
	InputRef  string
	OutputRef string
}

// Catalog は上流カタログの遅延ウォークです
// Walk は見つけたエントリごとに fn を呼び出し、fn がエラーを返した時点で中断します
type Catalog interface {
	Walk(ctx context.Context, fn func(Entry) error) error
}
