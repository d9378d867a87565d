// Package ledger はジョブ台帳への操作契約を定義します
//
// 台帳は input_ref をキーとする単一テーブルであり、並行制御はすべて
// ConditionalUpdate（status に対する compare-and-swap）に委譲されます。
// プロセス内ロックは存在せず、複数ワーカープロセスが同じ台帳を共有します。
package ledger

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/aknr/ocrspot/pkg/models"
)

// UpdateAttrs は ConditionalUpdate で status と同時に書き込む属性です
type UpdateAttrs struct {
	// OutputRef は空でない場合のみ書き込まれます。既に値を持つレコードの
	// output_ref をストアが上書きすることはありません（不変条件）
	OutputRef string
	// ClaimedAt は遷移後の claimed_at の値です。nil はクリアを意味します
	ClaimedAt *time.Time
}

// Filter は Scan の状態述語です。Statuses が空の場合は全件が対象になります
type Filter struct {
	Statuses []models.JobStatus
}

// Matches はレコードが述語を満たすかを返します
func (f Filter) Matches(j *models.Job) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if j.Status == s {
			return true
		}
	}
	return false
}

// Page は Scan の1ページ分の結果です
// NextCursor が空文字列の場合、後続ページはありません
type Page struct {
	Jobs       []*models.Job
	NextCursor string
}

// Table はジョブ台帳ストアの契約です
//
// ページをまたいだスナップショット一貫性は保証されません。Scan の途中で
// 他ワーカーがレコードを遷移させた場合、同一レコードが重複して現れたり
// 観測されなかったりすることがあります。呼び出し側はそれを前提とします。
type Table interface {
	// Get はキーでレコードを1件取得します。存在しない場合は None を返します
	Get(ctx context.Context, inputRef string) (mo.Option[*models.Job], error)

	// Create は新規レコードを作成します。キーが既に存在する場合は
	// ErrAlreadyExists を返し、既存レコードには一切触れません
	Create(ctx context.Context, job *models.Job) error

	// ConditionalUpdate は現在の status が expected と一致する場合に限り、
	// status を next に遷移させ attrs を書き込みます。ストアレベルで
	// アトミックであることが唯一の並行制御前提です。
	// 一致しない場合は ErrConflict、レコードが無い場合は ErrNotFound
	ConditionalUpdate(ctx context.Context, inputRef string, expected, next models.JobStatus, attrs UpdateAttrs) error

	// Scan は述語に一致するレコードをキー順にページングして返します。
	// cursor には前ページの NextCursor を渡します（空文字列で先頭から）
	Scan(ctx context.Context, filter Filter, cursor string, limit int) (*Page, error)

	// Count は指定状態のレコード数だけを返す軽量スキャンです
	Count(ctx context.Context, status models.JobStatus) (int64, error)
}
