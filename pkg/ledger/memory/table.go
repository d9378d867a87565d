// Package memory はジョブ台帳のインメモリ実装を提供します
// テストおよび単一プロセスでのローカル実行向けです
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/mo"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
)

// Table は ledger.Table のインメモリ実装です
// すべての操作はミューテックスで直列化されるため、ConditionalUpdate の
// アトミック性は自明に成立します
type Table struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

// NewTable は空のインメモリ台帳を作成します
func NewTable() *Table {
	return &Table{jobs: make(map[string]*models.Job)}
}

// コンパイル時の型チェック
var _ ledger.Table = (*Table)(nil)

// Get はキーでレコードを取得します
func (t *Table) Get(ctx context.Context, inputRef string) (mo.Option[*models.Job], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[inputRef]
	if !ok {
		return mo.None[*models.Job](), nil
	}
	return mo.Some(job.Clone()), nil
}

// Create は新規レコードを作成します
func (t *Table) Create(ctx context.Context, job *models.Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.jobs[job.InputRef]; ok {
		return ledger.ErrAlreadyExists
	}
	t.jobs[job.InputRef] = job.Clone()
	return nil
}

// ConditionalUpdate は status の CAS 付き更新を行います
func (t *Table) ConditionalUpdate(ctx context.Context, inputRef string, expected, next models.JobStatus, attrs ledger.UpdateAttrs) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[inputRef]
	if !ok {
		return ledger.ErrNotFound
	}
	if job.Status != expected {
		return ledger.ErrConflict
	}

	job.Status = next
	if attrs.ClaimedAt != nil {
		at := *attrs.ClaimedAt
		job.ClaimedAt = &at
	} else {
		job.ClaimedAt = nil
	}
	// 一度設定された output_ref は上書きしない
	if attrs.OutputRef != "" && job.OutputRef == "" {
		job.OutputRef = attrs.OutputRef
	}
	return nil
}

// Scan は述語に一致するレコードをキー順でページングして返します
func (t *Table) Scan(ctx context.Context, filter ledger.Filter, cursor string, limit int) (*ledger.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.jobs))
	for k := range t.jobs {
		if k > cursor {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &ledger.Page{}
	for _, k := range keys {
		job := t.jobs[k]
		if !filter.Matches(job) {
			continue
		}
		page.Jobs = append(page.Jobs, job.Clone())
		if limit > 0 && len(page.Jobs) >= limit {
			page.NextCursor = k
			break
		}
	}
	return page, nil
}

// Count は指定状態のレコード数を返します
func (t *Table) Count(ctx context.Context, status models.JobStatus) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int64
	for _, job := range t.jobs {
		if job.Status == status {
			n++
		}
	}
	return n, nil
}
