// Package postgres はジョブ台帳の PostgreSQL 実装を提供します
//
// ConditionalUpdate は status を述語に含む単一の UPDATE 文で実装され、
// アトミック性はデータベースの行ロックに委譲されます。論理ジョブは常に
// 同一キーの1行として存在し、状態遷移中にレコードが消える瞬間はありません。
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/mo"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS ocr_jobs (
	input_ref         TEXT PRIMARY KEY,
	status            TEXT NOT NULL CHECK (status IN ('pending', 'claimed', 'done', 'failed')),
	output_ref        TEXT NOT NULL DEFAULT '',
	downstream_loaded BOOLEAN NOT NULL DEFAULT FALSE,
	claimed_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_status ON ocr_jobs (status);
`

// Table は ledger.Table の PostgreSQL 実装です
type Table struct {
	pool *pgxpool.Pool
}

// NewTable は新しい Table を作成します
func NewTable(pool *pgxpool.Pool) *Table {
	return &Table{pool: pool}
}

// コンパイル時の型チェック
var _ ledger.Table = (*Table)(nil)

// InitSchema は台帳テーブルとインデックスを作成します（冪等）
func (t *Table) InitSchema(ctx context.Context) error {
	if _, err := t.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to init ledger schema: %w", err)
	}
	return nil
}

// Get はキーでレコードを取得します
func (t *Table) Get(ctx context.Context, inputRef string) (mo.Option[*models.Job], error) {
	row := t.pool.QueryRow(ctx,
		`SELECT input_ref, status, output_ref, downstream_loaded, claimed_at
		 FROM ocr_jobs WHERE input_ref = $1`, inputRef)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*models.Job](), nil
		}
		return mo.None[*models.Job](), fmt.Errorf("failed to get job: %w", err)
	}
	return mo.Some(job), nil
}

// Create は新規レコードを作成します
func (t *Table) Create(ctx context.Context, job *models.Job) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO ocr_jobs (input_ref, status, output_ref, downstream_loaded, claimed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.InputRef, string(job.Status), job.OutputRef, job.DownstreamLoaded, job.ClaimedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ledger.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// ConditionalUpdate は status の CAS 付き更新を単一 UPDATE 文で行います
// output_ref は既存値が空の場合にのみ書き込まれます
func (t *Table) ConditionalUpdate(ctx context.Context, inputRef string, expected, next models.JobStatus, attrs ledger.UpdateAttrs) error {
	tag, err := t.pool.Exec(ctx,
		`UPDATE ocr_jobs
		 SET status     = $3,
		     claimed_at = $4,
		     output_ref = CASE WHEN output_ref = '' AND $5 <> '' THEN $5 ELSE output_ref END,
		     updated_at = now()
		 WHERE input_ref = $1 AND status = $2`,
		inputRef, string(expected), string(next), attrs.ClaimedAt, attrs.OutputRef)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// 行が更新されなかった場合、不在と状態競合を区別する
	var exists bool
	if err := t.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ocr_jobs WHERE input_ref = $1)`, inputRef).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return ledger.ErrNotFound
	}
	return ledger.ErrConflict
}

// Scan は述語に一致するレコードをキー順でページングして返します（keyset方式）
func (t *Table) Scan(ctx context.Context, filter ledger.Filter, cursor string, limit int) (*ledger.Page, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	rows, err := t.pool.Query(ctx,
		`SELECT input_ref, status, output_ref, downstream_loaded, claimed_at
		 FROM ocr_jobs
		 WHERE input_ref > $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		 ORDER BY input_ref
		 LIMIT $3`,
		cursor, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}
	defer rows.Close()

	page := &ledger.Page{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		page.Jobs = append(page.Jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job rows: %w", err)
	}

	if limit > 0 && len(page.Jobs) == limit {
		page.NextCursor = page.Jobs[len(page.Jobs)-1].InputRef
	}
	return page, nil
}

// Count は指定状態のレコード数を返します
func (t *Table) Count(ctx context.Context, status models.JobStatus) (int64, error) {
	var n int64
	err := t.pool.QueryRow(ctx,
		`SELECT count(*) FROM ocr_jobs WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}
