package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aknr/ocrspot/pkg/ledger"
	"github.com/aknr/ocrspot/pkg/models"
)

func TestTable_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	table := NewTable()

	job := &models.Job{
		InputRef:  "docs/a.pdf",
		OutputRef: "out/docs/a_ocr.pdf",
		Status:    models.JobStatusPending,
	}
	require.NoError(t, table.Create(ctx, job))

	opt, err := table.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	require.True(t, opt.IsPresent())
	got := opt.MustGet()
	assert.Equal(t, "docs/a.pdf", got.InputRef)
	assert.Equal(t, "out/docs/a_ocr.pdf", got.OutputRef)
	assert.Equal(t, models.JobStatusPending, got.Status)

	// 既存キーへの Create は既存レコードに触れない
	dup := &models.Job{InputRef: "docs/a.pdf", Status: models.JobStatusDone}
	err = table.Create(ctx, dup)
	assert.ErrorIs(t, err, ledger.ErrAlreadyExists)

	opt, err = table.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, opt.MustGet().Status)
}

func TestTable_GetReturnsNoneForMissingKey(t *testing.T) {
	ctx := context.Background()
	table := NewTable()

	opt, err := table.Get(ctx, "missing.pdf")
	require.NoError(t, err)
	assert.False(t, opt.IsPresent())
}

func TestTable_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	table := NewTable()

	require.NoError(t, table.Create(ctx, &models.Job{
		InputRef: "docs/a.pdf",
		Status:   models.JobStatusPending,
	}))

	opt, err := table.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	opt.MustGet().Status = models.JobStatusDone

	opt, err = table.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, opt.MustGet().Status)
}

func TestTable_ConditionalUpdate(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name       string
		initial    *models.Job
		expected   models.JobStatus
		next       models.JobStatus
		attrs      ledger.UpdateAttrs
		wantErr    error
		wantStatus models.JobStatus
	}{
		{
			name:       "期待状態が一致すれば遷移する",
			initial:    &models.Job{InputRef: "a.pdf", Status: models.JobStatusPending},
			expected:   models.JobStatusPending,
			next:       models.JobStatusClaimed,
			attrs:      ledger.UpdateAttrs{ClaimedAt: &now},
			wantStatus: models.JobStatusClaimed,
		},
		{
			name:       "期待状態が不一致なら ErrConflict",
			initial:    &models.Job{InputRef: "a.pdf", Status: models.JobStatusClaimed},
			expected:   models.JobStatusPending,
			next:       models.JobStatusClaimed,
			wantErr:    ledger.ErrConflict,
			wantStatus: models.JobStatusClaimed,
		},
		{
			name:     "レコードが無ければ ErrNotFound",
			expected: models.JobStatusPending,
			next:     models.JobStatusClaimed,
			wantErr:  ledger.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			table := NewTable()
			if tt.initial != nil {
				require.NoError(t, table.Create(ctx, tt.initial))
			}

			err := table.ConditionalUpdate(ctx, "a.pdf", tt.expected, tt.next, tt.attrs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			if tt.initial != nil {
				opt, err := table.Get(ctx, "a.pdf")
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, opt.MustGet().Status)
			}
		})
	}
}

func TestTable_ConditionalUpdateClaimedAt(t *testing.T) {
	ctx := context.Background()
	table := NewTable()
	require.NoError(t, table.Create(ctx, &models.Job{
		InputRef: "a.pdf",
		Status:   models.JobStatusPending,
	}))

	claimedAt := time.Now().UTC()
	require.NoError(t, table.ConditionalUpdate(ctx, "a.pdf",
		models.JobStatusPending, models.JobStatusClaimed,
		ledger.UpdateAttrs{ClaimedAt: &claimedAt}))

	opt, err := table.Get(ctx, "a.pdf")
	require.NoError(t, err)
	require.NotNil(t, opt.MustGet().ClaimedAt)
	assert.Equal(t, claimedAt, *opt.MustGet().ClaimedAt)

	// nil の ClaimedAt はクリアを意味する
	require.NoError(t, table.ConditionalUpdate(ctx, "a.pdf",
		models.JobStatusClaimed, models.JobStatusDone, ledger.UpdateAttrs{}))

	opt, err = table.Get(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Nil(t, opt.MustGet().ClaimedAt)
}

func TestTable_OutputRefIsImmutableOnceSet(t *testing.T) {
	ctx := context.Background()
	table := NewTable()
	require.NoError(t, table.Create(ctx, &models.Job{
		InputRef:  "a.pdf",
		OutputRef: "out/a_ocr.pdf",
		Status:    models.JobStatusClaimed,
	}))

	err := table.ConditionalUpdate(ctx, "a.pdf",
		models.JobStatusClaimed, models.JobStatusDone,
		ledger.UpdateAttrs{OutputRef: "out/other.pdf"})
	require.NoError(t, err)

	opt, err := table.Get(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "out/a_ocr.pdf", opt.MustGet().OutputRef)
	assert.Equal(t, models.JobStatusDone, opt.MustGet().Status)
}

func TestTable_DownstreamLoadedSurvivesTransitions(t *testing.T) {
	ctx := context.Background()
	table := NewTable()
	require.NoError(t, table.Create(ctx, &models.Job{
		InputRef:         "a.pdf",
		Status:           models.JobStatusPending,
		DownstreamLoaded: true,
	}))

	claimedAt := time.Now().UTC()
	require.NoError(t, table.ConditionalUpdate(ctx, "a.pdf",
		models.JobStatusPending, models.JobStatusClaimed,
		ledger.UpdateAttrs{ClaimedAt: &claimedAt}))
	require.NoError(t, table.ConditionalUpdate(ctx, "a.pdf",
		models.JobStatusClaimed, models.JobStatusDone,
		ledger.UpdateAttrs{OutputRef: "out/a_ocr.pdf"}))

	opt, err := table.Get(ctx, "a.pdf")
	require.NoError(t, err)
	// 下流システム所有のフラグはどの遷移でも書き換えない
	assert.True(t, opt.MustGet().DownstreamLoaded)
	assert.Equal(t, models.JobStatusDone, opt.MustGet().Status)
}

func TestTable_ScanPaginatesInKeyOrder(t *testing.T) {
	ctx := context.Background()
	table := NewTable()

	refs := []string{"c.pdf", "a.pdf", "e.pdf", "b.pdf", "d.pdf"}
	for _, ref := range refs {
		require.NoError(t, table.Create(ctx, &models.Job{
			InputRef: ref,
			Status:   models.JobStatusPending,
		}))
	}

	var seen []string
	cursor := ""
	for {
		page, err := table.Scan(ctx, ledger.Filter{}, cursor, 2)
		require.NoError(t, err)
		for _, job := range page.Jobs {
			seen = append(seen, job.InputRef)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"}, seen)
}

func TestTable_ScanFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	table := NewTable()

	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "a.pdf", Status: models.JobStatusPending}))
	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "b.pdf", Status: models.JobStatusDone}))
	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "c.pdf", Status: models.JobStatusPending}))

	page, err := table.Scan(ctx, ledger.Filter{
		Statuses: []models.JobStatus{models.JobStatusPending},
	}, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, "a.pdf", page.Jobs[0].InputRef)
	assert.Equal(t, "c.pdf", page.Jobs[1].InputRef)
}

func TestTable_Count(t *testing.T) {
	ctx := context.Background()
	table := NewTable()

	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "a.pdf", Status: models.JobStatusPending}))
	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "b.pdf", Status: models.JobStatusDone}))
	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "c.pdf", Status: models.JobStatusPending}))

	n, err := table.Count(ctx, models.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = table.Count(ctx, models.JobStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
