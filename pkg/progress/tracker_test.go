package progress

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aknr/ocrspot/pkg/ledger/memory"
	"github.com/aknr/ocrspot/pkg/models"
)

func TestCounts_Percent(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   int
	}{
		{name: "総数0は0%", counts: Counts{}, want: 0},
		{name: "半分完了", counts: Counts{Pending: 5, Done: 5}, want: 50},
		{name: "端数は切り捨て", counts: Counts{Pending: 2, Done: 1}, want: 33},
		{name: "全件完了", counts: Counts{Done: 4}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counts.Percent())
		})
	}
}

func TestTracker_Counts(t *testing.T) {
	ctx := context.Background()
	table := memory.NewTable()

	seed := map[models.JobStatus]int{
		models.JobStatusPending: 3,
		models.JobStatusClaimed: 1,
		models.JobStatusDone:    4,
		models.JobStatusFailed:  2,
	}
	i := 0
	for status, n := range seed {
		for range n {
			require.NoError(t, table.Create(ctx, &models.Job{
				InputRef: fmt.Sprintf("doc-%03d.pdf", i),
				Status:   status,
			}))
			i++
		}
	}

	tracker := NewTracker(table)
	counts, err := tracker.Counts(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), counts.Pending)
	assert.Equal(t, int64(1), counts.Claimed)
	assert.Equal(t, int64(4), counts.Done)
	assert.Equal(t, int64(2), counts.Failed)
	assert.Equal(t, int64(10), counts.Total())
	assert.Equal(t, 40, counts.Percent())
}

func TestTracker_CountsPaginatesBeyondPageSize(t *testing.T) {
	ctx := context.Background()
	table := memory.NewTable()

	const total = defaultPageSize*2 + 7
	for i := range total {
		require.NoError(t, table.Create(ctx, &models.Job{
			InputRef: fmt.Sprintf("doc-%04d.pdf", i),
			Status:   models.JobStatusPending,
		}))
	}

	tracker := NewTracker(table)
	counts, err := tracker.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(total), counts.Pending)
}

func TestTracker_QuickPendingCount(t *testing.T) {
	ctx := context.Background()
	table := memory.NewTable()

	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "a.pdf", Status: models.JobStatusPending}))
	require.NoError(t, table.Create(ctx, &models.Job{InputRef: "b.pdf", Status: models.JobStatusDone}))

	tracker := NewTracker(table)
	n, err := tracker.QuickPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
