package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneDetector_FiresEachThresholdOnce(t *testing.T) {
	d := NewMilestoneDetector(Thresholds{Percents: []int{20, 40}})

	fired := d.Check(2, 10) // 20%
	require.Len(t, fired, 1)
	assert.Equal(t, MilestonePercent, fired[0].Kind)
	assert.Equal(t, int64(20), fired[0].Threshold)

	// 同じ進捗では再発火しない
	fired = d.Check(2, 10)
	assert.Empty(t, fired)

	// 進捗の後退でも再発火しない
	fired = d.Check(1, 10)
	assert.Empty(t, fired)
}

func TestMilestoneDetector_FiresSkippedThresholdsTogether(t *testing.T) {
	d := NewMilestoneDetector(DefaultThresholds())

	// 一気に 85% まで進むと 20/40/80 がまとめて発火する
	fired := d.Check(85, 100)
	require.Len(t, fired, 3)
	assert.Equal(t, int64(20), fired[0].Threshold)
	assert.Equal(t, int64(40), fired[1].Threshold)
	assert.Equal(t, int64(80), fired[2].Threshold)
}

func TestMilestoneDetector_CountThreshold(t *testing.T) {
	d := NewMilestoneDetector(Thresholds{Counts: []int64{100}})

	assert.Empty(t, d.Check(99, 1000))

	fired := d.Check(100, 1000)
	require.Len(t, fired, 1)
	assert.Equal(t, MilestoneCount, fired[0].Kind)
	assert.Equal(t, int64(100), fired[0].Threshold)

	assert.Empty(t, d.Check(101, 1000))
}

func TestMilestoneDetector_ZeroTotalNeverFiresPercent(t *testing.T) {
	d := NewMilestoneDetector(DefaultThresholds())
	assert.Empty(t, d.Check(0, 0))
}

func TestMilestoneDetector_HundredPercentMessage(t *testing.T) {
	d := NewMilestoneDetector(Thresholds{Percents: []int{100}})

	fired := d.Check(10, 10)
	require.Len(t, fired, 1)
	assert.Equal(t, "すべての処理が完了しました（100%）", fired[0].Message)
}
