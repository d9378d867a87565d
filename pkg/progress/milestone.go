package progress

import (
	"fmt"
	"sort"
	"sync"
)

// MilestoneKind はマイルストーンの種別です
type MilestoneKind string

const (
	// MilestonePercent は進捗率（%）のしきい値です
	MilestonePercent MilestoneKind = "percent"
	// MilestoneCount は処理済み件数の絶対値しきい値です
	MilestoneCount MilestoneKind = "count"
)

// Milestone は到達した1つのしきい値を表します
type Milestone struct {
	Kind      MilestoneKind
	Threshold int64
	Message   string
}

// Thresholds は検出対象のしきい値集合です。呼び出し側が設定します
type Thresholds struct {
	Percents []int   // 進捗率しきい値（例: 20, 40, 80, 100）
	Counts   []int64 // 件数しきい値（例: 100）
}

// DefaultThresholds は元システムと同じしきい値集合を返します
func DefaultThresholds() Thresholds {
	return Thresholds{
		Percents: []int{20, 40, 80, 100},
		Counts:   []int64{100},
	}
}

// MilestoneDetector はしきい値到達を検出します
//
// 各しきい値はプロセスの生存期間中に一度だけ発火します。状態はメモリ上
// にのみ保持されるため、プロセスを再起動すると再度発火し得ます。
type MilestoneDetector struct {
	mu            sync.Mutex
	thresholds    Thresholds
	firedPercents map[int]bool
	firedCounts   map[int64]bool
}

// NewMilestoneDetector は新しい MilestoneDetector を作成します
func NewMilestoneDetector(thresholds Thresholds) *MilestoneDetector {
	return &MilestoneDetector{
		thresholds:    thresholds,
		firedPercents: make(map[int]bool),
		firedCounts:   make(map[int64]bool),
	}
}

// Check は現在の (done, total) で新たに到達したマイルストーンを返します
// 進捗率は floor(done * 100 / total) で計算し、total が 0 の場合は 0 とします
func (d *MilestoneDetector) Check(done, total int64) []Milestone {
	d.mu.Lock()
	defer d.mu.Unlock()

	percent := 0
	if total > 0 {
		percent = int(done * 100 / total)
	}

	var fired []Milestone

	counts := append([]int64(nil), d.thresholds.Counts...)
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	for _, threshold := range counts {
		if done >= threshold && !d.firedCounts[threshold] {
			d.firedCounts[threshold] = true
			fired = append(fired, Milestone{
				Kind:      MilestoneCount,
				Threshold: threshold,
				Message:   fmt.Sprintf("%d 件の処理が完了しました", threshold),
			})
		}
	}

	percents := append([]int(nil), d.thresholds.Percents...)
	sort.Ints(percents)
	for _, threshold := range percents {
		if percent >= threshold && !d.firedPercents[threshold] {
			d.firedPercents[threshold] = true
			msg := fmt.Sprintf("処理が %d%% まで完了しました", threshold)
			if threshold == 100 {
				msg = "すべての処理が完了しました（100%）"
			}
			fired = append(fired, Milestone{
				Kind:      MilestonePercent,
				Threshold: int64(threshold),
				Message:   msg,
			})
		}
	}

	return fired
}
