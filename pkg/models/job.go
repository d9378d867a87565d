package models

import "time"

// Job はOCR処理ジョブ台帳の1レコードを表します
// InputRef が台帳全体で一意なキーであり、レコードは削除されず status のみが遷移します
type Job struct {
	InputRef         string     `json:"inputRef"`
	OutputRef        string     `json:"outputRef,omitempty"` // 作成時に決定し、一度設定されたら不変
	Status           JobStatus  `json:"status"`
	DownstreamLoaded bool       `json:"downstreamLoaded"` // 下流システム所有のフラグ。コアは初期化以外で書き換えない
	ClaimedAt        *time.Time `json:"claimedAt,omitempty"`
}

// JobStatus はジョブの状態を表します
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusClaimed JobStatus = "claimed"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Valid は既知の状態値かどうかを返します
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusClaimed, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

// Clone はレコードの複製を返します（ClaimedAt も値コピー）
func (j *Job) Clone() *Job {
	c := *j
	if j.ClaimedAt != nil {
		t := *j.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}
