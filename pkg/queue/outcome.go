package queue

// OutcomeKind は処理結果の分類です
type OutcomeKind string

const (
	// OutcomeSuccess は処理成功（done への遷移）を表します
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeTransientFailure は一時的な失敗（pending へ戻し再試行可能）を表します
	OutcomeTransientFailure OutcomeKind = "transient_failure"
	// OutcomePermanentFailure は恒久的な失敗（failed へ隔離）を表します
	OutcomePermanentFailure OutcomeKind = "permanent_failure"
)

// Outcome は1ジョブの処理結果です
type Outcome struct {
	Kind OutcomeKind
	// OutputRef は成功時の成果物識別子です（レコード側が空の場合のみ書き込まれる）
	OutputRef string
}

// Success は成功の Outcome を作成します
func Success(outputRef string) Outcome {
	return Outcome{Kind: OutcomeSuccess, OutputRef: outputRef}
}

// TransientFailure は一時失敗の Outcome を作成します
func TransientFailure() Outcome {
	return Outcome{Kind: OutcomeTransientFailure}
}

// PermanentFailure は恒久失敗の Outcome を作成します
func PermanentFailure() Outcome {
	return Outcome{Kind: OutcomePermanentFailure}
}
