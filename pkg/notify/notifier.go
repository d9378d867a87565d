package notify

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ReportKind は通知の種別です
type ReportKind string

const (
	// ReportStartup はワーカー起動時の状況報告です
	ReportStartup ReportKind = "startup"
	// ReportMilestone は進捗の節目到達の報告です
	ReportMilestone ReportKind = "milestone"
	// ReportFinal はワーカー終了時の総括報告です
	ReportFinal ReportKind = "final"
)

// Report は進捗通知 1 件の内容です
type Report struct {
	Kind      ReportKind
	Subject   string
	Message   string
	Done      int64
	Failed    int64
	Total     int64
	Percent   int
	Timestamp time.Time
}

// Notifier は進捗レポートを通知するインターフェースです
type Notifier interface {
	Notify(report Report) error
}

// StandardOutputNotifier は標準出力に通知するNotifierです
type StandardOutputNotifier struct{}

// NewStandardOutputNotifier は新しいStandardOutputNotifierを作成します
func NewStandardOutputNotifier() *StandardOutputNotifier {
	return &StandardOutputNotifier{}
}

// Notify は標準出力にレポートを表示します
func (n *StandardOutputNotifier) Notify(report Report) error {
	fmt.Println("\n========================================")
	fmt.Println(report.Subject)
	fmt.Printf("時刻: %s\n", report.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Println("========================================")
	fmt.Println(report.Message)
	fmt.Printf("完了: %d / %d (%d%%)  失敗: %d\n", report.Done, report.Total, report.Percent, report.Failed)
	fmt.Println("========================================")
	return nil
}

// FileNotifier はファイルに通知するNotifierです
type FileNotifier struct {
	FilePath string
}

// NewFileNotifier は新しいFileNotifierを作成します
func NewFileNotifier(filePath string) *FileNotifier {
	return &FileNotifier{
		FilePath: filePath,
	}
}

// Notify はファイルにレポートを追記します
func (n *FileNotifier) Notify(report Report) error {
	var sb strings.Builder

	sb.WriteString("========================================\n")
	sb.WriteString(report.Subject + "\n")
	sb.WriteString(fmt.Sprintf("時刻: %s\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString("========================================\n")
	sb.WriteString(report.Message + "\n")
	sb.WriteString(fmt.Sprintf("完了: %d / %d (%d%%)  失敗: %d\n", report.Done, report.Total, report.Percent, report.Failed))
	sb.WriteString("========================================\n\n")

	// ファイルに書き込み（追記モード）
	f, err := os.OpenFile(n.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("ファイルを開けませんでした: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("ファイルへの書き込みに失敗: %w", err)
	}

	return nil
}

// MultiNotifier は複数のNotifierに通知するNotifierです
type MultiNotifier struct {
	Notifiers []Notifier
}

// NewMultiNotifier は新しいMultiNotifierを作成します
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		Notifiers: notifiers,
	}
}

// Notify はすべてのNotifierに通知します
func (n *MultiNotifier) Notify(report Report) error {
	var errors []string

	for _, notifier := range n.Notifiers {
		if err := notifier.Notify(report); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("一部の通知に失敗しました: %s", strings.Join(errors, "; "))
	}

	return nil
}
