package notify

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// MailConfig は通知メールの送信設定です
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// MailNotifier は進捗レポートを HTML メールで送信するNotifierです
type MailNotifier struct {
	cfg MailConfig
}

// NewMailNotifier は新しいMailNotifierを作成します
func NewMailNotifier(cfg MailConfig) *MailNotifier {
	return &MailNotifier{cfg: cfg}
}

var _ Notifier = (*MailNotifier)(nil)

// Notify はレポートを HTML メールとして送信します
func (n *MailNotifier) Notify(report Report) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	msg := n.buildMessage(report)
	if err := smtp.SendMail(addr, auth, n.cfg.From, n.cfg.To, msg); err != nil {
		return fmt.Errorf("メールの送信に失敗: %w", err)
	}
	return nil
}

func (n *MailNotifier) buildMessage(report Report) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("From: %s\r\n", n.cfg.From))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(n.cfg.To, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", report.Subject)))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	sb.WriteString("\r\n")

	percent := report.Percent
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	sb.WriteString("<html><body style=\"font-family: sans-serif;\">\n")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>\n", report.Subject))
	sb.WriteString(fmt.Sprintf("<p>%s</p>\n", report.Message))
	sb.WriteString("<div style=\"background:#e0e0e0; border-radius:4px; width:400px;\">\n")
	sb.WriteString(fmt.Sprintf(
		"<div style=\"background:#4caf50; border-radius:4px; width:%d%%; padding:4px 0; text-align:center; color:#fff;\">%d%%</div>\n",
		percent, percent))
	sb.WriteString("</div>\n")
	sb.WriteString("<table border=\"1\" cellpadding=\"4\" style=\"border-collapse:collapse; margin-top:8px;\">\n")
	sb.WriteString(fmt.Sprintf("<tr><td>完了</td><td>%d / %d</td></tr>\n", report.Done, report.Total))
	sb.WriteString(fmt.Sprintf("<tr><td>失敗</td><td>%d</td></tr>\n", report.Failed))
	sb.WriteString(fmt.Sprintf("<tr><td>時刻</td><td>%s</td></tr>\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString("</table>\n")
	sb.WriteString("</body></html>\r\n")

	return []byte(sb.String())
}
