package email

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/pkg/notify"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg  *config.EmailConfig
	send sendFunc
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg, send: smtp.SendMail}
}

// Notify 发送需要人工处理的申请提醒到 notify_to
func (s *Service) Notify(_ context.Context, n notify.Notice) error {
	if s.cfg.NotifyTo == "" {
		return nil
	}

	var message string
	if n.Message != "" {
		message = fmt.Sprintf(`<p style="background-color: #f3f4f6; padding: 10px; word-break: break-all;">%s</p>`,
			html.EscapeString(n.Message))
	}

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">%s</h2>
        <p>%s @ %s</p>
        <p><a href="%s">%s</a></p>
        %s
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">This message was sent automatically.</p>
    </div>
</body>
</html>
`, html.EscapeString(n.Title()), html.EscapeString(n.JobTitle), html.EscapeString(n.CompanyName),
		html.EscapeString(n.URL), html.EscapeString(n.URL), message)

	if err := s.sendHTML(s.cfg.NotifyTo, n.Title(), body); err != nil {
		return eris.Wrap(err, "email: send notice")
	}
	return nil
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := []string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(h + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
