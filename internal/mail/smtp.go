package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// dialer gomail 拨号器中用到的方法
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender SMTP 邮件发送器
type SMTPSender struct {
	dialer dialer
	from   string
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send 发送 HTML 邮件
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
