// Package mail 负责出站邮件的渲染、排队和投递
package mail

import (
	"context"
	"fmt"

	"github.com/mautops/membership-gin/internal/config"
	"github.com/sirupsen/logrus"
)

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewSender 根据配置创建邮件发送器
func NewSender(cfg config.MailConfig, logger logrus.FieldLogger) (Sender, error) {
	switch cfg.Driver {
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("mail.smtp_host is required for smtp driver")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From), nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return nil, fmt.Errorf("mail.kafka_brokers and mail.kafka_topic are required for kafka driver")
		}
		return NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.Driver)
	}
}

// LogSender 只记录日志的发送器,用于开发环境
type LogSender struct {
	logger logrus.FieldLogger
}

// NewLogSender 创建日志发送器
func NewLogSender(logger logrus.FieldLogger) *LogSender {
	return &LogSender{logger: logger}
}

// Send 记录邮件内容
func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	s.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"bytes":   len(htmlBody),
	}).Info("mail sent (log driver)")
	return nil
}
