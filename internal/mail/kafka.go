package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer kafka.Writer 中用到的方法子集
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Command 发布到消息队列的发信指令,由独立的邮件服务消费
type Command struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	HTMLBody  string    `json:"htmlBody"`
	CreatedAt time.Time `json:"createdAt"`
}

// KafkaSender 将邮件发布为 Kafka 消息
type KafkaSender struct {
	writer Writer
}

// NewKafkaSender 创建写入指定 topic 的发送器
func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return NewKafkaSenderWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	})
}

// NewKafkaSenderWithWriter 使用指定 writer 创建发送器
func NewKafkaSenderWithWriter(w Writer) *KafkaSender {
	return &KafkaSender{writer: w}
}

// Send 发布发信指令,以收件人作为消息键
func (s *KafkaSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	value, err := json.Marshal(Command{To: to, Subject: subject, HTMLBody: htmlBody, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal mail command: %w", err)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(to), Value: value}); err != nil {
		return fmt.Errorf("failed to publish mail command: %w", err)
	}
	return nil
}

// Close 关闭底层 writer
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
