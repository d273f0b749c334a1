package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/membership-gin/internal/metrics"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// Mailer 异步发信接口
type Mailer interface {
	Enqueue(ctx context.Context, to, subject, htmlBody string) error
}

// DispatcherConfig 发信队列配置
type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	Backoff    time.Duration // 首次重试等待时间,之后指数增长
}

// Dispatcher 基于数据库持久化的发信队列
// 邮件先落库为 pending,再由 worker 投递,进程重启后可通过 ResumePending 恢复
type Dispatcher struct {
	repo       repository.MailEventRepository
	sender     Sender
	logger     logrus.FieldLogger
	queue      chan *model.MailEventModel
	maxRetries int
	backoff    time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewDispatcher 创建发信队列并启动 worker
func NewDispatcher(repo repository.MailEventRepository, sender Sender, cfg DispatcherConfig, logger logrus.FieldLogger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	d := &Dispatcher{
		repo:       repo,
		sender:     sender,
		logger:     logger,
		queue:      make(chan *model.MailEventModel, cfg.QueueSize),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		stop:       make(chan struct{}),
	}

	// 启动 worker goroutines
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Enqueue 持久化邮件并放入队列,队列已满时邮件保留为 pending 等待恢复
func (d *Dispatcher) Enqueue(ctx context.Context, to, subject, htmlBody string) error {
	// 1. 持久化
	now := time.Now()
	event := &model.MailEventModel{
		ID:        uuid.New().String(),
		Recipient: to,
		Subject:   subject,
		Body:      htmlBody,
		Status:    model.MailStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.repo.Save(ctx, event); err != nil {
		return fmt.Errorf("failed to save mail event: %w", err)
	}

	// 2. 入队,不阻塞调用方
	d.offer(event)
	return nil
}

// ResumePending 重新投递库中所有 pending 的邮件
func (d *Dispatcher) ResumePending(ctx context.Context) (int, error) {
	events, err := d.repo.FindPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending mail events: %w", err)
	}
	for _, event := range events {
		d.offer(event)
	}
	return len(events), nil
}

// Stop 停止所有 worker,未投递的邮件保留为 pending
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Dispatcher) offer(event *model.MailEventModel) {
	select {
	case d.queue <- event:
	default:
		metrics.RecordMailDelivery("dropped")
		d.logger.WithFields(logrus.Fields{
			"mail_event_id": event.ID,
			"recipient":     event.Recipient,
		}).Warn("mail queue full, event left pending")
	}
}

// worker 邮件投递 worker
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			return
		}
	}
}

// deliver 投递邮件,失败时按指数退避重试
func (d *Dispatcher) deliver(event *model.MailEventModel) {
	ctx := context.Background()
	log := d.logger.WithFields(logrus.Fields{
		"mail_event_id": event.ID,
		"recipient":     event.Recipient,
		"subject":       event.Subject,
	})
	backoff := d.backoff

	for event.RetryCount < d.maxRetries {
		err := d.sender.Send(ctx, event.Recipient, event.Subject, event.Body)
		if err == nil {
			// 投递成功，更新事件状态
			event.Status = model.MailStatusSuccess
			event.LastError = ""
			d.save(ctx, event, log)
			metrics.RecordMailDelivery("sent")
			log.Debug("mail delivered")
			return
		}

		// 投递失败，增加重试计数
		event.RetryCount++
		event.LastError = err.Error()
		d.save(ctx, event, log)
		log.WithError(err).WithField("attempt", event.RetryCount).Warn("mail delivery failed")

		// 如果还有重试机会，等待后重试
		if event.RetryCount < d.maxRetries {
			select {
			case <-time.After(backoff):
				backoff *= 2 // 指数退避
			case <-d.stop:
				return
			}
		}
	}

	// 所有重试都失败，更新事件状态为失败
	event.Status = model.MailStatusFailed
	d.save(ctx, event, log)
	metrics.RecordMailDelivery("failed")
	log.Error("mail delivery gave up")
}

func (d *Dispatcher) save(ctx context.Context, event *model.MailEventModel, log logrus.FieldLogger) {
	event.UpdatedAt = time.Now()
	if err := d.repo.Save(ctx, event); err != nil {
		log.WithError(err).Error("failed to update mail event")
	}
}
