package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/datamodels/report"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/service"
)

const (
	reportCountKey    = "moderation:reports:%s" // reportedUserID
	reportCountWindow = 24 * time.Hour
)

// Outcome 单条投递的处理结果
type Outcome int

const (
	Ack Outcome = iota
	// Requeue 临时故障，重新入队
	Requeue
	// Drop 消息无法处理，丢弃
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "drop"
	}
}

// Counter 滑动计数
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
}

// RedisCounter INCR + 首次 EXPIRE
type RedisCounter struct {
	client radix.Client
}

func NewRedisCounter(client radix.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	var n int
	if err := c.client.Do(radix.Cmd(&n, "INCR", key)); err != nil {
		return 0, err
	}
	// 首次计数时设置过期时间
	if n == 1 {
		secs := strconv.Itoa(int(window.Seconds()))
		if err := c.client.Do(radix.Cmd(nil, "EXPIRE", key, secs)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reviewer worker 用到的举报服务方法
type Reviewer interface {
	MarkReviewing(ctx context.Context, id string) (*report.Report, error)
}

// Worker 消费 report_queue
type Worker struct {
	reviewer  Reviewer
	counter   Counter
	threshold int
	log       *zap.Logger
}

// NewWorker counter 可以为 nil
func NewWorker(reviewer Reviewer, counter Counter, threshold int, log *zap.Logger) *Worker {
	return &Worker{
		reviewer:  reviewer,
		counter:   counter,
		threshold: threshold,
		log:       logging.OrGlobal(log),
	}
}

// Handle 处理一条消息体
func (w *Worker) Handle(ctx context.Context, body []byte) Outcome {
	var m service.ReportMessage
	if err := json.Unmarshal(body, &m); err != nil || m.ReportID == "" {
		w.log.Warn("invalid report message", zap.ByteString("body", body), zap.Error(err))
		return Drop
	}

	rep, err := w.reviewer.MarkReviewing(ctx, m.ReportID)
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			w.log.Warn("report no longer exists", zap.String("report_id", m.ReportID))
			return Drop
		}
		w.log.Error("mark report reviewing failed", zap.String("report_id", m.ReportID), zap.Error(err))
		service.GetMonitor().RecordDBError()
		return Requeue
	}

	w.count(ctx, rep.ReportedUserID)
	w.log.Info("report queued for review",
		zap.String("report_id", rep.ID),
		zap.String("reported_user_id", rep.ReportedUserID),
		zap.String("status", rep.Status))
	return Ack
}

func (w *Worker) count(ctx context.Context, userID string) {
	if w.counter == nil {
		return
	}
	n, err := w.counter.Incr(ctx, fmt.Sprintf(reportCountKey, userID), reportCountWindow)
	if err != nil {
		w.log.Warn("increase report count failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if w.threshold > 0 && n >= w.threshold {
		w.log.Warn("user reached report threshold",
			zap.String("user_id", userID),
			zap.Int("reports_24h", n),
			zap.Int("threshold", w.threshold))
	}
}

// Acknowledger amqp.Delivery 的确认方法
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Settle 根据处理结果确认投递
func Settle(d Acknowledger, o Outcome) error {
	switch o {
	case Ack:
		return d.Ack(false)
	case Requeue:
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}

// Run 手动确认模式消费，直到 ctx 取消或 deliveries 关闭
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			o := w.Handle(ctx, d.Body)
			if err := Settle(&d, o); err != nil {
				w.log.Error("settle delivery failed", zap.String("outcome", o.String()), zap.Error(err))
			}
		}
	}
}
