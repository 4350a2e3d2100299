package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/datamodels/chat"
	"github.com/example/momchat/internal/datamodels/report"
	"github.com/example/momchat/internal/datamodels/user"
	"github.com/example/momchat/internal/logging"
)

const maxReasonLen = 1000

// ReportMessage 投递到 report_queue 的消息体
type ReportMessage struct {
	ReportID       string    `json:"report_id"`
	ReporterID     string    `json:"reporter_id"`
	ReportedUserID string    `json:"reported_user_id"`
	MessageID      *string   `json:"message_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReportPublisher 举报入队
type ReportPublisher interface {
	PublishReport(ctx context.Context, m *ReportMessage) error
}

// ReportService 举报提交与审核
type ReportService struct {
	users     user.Repository
	messages  chat.MessageRepository
	reports   report.Repository
	publisher ReportPublisher
	monitor   *Monitor
	log       *zap.Logger
}

// NewReportService publisher 为 nil 时只落库不入队
func NewReportService(
	users user.Repository,
	messages chat.MessageRepository,
	reports report.Repository,
	publisher ReportPublisher,
	monitor *Monitor,
	log *zap.Logger,
) *ReportService {
	if monitor == nil {
		monitor = GetMonitor()
	}
	return &ReportService{
		users:     users,
		messages:  messages,
		reports:   reports,
		publisher: publisher,
		monitor:   monitor,
		log:       logging.OrGlobal(log),
	}
}

// ReportInput 举报参数
type ReportInput struct {
	ReportedUserTag string  `json:"reportedUserTag"`
	Reason          string  `json:"reason"`
	MessageID       *string `json:"messageId"`
}

// Submit 保存举报并尝试入队，入队失败不影响结果
func (s *ReportService) Submit(ctx context.Context, reporterID string, in ReportInput) (*report.Report, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, InvalidArgument("Reason is required")
	}
	// 按字符计数，与 varchar(1000) 一致
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return nil, InvalidArgument("Reason is too long")
	}

	reported, err := s.users.GetByTag(ctx, in.ReportedUserTag)
	if isNotFound(err) {
		return nil, NotFound("User not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve user")
	}
	if reported.ID == reporterID {
		return nil, Forbidden("You cannot report yourself")
	}

	var messageID *string
	if in.MessageID != nil && *in.MessageID != "" {
		m, err := s.messages.GetByID(ctx, *in.MessageID)
		if isNotFound(err) {
			return nil, NotFound("Message not found")
		}
		if err != nil {
			return nil, errors.Wrap(err, "load message")
		}
		if m.SenderID != reported.ID {
			return nil, Forbidden("The message was not sent by the reported user")
		}
		id := m.ID
		messageID = &id
	}

	rep := &report.Report{
		ReporterID:     reporterID,
		ReportedUserID: reported.ID,
		Reason:         reason,
		MessageID:      messageID,
		Status:         report.StatusPending,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		s.monitor.RecordDBError()
		return nil, errors.Wrap(err, "create report")
	}
	s.enqueue(ctx, rep)
	return rep, nil
}

func (s *ReportService) enqueue(ctx context.Context, rep *report.Report) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishReport(ctx, &ReportMessage{
		ReportID:       rep.ID,
		ReporterID:     rep.ReporterID,
		ReportedUserID: rep.ReportedUserID,
		MessageID:      rep.MessageID,
		CreatedAt:      rep.CreatedAt,
	})
	if err != nil {
		s.monitor.RecordPublishError()
		s.log.Warn("publish report failed", zap.String("report_id", rep.ID), zap.Error(err))
		return
	}
	s.monitor.RecordReportQueued()
}

// List 管理端按状态过滤
func (s *ReportService) List(ctx context.Context, status string, limit int) ([]*report.Report, error) {
	if status != "" && !report.ValidStatus(status) {
		return nil, InvalidArgument("Unknown report status")
	}
	list, err := s.reports.List(ctx, status, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list reports")
	}
	if list == nil {
		list = []*report.Report{}
	}
	return list, nil
}

// UpdateStatus 管理端修改状态
func (s *ReportService) UpdateStatus(ctx context.Context, id, status string) (*report.Report, error) {
	if !report.ValidStatus(status) {
		return nil, InvalidArgument("Unknown report status")
	}
	rep, err := s.reports.GetByID(ctx, id)
	if isNotFound(err) {
		return nil, NotFound("Report not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load report")
	}
	if rep.Status == status {
		return rep, nil
	}
	if err := s.reports.UpdateStatus(ctx, id, status); err != nil {
		if isNotFound(err) {
			return nil, NotFound("Report not found")
		}
		return nil, errors.Wrap(err, "update report")
	}
	rep.Status = status
	return rep, nil
}

// MarkReviewing worker 取到举报后调用；已经被处理过的举报保持原状态
func (s *ReportService) MarkReviewing(ctx context.Context, id string) (*report.Report, error) {
	rep, err := s.reports.GetByID(ctx, id)
	if isNotFound(err) {
		return nil, NotFound("Report not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load report")
	}
	if rep.Status != report.StatusPending {
		return rep, nil
	}
	if err := s.reports.UpdateStatus(ctx, id, report.StatusReviewing); err != nil {
		return nil, errors.Wrap(err, "update report")
	}
	rep.Status = report.StatusReviewing
	return rep, nil
}
