package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/example/momchat/internal/datamodels/block"
	"github.com/example/momchat/internal/datamodels/chat"
	"github.com/example/momchat/internal/datamodels/user"
	"github.com/example/momchat/internal/logging"
	"github.com/example/momchat/internal/realtime"
)

// Notifier 实时推送，尽力而为，返回投递到的连接数
type Notifier interface {
	Deliver(userID string, ev realtime.Event) int
}

// MessageService 私信引擎：发送与已读
type MessageService struct {
	users    user.Repository
	blocks   block.Repository
	messages chat.MessageRepository
	tx       chat.TxManager
	notifier Notifier
	monitor  *Monitor
	log      *zap.Logger
	now      func() time.Time
}

func NewMessageService(
	users user.Repository,
	blocks block.Repository,
	messages chat.MessageRepository,
	tx chat.TxManager,
	notifier Notifier,
	monitor *Monitor,
	log *zap.Logger,
) *MessageService {
	if monitor == nil {
		monitor = GetMonitor()
	}
	return &MessageService{
		users:    users,
		blocks:   blocks,
		messages: messages,
		tx:       tx,
		notifier: notifier,
		monitor:  monitor,
		log:      logging.OrGlobal(log),
		now:      time.Now,
	}
}

// clock MySQL datetime(3) 精度，统一截断到毫秒并使用 UTC
func (s *MessageService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *MessageService) deliver(userID string, ev realtime.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Deliver(userID, ev)
}

// SendMessage 发送私信。会话查找/创建、投影更新与消息写入在同一个事务中
func (s *MessageService) SendMessage(ctx context.Context, sender *user.User, receiverTag, content string) (*chat.Message, error) {
	m, err := s.send(ctx, sender, receiverTag, content)
	if err != nil {
		kind := KindOf(err)
		s.monitor.RecordSendFailure(kind)
		if kind == KindInternal {
			s.monitor.RecordDBError()
			s.log.Error("send message failed",
				zap.String("sender", sender.ID),
				zap.String("receiver_tag", receiverTag),
				zap.Error(err))
		}
		return nil, err
	}
	s.monitor.RecordMessageSent()

	ev := realtime.NewMessage{Message: m}
	s.deliver(m.ReceiverID, ev)
	s.deliver(m.SenderID, ev)
	return m, nil
}

func (s *MessageService) send(ctx context.Context, sender *user.User, receiverTag, content string) (*chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, InvalidArgument("Message content cannot be empty")
	}

	receiver, err := s.users.GetByTag(ctx, receiverTag)
	if isNotFound(err) {
		return nil, NotFound("Receiver not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve receiver")
	}
	if receiver.ID == sender.ID {
		return nil, Forbidden("You cannot send a message to yourself")
	}

	// 只检查接收方是否屏蔽了发送方
	blocked, err := s.blocks.Exists(ctx, receiver.ID, sender.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check block")
	}
	if blocked {
		return nil, Forbidden("You cannot send messages to this user")
	}

	now := s.clock()
	m := &chat.Message{
		ID:         uuid.NewString(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    content,
		CreatedAt:  now,
	}

	err = s.tx.Transaction(ctx, func(threads chat.ThreadRepository, messages chat.MessageRepository) error {
		t, err := threads.FindDirect(ctx, sender.ID, receiver.ID)
		switch {
		case isNotFound(err):
			t, err = threads.CreateDirect(ctx, &chat.Thread{
				LastMessage:   content,
				LastMessageAt: now,
			}, sender.ID, receiver.ID)
			if err != nil {
				return errors.Wrap(err, "create thread")
			}
		case err != nil:
			return errors.Wrap(err, "find thread")
		}

		if err := threads.TouchLastMessage(ctx, t.ID, content, now); err != nil {
			return errors.Wrap(err, "update thread")
		}
		m.ThreadID = t.ID
		if err := messages.Create(ctx, m); err != nil {
			return errors.Wrap(err, "insert message")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.Sender = sender.Public()
	return m, nil
}

// ReadResult 已读结果
type ReadResult struct {
	MessageID   string    `json:"messageId"`
	ThreadID    string    `json:"threadId"`
	AlreadyRead bool      `json:"alreadyRead"`
	ReadAt      time.Time `json:"readAt"`
	Message     string    `json:"message"`
}

// MarkAsRead 只有接收方可以标记已读；重复标记直接返回成功，不再推送
func (s *MessageService) MarkAsRead(ctx context.Context, userID, messageID string) (*ReadResult, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if isNotFound(err) {
		return nil, NotFound("Message not found")
	}
	if err != nil {
		s.monitor.RecordDBError()
		return nil, errors.Wrap(err, "load message")
	}
	if m.ReceiverID != userID {
		return nil, Forbidden("You can only mark messages sent to you as read")
	}
	if m.IsRead() {
		return alreadyRead(m), nil
	}

	now := s.clock()
	updated, err := s.messages.MarkRead(ctx, m.ID, now)
	if err != nil {
		s.monitor.RecordDBError()
		return nil, errors.Wrap(err, "mark read")
	}
	if !updated {
		// 并发的另一次请求先写入了 read_at
		latest, err := s.messages.GetByID(ctx, m.ID)
		if err != nil {
			return nil, errors.Wrap(err, "reload message")
		}
		return alreadyRead(latest), nil
	}
	s.monitor.RecordMessageRead()

	s.deliver(m.SenderID, realtime.MessageRead{
		MessageID: m.ID,
		ThreadID:  m.ThreadID,
		ReadAt:    now,
	})
	return &ReadResult{
		MessageID: m.ID,
		ThreadID:  m.ThreadID,
		ReadAt:    now,
		Message:   "Message marked as read.",
	}, nil
}

func alreadyRead(m *chat.Message) *ReadResult {
	r := &ReadResult{
		MessageID:   m.ID,
		ThreadID:    m.ThreadID,
		AlreadyRead: true,
		Message:     "Message already marked as read.",
	}
	if m.ReadAt != nil {
		r.ReadAt = *m.ReadAt
	}
	return r
}
