package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/momchat/internal/datamodels/chat"
)

// ThreadService 会话与历史消息查询
type ThreadService struct {
	threads  chat.ThreadRepository
	messages chat.MessageRepository
}

func NewThreadService(threads chat.ThreadRepository, messages chat.MessageRepository) *ThreadService {
	return &ThreadService{threads: threads, messages: messages}
}

// ListUserThreads 用户参与的会话，最近活跃的在前
func (s *ThreadService) ListUserThreads(ctx context.Context, userID string) ([]*chat.Thread, error) {
	list, err := s.threads.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list threads")
	}
	if list == nil {
		list = []*chat.Thread{}
	}
	return list, nil
}

// ListThreadMessages 非成员与会话不存在返回同一个错误
func (s *ThreadService) ListThreadMessages(ctx context.Context, threadID, userID string) ([]*chat.Message, error) {
	if _, err := s.threads.GetForParticipant(ctx, threadID, userID); err != nil {
		if isNotFound(err) {
			return nil, NotFound("Thread not found or you do not have access")
		}
		return nil, errors.Wrap(err, "load thread")
	}
	list, err := s.messages.ListByThread(ctx, threadID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	if list == nil {
		list = []*chat.Message{}
	}
	return list, nil
}
