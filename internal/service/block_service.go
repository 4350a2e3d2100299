package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/example/momchat/internal/datamodels/block"
	"github.com/example/momchat/internal/datamodels/user"
)

// BlockService 屏蔽
type BlockService struct {
	users  user.Repository
	blocks block.Repository
}

func NewBlockService(users user.Repository, blocks block.Repository) *BlockService {
	return &BlockService{users: users, blocks: blocks}
}

// Block blocker 屏蔽标签为 blockedTag 的用户，返回提示文案
func (s *BlockService) Block(ctx context.Context, blockerID, blockedTag string) (string, error) {
	target, err := s.users.GetByTag(ctx, blockedTag)
	if isNotFound(err) {
		return "", NotFound("User not found")
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve user")
	}
	if target.ID == blockerID {
		return "", Forbidden("You cannot block yourself")
	}

	exists, err := s.blocks.Exists(ctx, blockerID, target.ID)
	if err != nil {
		return "", errors.Wrap(err, "check block")
	}
	if exists {
		return "", Conflict("You have already blocked this user.")
	}
	if err := s.blocks.Create(ctx, &block.Block{BlockerID: blockerID, BlockedID: target.ID}); err != nil {
		if isDuplicate(err) {
			return "", Conflict("You have already blocked this user.")
		}
		return "", errors.Wrap(err, "create block")
	}
	return fmt.Sprintf("Successfully blocked %s.", target.AnonymousTag), nil
}

// ListAll 管理端查看
func (s *BlockService) ListAll(ctx context.Context) ([]*block.Block, error) {
	list, err := s.blocks.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list blocks")
	}
	if list == nil {
		list = []*block.Block{}
	}
	return list, nil
}
