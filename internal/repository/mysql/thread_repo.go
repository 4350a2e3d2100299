package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/momchat/internal/datamodels/chat"
)

type threadRepo struct {
	db *gorm.DB
}

// NewThreadRepository 创建会话仓储
func NewThreadRepository(db *gorm.DB) chat.ThreadRepository {
	return &threadRepo{db: db}
}

func (r *threadRepo) FindDirect(ctx context.Context, a, b string) (*chat.Thread, error) {
	var t chat.Thread
	err := r.db.WithContext(ctx).
		Joins("JOIN participants pa ON pa.thread_id = threads.id AND pa.user_id = ?", a).
		Joins("JOIN participants pb ON pb.thread_id = threads.id AND pb.user_id = ?", b).
		Where("(SELECT COUNT(*) FROM participants pc WHERE pc.thread_id = threads.id) = 2").
		Order("threads.created_at ASC").
		Order("threads.id ASC").
		Preload("Participants").
		Take(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *threadRepo) CreateDirect(ctx context.Context, t *chat.Thread, a, b string) (*chat.Thread, error) {
	db := r.db.WithContext(ctx)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.PairKey = chat.PairKey(a, b)

	res := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).
		Create(t)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 另一个事务已经创建了这对用户的会话；加锁读拿到最新已提交版本
		var existing chat.Thread
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Participants").
			Where("pair_key = ?", t.PairKey).
			Take(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	participants := []*chat.Participant{
		{ID: uuid.NewString(), ThreadID: t.ID, UserID: a},
		{ID: uuid.NewString(), ThreadID: t.ID, UserID: b},
	}
	if err := db.Omit(clause.Associations).Create(&participants).Error; err != nil {
		return nil, err
	}
	t.Participants = participants
	return t, nil
}

func (r *threadRepo) GetForParticipant(ctx context.Context, threadID, userID string) (*chat.Thread, error) {
	var t chat.Thread
	if err := r.db.WithContext(ctx).
		Joins("JOIN participants p ON p.thread_id = threads.id AND p.user_id = ?", userID).
		Where("threads.id = ?", threadID).
		Take(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *threadRepo) ListByParticipant(ctx context.Context, userID string) ([]*chat.Thread, error) {
	var list []*chat.Thread
	mine := r.db.Model(&chat.Participant{}).Select("thread_id").Where("user_id = ?", userID)
	if err := r.db.WithContext(ctx).
		Preload("Participants.User", selectPublic).
		Where("id IN (?)", mine).
		Order("last_message_at DESC").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *threadRepo) TouchLastMessage(ctx context.Context, threadID, content string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&chat.Thread{}).
		Where("id = ? AND last_message_at <= ?", threadID, at).
		Updates(map[string]interface{}{
			"last_message":    content,
			"last_message_at": at,
		}).Error
}
