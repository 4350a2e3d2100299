package mysql

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/momchat/internal/datamodels/report"
)

type reportRepo struct {
	db *gorm.DB
}

// NewReportRepository 创建举报仓储
func NewReportRepository(db *gorm.DB) report.Repository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Create(ctx context.Context, rep *report.Report) error {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.Status == "" {
		rep.Status = report.StatusPending
	}
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *reportRepo) GetByID(ctx context.Context, id string) (*report.Report, error) {
	var rep report.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepo) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).
		Model(&report.Report{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reportRepo) List(ctx context.Context, status string, limit int) ([]*report.Report, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var list []*report.Report
	q := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
