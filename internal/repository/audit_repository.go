package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/supportdesk/internal/model"
)

// AuditFilter TargetID 为空表示不过滤
type AuditFilter struct {
	TargetID string
	Offset   int
	Limit    int
}

// AuditRepository 审计日志只追加，不提供修改与删除
type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &auditRepository{db: db} }

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.AuditLog{})
		if filter.TargetID != "" {
			q = q.Where("target_id = ?", filter.TargetID)
		}
		return q
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var res []model.AuditLog
	err := base().Order("created_at DESC").Order("id").Offset(filter.Offset).Limit(filter.Limit).Find(&res).Error
	return res, total, err
}
