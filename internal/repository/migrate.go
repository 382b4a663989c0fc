package repository

import (
	"gorm.io/gorm"

	"github.com/d60-Lab/supportdesk/internal/model"
)

// Migrate 建表；users 需先于 support_threads 创建
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Thread{}, &model.Message{}, &model.AuditLog{})
}
