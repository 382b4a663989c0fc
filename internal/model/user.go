package model

import "time"

// User 平台用户；IsAdmin 决定能否访问管理端工单接口
type User struct {
	ID                        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email                     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash              string    `json:"-" gorm:"type:varchar(255);not null"`
	FullName                  string    `json:"full_name" gorm:"type:varchar(255)"`
	IsActive                  bool      `json:"is_active" gorm:"not null"`
	IsVerified                bool      `json:"is_verified" gorm:"not null"`
	IsAdmin                   bool      `json:"is_admin" gorm:"not null;index"`
	IsBanned                  bool      `json:"is_banned" gorm:"not null"`
	EmailNotificationsEnabled bool      `json:"email_notifications_enabled" gorm:"not null"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName 没有填写姓名时退回邮箱
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
