package service

import (
	"errors"
	"fmt"
)

var (
	ErrThreadNotFound = errors.New("support thread not found")
	// ErrThreadClosed 用户不能在已关闭的工单中继续回复
	ErrThreadClosed       = errors.New("cannot send messages to a closed thread, please create a new support request")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is inactive or banned")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrEmailExists        = errors.New("email already registered")
	ErrNotificationFailed = errors.New("failed to send email")
)

// ValidationError 输入校验失败，Field 为出错字段
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// IsValidation 判断是否为输入校验错误
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
