package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/supportdesk/internal/model"
	"github.com/d60-Lab/supportdesk/internal/repository"
	"github.com/d60-Lab/supportdesk/internal/security"
	"github.com/d60-Lab/supportdesk/pkg/sanitize"
)

// LoginResult 登录成功后返回的访问令牌
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

// NewUserInput 由命令行工具创建用户
type NewUserInput struct {
	Email    string
	Password string
	FullName string
	Admin    bool
}

// AuthService 身份识别：登录签发令牌，请求时由令牌解析出用户
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	CreateUser(ctx context.Context, in NewUserInput) (*model.User, error)
	SetAdmin(ctx context.Context, email string, admin bool) error
	SetBanned(ctx context.Context, email string, banned bool) error
	IssueToken(ctx context.Context, email string) (*LoginResult, error)
}

type authService struct {
	users  repository.UserRepository
	tokens *security.TokenManager
}

func NewAuthService(users repository.UserRepository, tokens *security.TokenManager) AuthService {
	return &authService{users: users, tokens: tokens}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive || user.IsBanned {
		return nil, ErrAccountDisabled
	}
	return s.issue(user)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	uid, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive || user.IsBanned {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *authService) CreateUser(ctx context.Context, in NewUserInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("email", "a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, invalid("password", "password must be at least 8 characters")
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:                        uuid.NewString(),
		Email:                     email,
		PasswordHash:              hash,
		FullName:                  sanitize.Name(in.FullName),
		IsActive:                  true,
		IsVerified:                true,
		IsAdmin:                   in.Admin,
		EmailNotificationsEnabled: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) SetAdmin(ctx context.Context, email string, admin bool) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	return s.users.SetAdmin(ctx, user.ID, admin)
}

func (s *authService) SetBanned(ctx context.Context, email string, banned bool) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	return s.users.SetBanned(ctx, user.ID, banned)
}

// IssueToken 不校验密码直接签发（仅供运维命令行使用）
func (s *authService) IssueToken(ctx context.Context, email string) (*LoginResult, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) lookup(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) issue(user *model.User) (*LoginResult, error) {
	token, exp, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, TokenType: "bearer", ExpiresAt: exp.UTC(), User: user}, nil
}
