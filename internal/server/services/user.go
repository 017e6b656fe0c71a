// Package services contains server-side business logic. This file implements
// UserService: login and session issuing plus management of user accounts.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/dmitrijs2005/vipkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/config"
	"github.com/dmitrijs2005/vipkeeper/internal/server/models"
	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/users"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Login failures. Both wrap common.ErrorUnauthorized so the HTTP layer
// answers them identically; they differ only for logging.
var (
	ErrUserNotFound = fmt.Errorf("%w: no such user", common.ErrorUnauthorized)
	ErrBadSecret    = fmt.Errorf("%w: password mismatch", common.ErrorUnauthorized)
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// UpdateUserInput changes only the fields that are set.
type UpdateUserInput struct {
	Email        *string    `json:"email" validate:"omitnil,email,max=255"`
	Password     *string    `json:"password" validate:"omitnil,min=6,max=128"`
	IsVIP        *bool      `json:"is_vip"`
	VIPLevel     *int       `json:"vip_level" validate:"omitnil,min=0,max=10"`
	VIPStartTime *time.Time `json:"vip_start_time"`
	VIPEndTime   *time.Time `json:"vip_end_time"`
}

// LoginResult is what a successful login hands to the boundary layer.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type UserService struct {
	repos      repomanager.RepositoryManager
	codec      *auth.Codec
	sessionTTL time.Duration
	validate   *validator.Validate
	logger     logging.Logger
	newID      func() (string, error)

	// digest verified against when the email is unknown, so both login
	// failures cost the same
	dummyDigest string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(m repomanager.RepositoryManager, codec *auth.Codec, cfg *config.Config, logger logging.Logger) (*UserService, error) {
	dummy, err := cryptox.HashPassword(common.GenerateRandByteArray(16))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserService{
		repos:       m,
		codec:       codec,
		sessionTTL:  cfg.SessionTTL,
		validate:    newValidator(),
		logger:      logger.With("module", "user_service"),
		newID:       newUserID,
		dummyDigest: dummy,
	}, nil
}

func newUserID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Login checks the password of the account registered under email and, on
// success, issues a session token valid for the configured TTL.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := validateStruct(s.validate, LoginInput{Email: email, Password: password}); err != nil {
		return nil, err
	}

	user, err := s.repos.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.VerifyPassword([]byte(password), s.dummyDigest)
			s.logger.Info(ctx, "login failed", "reason", "unknown email")
			return nil, ErrUserNotFound
		}
		return nil, internal("lookup user", err)
	}

	if !cryptox.VerifyPassword([]byte(password), user.PasswordHash) {
		s.logger.Info(ctx, "login failed", "reason", "bad password", "user_id", user.ID)
		return nil, ErrBadSecret
	}

	token, expiresAt, err := s.codec.Issue(user.ID, s.sessionTTL)
	if err != nil {
		return nil, internal("issue token", err)
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Create registers a new account.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, internal("generate id", err)
	}

	pw := []byte(in.Password)
	digest, err := cryptox.HashPassword(pw)
	common.WipeByteArray(pw)
	if err != nil {
		return nil, internal("hash password", err)
	}

	user, err := s.repos.Users().Create(ctx, &models.User{ID: id, Email: in.Email, PasswordHash: digest})
	if err != nil {
		return nil, mapRepoError("create user", err)
	}
	return user, nil
}

// Get returns the account with the given id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repos.Users().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError("get user", err)
	}
	return user, nil
}

// Update applies in to the account inside one transaction.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		in.Email = &e
	}
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	var digest string
	if in.Password != nil {
		pw := []byte(*in.Password)
		d, err := cryptox.HashPassword(pw)
		common.WipeByteArray(pw)
		if err != nil {
			return nil, internal("hash password", err)
		}
		digest = d
	}

	var updated *models.User
	err := s.repos.InTx(ctx, func(ctx context.Context, repo users.Repository) error {
		user, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		applyUpdate(user, in, digest)
		if user.VIPStartTime != nil && user.VIPEndTime != nil && user.VIPEndTime.Before(*user.VIPStartTime) {
			return common.NewValidationError("vip_end_time", "must not be before vip_start_time")
		}

		updated, err = repo.Update(ctx, user)
		return err
	})
	if err != nil {
		return nil, mapRepoError("update user", err)
	}
	return updated, nil
}

func applyUpdate(u *models.User, in UpdateUserInput, digest string) {
	if in.Email != nil {
		u.Email = *in.Email
	}
	if digest != "" {
		u.PasswordHash = digest
	}
	if in.IsVIP != nil {
		u.IsVIP = *in.IsVIP
	}
	if in.VIPLevel != nil {
		u.VIPLevel = *in.VIPLevel
	}
	if in.VIPStartTime != nil {
		t := in.VIPStartTime.UTC()
		u.VIPStartTime = &t
	}
	if in.VIPEndTime != nil {
		t := in.VIPEndTime.UTC()
		u.VIPEndTime = &t
	}
}

// Delete removes the account.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repos.Users().Delete(ctx, id); err != nil {
		return mapRepoError("delete user", err)
	}
	return nil
}

// List returns one page of accounts whose email contains filter.Email.
// Missing or out of range paging values fall back to page 1 of 10.
func (s *UserService) List(ctx context.Context, filter models.ListFilter) (*models.UserPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	filter.Email = strings.TrimSpace(filter.Email)

	page, err := s.repos.Users().List(ctx, filter)
	if err != nil {
		return nil, mapRepoError("list users", err)
	}
	return page, nil
}

// --- helpers below ---

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}

// mapRepoError keeps the sentinels callers branch on and folds everything
// else into common.ErrorInternal.
func mapRepoError(op string, err error) error {
	if _, ok := common.IsValidation(err); ok {
		return err
	}
	switch {
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorAlreadyExists), errors.Is(err, common.ErrorInternal):
		return err
	default:
		return internal(op, err)
	}
}
