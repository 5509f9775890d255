package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/domain/ports/repository"
	"sports-tips-subscription/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	Register(ctx context.Context, email, name, country string) (*model.User, error)
	// UpdateProfile changes name and country; empty values keep the old ones.
	UpdateProfile(ctx context.Context, id, name, country string) (*model.User, error)
	SetRole(ctx context.Context, id string, role model.UserRole) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	now   func() time.Time
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUseCase").Logger()
	return &userUC{users: users, now: time.Now, log: &l}
}

func (u *userUC) Register(ctx context.Context, email, name, country string) (*model.User, error) {
	usr, err := model.NewUser(uuid.NewString(), email, name, country, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
		return nil, err
	}
	logging.With(logging.WithUserID(ctx, usr.ID), u.log).Info().Str("country", usr.Country).Msg("user registered")
	return usr, nil
}

func (u *userUC) UpdateProfile(ctx context.Context, id, name, country string) (*model.User, error) {
	usr, err := u.users.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(name); n != "" {
		usr.Name = n
	}
	if c := strings.TrimSpace(country); c != "" {
		usr.Country = c
	}
	if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
		return nil, err
	}
	return usr, nil
}

func (u *userUC) SetRole(ctx context.Context, id string, role model.UserRole) (*model.User, error) {
	switch role {
	case model.UserRoleUser, model.UserRoleStaff, model.UserRoleAdmin:
	default:
		return nil, domain.ErrInvalidArgument
	}
	usr, err := u.users.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	usr.Role = role
	if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
		return nil, err
	}
	return usr, nil
}

func (u *userUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) List(ctx context.Context) ([]*model.User, error) {
	return u.users.List(ctx, repository.NoTX)
}
