package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/metrics"
	"github.com/iliyamo/product-catalog/internal/model"
	"github.com/iliyamo/product-catalog/internal/repository"
	"github.com/iliyamo/product-catalog/internal/utils"
)

// UserStore is the credential store used by AuthService.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByLogin(ctx context.Context, login string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// TokenRevoker tracks refresh tokens that must no longer be accepted.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	// Consume revokes jti and reports false when it was already revoked.
	Consume(ctx context.Context, jti string, until time.Time) (bool, error)
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	RoleID   uint8  `json:"role_id" validate:"required,oneof=1 2"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput carries the fields a user may change.  Nil pointers leave
// the stored value unchanged.
type ProfileInput struct {
	Username    *string `json:"username" validate:"omitempty,min=1,max=64"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	Password    *string `json:"password" validate:"omitempty,min=6,max=72"`
	OldPassword string  `json:"old_password"`
	RoleID      *uint8  `json:"role_id" validate:"omitempty,oneof=1 2"`
}

// Session is the outcome of a successful login or refresh.
type Session struct {
	User    model.PublicUser
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// Principal is an authenticated caller as seen by the middleware.
type Principal struct {
	UserID uint64
	Role   model.Role
}

type AuthService struct {
	users   UserStore
	issuer  *utils.Issuer
	revoked TokenRevoker
	cost    int
	log     *logger.Logger
}

func NewAuthService(users UserStore, issuer *utils.Issuer, revoked TokenRevoker, bcryptCost int, log *logger.Logger) *AuthService {
	return &AuthService{users: users, issuer: issuer, revoked: revoked, cost: bcryptCost, log: log.Named("auth")}
}

// Issuer exposes the token issuer (cookie lifetimes are derived from it).
func (s *AuthService) Issuer() *utils.Issuer { return s.issuer }

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ model.PublicUser, err error) {
	defer func() { metrics.AuthOps.WithLabelValues("register", metrics.Result(err)).Inc() }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return model.PublicUser{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return model.PublicUser{}, storageErr("hash password", err)
	}
	u := &model.User{Username: in.Username, Email: in.Email, PasswordHash: hash, Role: model.Role(in.RoleID)}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return model.PublicUser{}, &ConflictError{Message: "username or email already exists"}
		}
		return model.PublicUser{}, storageErr("create user", err)
	}
	s.log.WithContext(ctx).Info("user registered", zap.Uint64("user_id", u.ID), zap.Stringer("role", u.Role))
	return u.Public(), nil
}

// Login checks the credentials and issues a new token pair.  Unknown users
// and wrong passwords produce the same AuthError.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ Session, err error) {
	defer func() { metrics.AuthOps.WithLabelValues("login", metrics.Result(err)).Inc() }()

	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return Session{}, err
	}
	u, err := s.users.GetByLogin(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// keep the timing of the unknown-user path close to a wrong password
			utils.VerifyPassword(dummyHash, in.Password)
			return Session{}, errInvalidCredentials
		}
		return Session{}, storageErr("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return Session{}, errInvalidCredentials
	}
	return s.issue(u)
}

// dummyHash is a bcrypt hash of a random string at the default cost.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOHi5BzX0YCuOl1Zm/Qm1Wq5Z8QYg7D1K"

// Refresh exchanges a valid refresh token for a new token pair.  The
// presented token is consumed first, so a replay, even a concurrent one,
// fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ Session, err error) {
	defer func() { metrics.AuthOps.WithLabelValues("refresh", metrics.Result(err)).Inc() }()

	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return Session{}, errInvalidSession
	}
	fresh, err := s.revoked.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return Session{}, storageErr("revoke refresh token", err)
	}
	if !fresh {
		return Session{}, errInvalidSession
	}
	uid, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, errInvalidSession
		}
		return Session{}, storageErr("load user", err)
	}
	return s.issue(u)
}

// Authenticate validates an access token.
func (s *AuthService) Authenticate(accessToken string) (Principal, error) {
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return Principal{}, errInvalidSession
	}
	uid, _ := claims.UserID()
	role, _ := claims.UserRole()
	return Principal{UserID: uid, Role: role}, nil
}

// Me returns the public fields of the user behind an access token.
func (s *AuthService) Me(ctx context.Context, accessToken string) (model.PublicUser, error) {
	p, err := s.Authenticate(accessToken)
	if err != nil {
		metrics.AuthOps.WithLabelValues("me", "error").Inc()
		return model.PublicUser{}, err
	}
	return s.CurrentUser(ctx, p.UserID)
}

// CurrentUser loads an already authenticated user.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint64) (_ model.PublicUser, err error) {
	defer func() { metrics.AuthOps.WithLabelValues("me", metrics.Result(err)).Inc() }()

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.PublicUser{}, errInvalidSession
		}
		return model.PublicUser{}, storageErr("load user", err)
	}
	return u.Public(), nil
}

// Logout revokes the refresh token when one is presented and valid.  It
// never fails on a bad or missing token, so repeated calls are harmless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	metrics.AuthOps.WithLabelValues("logout", "ok").Inc()
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.log.WithContext(ctx).Warn("logout revoke failed", zap.Error(err))
	}
}

// UpdateProfile applies in to the caller's own account.  A new password
// requires the current one; only admins may change a role.
func (s *AuthService) UpdateProfile(ctx context.Context, caller Principal, in ProfileInput) (_ model.PublicUser, err error) {
	defer func() { metrics.AuthOps.WithLabelValues("profile", metrics.Result(err)).Inc() }()

	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		in.Username = &v
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		in.Email = &v
	}
	if err := validateStruct(in); err != nil {
		return model.PublicUser{}, err
	}
	u, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.PublicUser{}, &NotFoundError{Resource: "user", ID: caller.UserID}
		}
		return model.PublicUser{}, storageErr("load user", err)
	}

	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.RoleID != nil && model.Role(*in.RoleID) != u.Role {
		if caller.Role != model.RoleAdmin {
			return model.PublicUser{}, &ForbiddenError{Message: "only admins may change roles"}
		}
		u.Role = model.Role(*in.RoleID)
	}
	if in.Password != nil {
		if in.OldPassword == "" || !utils.VerifyPassword(u.PasswordHash, in.OldPassword) {
			return model.PublicUser{}, invalid("validation failed", FieldError{Field: "old_password", Message: "does not match the current password"})
		}
		hash, err := utils.HashPassword(*in.Password, s.cost)
		if err != nil {
			return model.PublicUser{}, storageErr("hash password", err)
		}
		u.PasswordHash = hash
	}

	if err := s.users.Update(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return model.PublicUser{}, &ConflictError{Message: "username or email already exists"}
		}
		return model.PublicUser{}, storageErr("update user", err)
	}
	return u.Public(), nil
}

func (s *AuthService) issue(u model.User) (Session, error) {
	access, err := s.issuer.IssueAccess(u.ID, u.Role)
	if err != nil {
		return Session{}, storageErr("sign access token", err)
	}
	refresh, err := s.issuer.IssueRefresh(u.ID, u.Role)
	if err != nil {
		return Session{}, storageErr("sign refresh token", err)
	}
	return Session{User: u.Public(), Access: access, Refresh: refresh}, nil
}
