package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/product-catalog/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,email,password_hash,role_id,created_at,updated_at"

// Create inserts u (PasswordHash already set) and fills its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role_id) VALUES (?,?,?,?)",
		u.Username, u.Email, u.PasswordHash, uint8(u.Role))
	if err != nil {
		if isDuplicate(err) {
			return ErrUserExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByLogin fetches a user whose username or email equals login.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1",
		login, normalizeEmail(login)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// Update writes the mutable profile columns of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, email=?, password_hash=?, role_id=? WHERE id=?",
		u.Username, u.Email, u.PasswordHash, uint8(u.Role), u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrUserExists
		}
		return err
	}
	// MySQL reports 0 affected rows for a no-op update, so only a missing
	// row is an error.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u    model.User
		role uint8
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
